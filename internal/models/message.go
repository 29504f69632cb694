package models

import "time"

// Message is a chat message.
type Message struct {
	ID                int64     `db:"id" json:"id"`
	ChatID            int64     `db:"chat_id" json:"chat_id"`
	SenderID          int64     `db:"sender_id" json:"sender_id"`
	Content           string    `db:"content" json:"content"`
	DeletedBySender   bool      `db:"deleted_by_sender" json:"deleted_by_sender"`
	DeletedByReceiver bool      `db:"deleted_by_receiver" json:"deleted_by_receiver"`
	DeletedForAll     bool      `db:"deleted_for_all" json:"deleted_for_all"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ChatEvent is written to chat websocket rooms.
type ChatEvent struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	MessageID int64    `json:"message_id,omitempty"`
}
