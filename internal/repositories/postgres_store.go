package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore is a sqlx implementation of Store.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithinTx runs fn inside a database transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(postgresRepos(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// View runs fn in a read-only repeatable read transaction so every statement sees
// the same snapshot.
func (s *PostgresStore) View(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	return fn(postgresRepos(tx))
}

func postgresRepos(ext sqlx.ExtContext) Repos {
	return Repos{
		Users:         &UserRepo{db: ext},
		Queue:         &QueueRepo{db: ext},
		Notifications: &NotificationRepo{db: ext},
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
