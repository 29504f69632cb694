package ws

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newConnID() string {
	return uuid.NewString()
}

// tokenFromRequest reads a bearer token from the Authorization header or the
// token query parameter, since browsers cannot set headers on upgrade requests.
func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return ""
		}
		return token
	}
	return c.Query("token")
}
