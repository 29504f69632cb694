package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"matchmaking-service/internal/errs"
)

// UserIDKey is the gin context key holding the authenticated caller id.
const UserIDKey = "userID"

var errInvalidToken = errors.New("invalid token")

// JWTValidator checks HS256 bearer tokens issued by the identity provider.
// The subject claim carries the numeric user id.
type JWTValidator struct {
	secret []byte
	now    func() time.Time
}

// NewJWTValidator builds a validator for tokens signed with secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), now: time.Now}
}

// ValidateToken returns the caller id carried by token.
func (v *JWTValidator) ValidateToken(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, errInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: subject %q", errInvalidToken, claims.Subject)
	}
	return userID, nil
}

// IssueToken signs a token for userID. Used by tests and local tooling.
func (v *JWTValidator) IssueToken(userID int64, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthMiddleware validates the Authorization header and stores the caller id.
func AuthMiddleware(validator *JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthenticated(c, "missing authorization")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthenticated(c, "invalid authorization header")
			return
		}

		userID, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthenticated(c, "invalid token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
		"kind":    errs.KindUnauthenticated,
		"message": message,
	}})
}
