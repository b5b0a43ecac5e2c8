package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/http/middleware"
)

// Context keys set by RequireUser. "userID" is what the rate limiter, the
// idempotency validator and the request logger already read.
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
)

// TokenVerifier resolves a bearer token to a user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// FailFunc writes an error envelope and aborts the request.
type FailFunc func(c *gin.Context, status int, code, msg string)

// RequireUser rejects requests without a valid bearer token with 401 and
// stores the caller's id under ContextUserID otherwise.
func RequireUser(v TokenVerifier, fail FailFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			fail(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		u, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrMissingToken) {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("token verification failed")
			}
			fail(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		c.Set(ContextUserID, u.ID)
		if u.Email != "" {
			c.Set(ContextUserEmail, u.Email)
		}
		c.Next()
	}
}

// UserID returns the authenticated caller id ("" when unauthenticated).
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ContextUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(h string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(h), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
