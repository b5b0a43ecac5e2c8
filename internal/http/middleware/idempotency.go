package middleware

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries a client-chosen key that stays the same
// across retries of one logical operation, e.g. opening a payment intent.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay is set to "true" on answers served from the store.
const HeaderIdempotentReplay = "Idempotent-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
)

// Responses larger than this are not stored; a retry then gets 409.
const maxStoredBody = 64 << 10

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~:-]+$`)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether this answer was served from the idempotency store.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }

// IdempotencyOptions tunes IdempotencyValidator. Zero values mean a 200 byte
// limit, the token pattern above and a 24h memory.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
	TTL     time.Duration
}

// StoredResponse is the first successful answer given for a (scope, key).
// Truncated is set when the body was too large to keep.
type StoredResponse struct {
	Status      int
	ContentType string
	Body        []byte
	Truncated   bool
}

// IdempotencyStore remembers completed (scope, key) pairs and their answers.
// Scope combines the caller and the route, so the same key on two routes
// never collides. Lookup returns nil for an unknown or expired key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key string, now time.Time) (*StoredResponse, error)
	Remember(ctx context.Context, scope, key string, resp StoredResponse, ttl time.Duration) error
}

// IdempotencyValidator checks the Idempotency-Key on unsafe methods and
// answers 400 for a malformed one. When the store already holds an answer for
// the key, that answer is written again and the handler does not run. A
// first-time key is remembered with its answer once the handler returns 2xx.
// A retry that arrives while the first attempt is still running gets 409.
// Store errors are logged and otherwise ignored.
func IdempotencyValidator(opts IdempotencyOptions, store IdempotencyStore) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	var inflight sync.Map

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortIdem(c, http.StatusBadRequest, "bad_idempotency_key", "Invalid Idempotency-Key")
			return
		}

		c.Set(ctxKeyIdemKey, key)
		if store == nil {
			c.Next()
			return
		}

		scope := idempotencyScope(c)
		prev, err := store.Lookup(c.Request.Context(), scope, key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		} else if prev != nil {
			replay(c, prev)
			return
		}

		slot := scope + "#" + key
		if _, busy := inflight.LoadOrStore(slot, struct{}{}); busy {
			abortIdem(c, http.StatusConflict, "idempotency_in_progress", "A request with this Idempotency-Key is in progress")
			return
		}
		defer inflight.Delete(slot)

		cw := &captureWriter{ResponseWriter: c.Writer, limit: maxStoredBody}
		c.Writer = cw
		c.Next()

		if st := cw.Status(); st >= 200 && st < 300 {
			resp := StoredResponse{
				Status:      st,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.buf.Bytes(),
				Truncated:   cw.overflow,
			}
			if err := store.Remember(c.Request.Context(), scope, key, resp, ttl); err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
			}
		}
	}
}

func replay(c *gin.Context, prev *StoredResponse) {
	c.Set(ctxKeyIdemReplay, true)
	if prev.Truncated {
		abortIdem(c, http.StatusConflict, "idempotency_replay_unavailable", "Idempotency-Key already used")
		return
	}
	c.Header(HeaderIdempotentReplay, "true")
	c.Header("Cache-Control", "no-store")
	if len(prev.Body) == 0 {
		c.AbortWithStatus(prev.Status)
		return
	}
	c.Data(prev.Status, prev.ContentType, prev.Body)
	c.Abort()
}

func abortIdem(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       code,
		"error":      msg,
	})
}

// captureWriter tees the body into buf until limit bytes have been written.
type captureWriter struct {
	gin.ResponseWriter
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *captureWriter) keep(n int) bool {
	if w.overflow {
		return false
	}
	if w.buf.Len()+n > w.limit {
		w.overflow = true
		w.buf.Reset()
		return false
	}
	return true
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if w.keep(len(b)) {
		w.buf.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	if w.keep(len(s)) {
		w.buf.WriteString(s)
	}
	return w.ResponseWriter.WriteString(s)
}

// idempotencyScope is "<user>|<METHOD> <route>"; the route template keeps
// path parameters out of the scope.
func idempotencyScope(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return userIDFromCtx(c) + "|" + c.Request.Method + " " + route
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// userIDFromCtx is the authenticated user id, or "anonymous".
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}
