package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
//
// NoStorePrefixes lists URL path prefixes whose responses carry secrets
// (payment client secrets, auth redirects) and must never be cached by the
// browser or an intermediary. Expose names response headers browser clients
// may read in addition to X-Request-ID.
type SecurityOptions struct {
	EnableHSTS      bool
	HSTSMaxAge      time.Duration
	NoStorePrefixes []string
	Expose          []string
}

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityHeaders sets baseline hardening headers for a JSON API. HSTS is
// only sent over HTTPS, directly or as reported by X-Forwarded-Proto.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	age := opt.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(age/time.Second), 10) + "; includeSubDomains; preload"
	expose := append([]string{requestIDHeader}, opt.Expose...)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")

		if noStore(c.Request.URL.Path, opt.NoStorePrefixes) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		mergeExposed(h, expose)

		c.Next()
	}
}

func noStore(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// mergeExposed appends names to Access-Control-Expose-Headers, skipping any
// already listed (case-insensitive).
func mergeExposed(h http.Header, names []string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	have := map[string]bool{}
	for _, v := range strings.Split(cur, ",") {
		if v = strings.TrimSpace(v); v != "" {
			have[strings.ToLower(v)] = true
		}
	}
	for _, n := range names {
		if n == "" || have[strings.ToLower(n)] {
			continue
		}
		have[strings.ToLower(n)] = true
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
	}
	if cur != "" {
		h.Set(key, cur)
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
