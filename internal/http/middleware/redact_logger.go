package middleware

import (
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

var (
	// Credentials that reach us in query strings: Supabase PKCE codes and
	// tokens, and the client secret the processor appends to return URLs.
	secretParamRE  = regexp.MustCompile(`(?i)(^|&)(code|token|access_token|refresh_token|payment_intent_client_secret|setup_intent_client_secret)=[^&]*`)
	clientSecretRE = regexp.MustCompile(`\b(pi|seti)_[A-Za-z0-9]+_secret_[A-Za-z0-9]+\b`)
	uuidRE         = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE        = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so the hex groups of an ID never look like a phone number.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Headers that are always masked outright.
var defaultMaskedHeaders = []string{"authorization", "cookie", "set-cookie", "stripe-signature", "apikey"}

// RedactOptions adds header names (case-insensitive) to mask in access logs.
type RedactOptions struct {
	MaskHeaders []string
}

// redact scrubs a query string or header value. Secrets go first, then IDs,
// since the phone pattern is loose enough to eat pieces of both.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = secretParamRE.ReplaceAllString(s, "${1}${2}="+redacted)
	s = clientSecretRE.ReplaceAllString(s, "[REDACTED:secret]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// clientNetwork keeps the network part of an address (/24 for IPv4, /48 for
// IPv6), enough to spot abuse without logging the subscriber.
func clientNetwork(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	bits := 48
	if addr.Is4() || addr.Is4In6() {
		addr, bits = addr.Unmap(), 24
	}
	p, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return p.String()
}

// RedactingLogger writes one access log line per request and attaches a
// request-scoped logger (see LoggerFrom). Bodies are never logged; queries
// and headers are scrubbed, the client IP is reduced to its network.
// Levels: info below 400, warn for 4xx, error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(defaultMaskedHeaders)+len(opts.MaskHeaders))
	for _, h := range append(defaultMaskedHeaders, opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		headers := zerolog.Dict()
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers.Str(k, redacted)
				continue
			}
			headers.Str(k, redact(strings.Join(vv, ", ")))
		}

		reqID := RequestIDFrom(c)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		attachLogger(c, log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger())

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", redact(c.Errors.String()))
		}
		ev.Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("user_id", userIDFromCtx(c)).
			Str("client_net", clientNetwork(c.ClientIP())).
			Str("query", redact(c.Request.URL.RawQuery)).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Dict("headers", headers).
			Msg("http_request")
	}
}
