package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/http/middleware"
)

// ErrExchangeFailed is returned when Supabase rejects an auth code.
var ErrExchangeFailed = errors.New("code exchange failed")

// Session is the token pair issued after a successful code exchange.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// CodeExchanger swaps a one-time auth code for a session.
type CodeExchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*Session, error)
}

// SupabaseExchanger implements CodeExchanger with the PKCE token grant.
type SupabaseExchanger struct {
	cfg    Config
	client *http.Client
}

// NewSupabaseExchanger builds an exchanger. A nil client gets a 10s-timeout default.
func NewSupabaseExchanger(cfg Config, client *http.Client) *SupabaseExchanger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &SupabaseExchanger{cfg: cfg, client: client}
}

// Exchange posts the code and PKCE verifier to /auth/v1/token?grant_type=pkce.
func (e *SupabaseExchanger) Exchange(ctx context.Context, code, verifier string) (*Session, error) {
	body, _ := json.Marshal(map[string]string{"auth_code": code, "code_verifier": verifier})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+"/auth/v1/token?grant_type=pkce", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.cfg.AnonKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrExchangeFailed, resp.StatusCode)
	}
	var s Session
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&s); err != nil {
		return nil, fmt.Errorf("supabase token: decode: %w", err)
	}
	if s.AccessToken == "" {
		return nil, ErrExchangeFailed
	}
	return &s, nil
}

// Session cookie names.
const (
	CookieAccessToken  = "sb-access-token"
	CookieRefreshToken = "sb-refresh-token"
)

// CallbackHandler completes sign-in redirects: GET /auth/callback?code=&next=.
type CallbackHandler struct {
	Exchanger      CodeExchanger
	SiteURL        string // absolute origin for redirects; relative when empty
	ErrorPath      string // where failures land, e.g. /auth/auth-code-error
	VerifierCookie string // cookie holding the PKCE code verifier
}

// Handle exchanges the code, stores the session cookies and redirects to
// next (default "/"). Any failure redirects to ErrorPath.
//
// @Summary     Complete sign-in
// @Description Exchanges a one-time auth code for a session and redirects.
// @Tags        auth
// @Param       code  query  string  true   "One-time auth code"
// @Param       next  query  string  false  "Relative path to continue to"  default(/)
// @Success     307
// @Router      /auth/callback [get]
func (h *CallbackHandler) Handle(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	next := safeNext(c.Query("next"))

	if code == "" {
		c.Redirect(http.StatusTemporaryRedirect, h.SiteURL+h.ErrorPath)
		return
	}

	verifier, _ := c.Cookie(h.VerifierCookie)
	sess, err := h.Exchanger.Exchange(c.Request.Context(), code, verifier)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("auth callback: code exchange failed")
		c.Redirect(http.StatusTemporaryRedirect, h.SiteURL+h.ErrorPath)
		return
	}

	secure := strings.HasPrefix(h.SiteURL, "https://")
	c.SetSameSite(http.SameSiteLaxMode)
	maxAge := sess.ExpiresIn
	if maxAge <= 0 {
		maxAge = 3600
	}
	c.SetCookie(CookieAccessToken, sess.AccessToken, maxAge, "/", "", secure, true)
	if sess.RefreshToken != "" {
		c.SetCookie(CookieRefreshToken, sess.RefreshToken, int((30 * 24 * time.Hour).Seconds()), "/", "", secure, true)
	}
	if h.VerifierCookie != "" {
		c.SetCookie(h.VerifierCookie, "", -1, "/", "", secure, true)
	}
	c.Redirect(http.StatusTemporaryRedirect, h.SiteURL+next)
}

// safeNext keeps redirects on this site: only absolute paths are allowed,
// protocol-relative and backslash tricks fall back to "/".
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}
