package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteTemplateAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/offers/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	r.POST("/api/offers/:id/decline", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	const tmpl = "/api/offers/:id"
	baseGet := testutil.ToFloat64(httpReqs.WithLabelValues("GET", tmpl, "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))
	baseDecline := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/api/offers/:id/decline", "204"))

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/offers/"+id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s -> %d", id, w.Code)
		}
	}
	for _, p := range []string{"/wp-login.php", "/.env"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/offers/a/decline", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", tmpl, "200")); got != baseGet+3 {
		t.Fatalf("template counter = %v, want %v", got, baseGet+3)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != baseMiss+2 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseMiss+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/api/offers/:id/decline", "204")); got != baseDecline+1 {
		t.Fatalf("decline counter = %v, want %v", got, baseDecline+1)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v, want 0", v)
	}
}

func TestMetrics_CountsReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") == "1" {
			c.Set(ctxKeyIdemReplay, true)
		}
		c.Next()
	})
	r.POST("/api/create-payment-intent", func(c *gin.Context) { c.Status(http.StatusOK) })

	route := "/api/create-payment-intent"
	base := testutil.ToFloat64(idempotentReplays.WithLabelValues(route))

	for _, replay := range []string{"", "1", "1"} {
		req := httptest.NewRequest(http.MethodPost, route, nil)
		req.Header.Set("X-Replay", replay)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if got := testutil.ToFloat64(idempotentReplays.WithLabelValues(route)); got != base+2 {
		t.Fatalf("replays = %v, want %v", got, base+2)
	}
}
