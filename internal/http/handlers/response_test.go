package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-realty-backend/internal/http/middleware"
)

func TestFail_EnvelopeAndServerErrorLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(func(c *gin.Context) { c.Set("logger", &logger); c.Next() })
	r.GET("/api/offers/:id", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "Offer not found")
	})
	r.POST("/api/accept-offer-after-payment", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Failed to update offer")
	})

	cases := []struct {
		method, path string
		status       int
		code, msg    string
		logged       bool
	}{
		{http.MethodGet, "/api/offers/o1", http.StatusNotFound, ErrCodeNotFound, "Offer not found", false},
		{http.MethodPost, "/api/accept-offer-after-payment", http.StatusInternalServerError, ErrCodeInternal, "Failed to update offer", true},
	}
	for _, tc := range cases {
		buf.Reset()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("X-Request-ID", "rid-"+tc.code)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tc.status {
			t.Fatalf("%s: status = %d", tc.path, w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		if er.RequestID != "rid-"+tc.code || er.Code != tc.code || er.Error != tc.msg {
			t.Fatalf("%s: envelope = %+v", tc.path, er)
		}
		gotLog := strings.Contains(buf.String(), `"level":"error"`)
		if gotLog != tc.logged {
			t.Fatalf("%s: logged = %v, want %v (%s)", tc.path, gotLog, tc.logged, buf.String())
		}
		if tc.logged && !strings.Contains(buf.String(), `"route":"/api/accept-offer-after-payment"`) {
			t.Fatalf("log missing route: %s", buf.String())
		}
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/offers", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"id": "o1"}) })
	r.DELETE("/posts/:id", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/offers", nil))
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"id":"o1"`) {
		t.Fatalf("created = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/posts/p1", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("no content = %d %q", w.Code, w.Body.String())
	}
}

func TestPaginationHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query          string
		page, pageSize int
	}{
		{"", 1, 20},
		{"?page=0&page_size=0", 1, 1},
		{"?page=-4&page_size=-1", 1, 1},
		{"?page=3&page_size=500", 3, 100},
		{"?page=x&page_size=y", 1, 20},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)
		if p, ps := clampPagination(c); p != tc.page || ps != tc.pageSize {
			t.Errorf("%q -> (%d,%d), want (%d,%d)", tc.query, p, ps, tc.page, tc.pageSize)
		}
	}

	if pg := newPagination(2, 10, 25); pg.TotalPages != 3 || !pg.HasNext {
		t.Fatalf("pagination = %+v", pg)
	}
	if pg := newPagination(3, 10, 25); pg.HasNext {
		t.Fatalf("last page reports next: %+v", pg)
	}
	if pg := newPagination(1, 0, 5); pg.TotalPages != 0 {
		t.Fatalf("zero page size = %+v", pg)
	}
}

func TestNotModified(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const tag = `W/"offers:u1:2:99"`

	cases := map[string]bool{
		"":                            false,
		tag:                           true,
		`"offers:u1:2:99"`:            true,
		`W/"offers:u1:1:50", ` + tag:  true,
		"*":                           true,
		`W/"offers:u2:2:99"`:          false,
	}
	for inm, want := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if inm != "" {
			c.Request.Header.Set("If-None-Match", inm)
		}
		if got := notModified(c, "offers", "u1", 2, 99); got != want {
			t.Errorf("If-None-Match %q -> %v, want %v", inm, got, want)
		}
		if w.Header().Get("ETag") != tag {
			t.Errorf("etag = %q", w.Header().Get("ETag"))
		}
	}
}
