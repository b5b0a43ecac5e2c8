package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-realty-backend/internal/config"
)

type putRecord struct {
	method, path, contentType, body string
	signed                          bool
}

func stubS3(t *testing.T, status int) (*httptest.Server, func() []putRecord) {
	t.Helper()
	var mu sync.Mutex
	var got []putRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, putRecord{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(b),
			signed:      strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256"),
		})
		mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []putRecord {
		mu.Lock()
		defer mu.Unlock()
		return append([]putRecord(nil), got...)
	}
}

func testConfig(endpoint string) config.StorageConfig {
	return config.StorageConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		Bucket:          "uploads",
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		MaxUploadBytes:  1 << 20,
	}
}

func TestUpload_PathStyleToCustomEndpoint(t *testing.T) {
	srv, records := stubS3(t, http.StatusOK)
	st, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	u, err := st.Upload(context.Background(), "avatars/u1/photo.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if want := srv.URL + "/uploads/avatars/u1/photo.png"; u != want {
		t.Fatalf("url = %q; want %q", u, want)
	}

	got := records()
	if len(got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got))
	}
	r := got[0]
	if r.method != http.MethodPut || r.path != "/uploads/avatars/u1/photo.png" {
		t.Fatalf("unexpected request %s %s", r.method, r.path)
	}
	if r.contentType != "image/png" || r.body != "png-bytes" || !r.signed {
		t.Fatalf("unexpected request details: %+v", r)
	}
}

func TestUpload_ErrorsAreWrapped(t *testing.T) {
	srv, _ := stubS3(t, http.StatusForbidden)
	st, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = st.Upload(context.Background(), "docs/x.pdf", "application/pdf", []byte("%PDF"))
	if err == nil || !strings.Contains(err.Error(), "storage: put docs/x.pdf") {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestUpload_InvalidKeys(t *testing.T) {
	srv, records := stubS3(t, http.StatusOK)
	st, _ := New(context.Background(), testConfig(srv.URL))
	for _, k := range []string{"", "  ", "../etc/passwd", `a\b`, "/"} {
		if _, err := st.Upload(context.Background(), k, "image/png", nil); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", k, err)
		}
	}
	if n := len(records()); n != 0 {
		t.Fatalf("invalid keys must not reach the store, got %d requests", n)
	}
}

func TestNew_PublicURLVariants(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx, config.StorageConfig{Region: "us-east-1"}); err == nil {
		t.Fatalf("expected error without bucket")
	}

	cfg := testConfig("")
	st, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := st.URL("a b/c.png"); got != "https://uploads.s3.us-east-1.amazonaws.com/a%20b/c.png" {
		t.Fatalf("aws url = %q", got)
	}

	cfg.PublicURL = "https://cdn.example.com/public/"
	st, _ = New(ctx, cfg)
	if got := st.URL("k.png"); got != "https://cdn.example.com/public/k.png" {
		t.Fatalf("public url = %q", got)
	}
}
