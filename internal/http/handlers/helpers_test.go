package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/http/middleware"
	"github.com/tbourn/go-realty-backend/internal/payments"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/services"
)

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ---------- payment processor fake ----------

type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]*payments.Intent
	keys    []string
	err     error
}

func newFakeGateway() *fakeGateway { return &fakeGateway{intents: map[string]*payments.Intent{}} }

func (g *fakeGateway) CreateIntent(_ context.Context, p payments.CreateParams) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.keys = append(g.keys, p.IdempotencyKey)
	id := fmt.Sprintf("pi_%d", len(g.keys))
	in := &payments.Intent{ID: id, ClientSecret: id + "_secret", AmountCents: p.AmountCents, Status: "requires_payment_method", Metadata: p.Metadata}
	g.intents[id] = in
	return in, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, payments.ErrIntentNotFound
	}
	cp := *in
	return &cp, nil
}

func (g *fakeGateway) succeed(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = payments.StatusSucceeded
}

// ---------- object store fake ----------

type memStore struct{ keys []string }

func (m *memStore) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	m.keys = append(m.keys, key)
	return "https://cdn.test/" + key, nil
}

// ---------- wiring ----------

type testEnv struct {
	db *gorm.DB
	gw *fakeGateway
	h  *Handlers
	r  *gin.Engine
}

// newTestEnv builds real services over an in-memory DB. Requests name their
// caller with X-Test-User, standing in for the bearer-token middleware.
func newTestEnv(t *testing.T, store services.ObjectStore) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	gw := newFakeGateway()

	profiles := services.NewProfileService(db, nil, store)
	profiles.MaxUploadBytes = 64
	h := New(Services{
		Payments:      services.NewPaymentService(db, gw),
		Crowdfunding:  services.NewCrowdfundingService(db, gw),
		Offers:        services.NewOfferService(db),
		Profiles:      profiles,
		Messages:      services.NewMessageService(db),
		Feed:          services.NewFeedService(db),
		Notifications: services.NewNotificationService(db),
		Webhooks:      services.NewWebhookService(db),
	})
	h.MaxUploadBytes = 64

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set("userID", u)
		}
		c.Next()
	})
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	return &testEnv{db: db, gw: gw, h: h, r: r}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// wantError asserts the status, code and (substring of) the error field.
func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code, msg string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.RequestID != "rid-test" || (code != "" && er.Code != code) || !strings.Contains(er.Error, msg) {
		t.Fatalf("unexpected error body: %+v", er)
	}
}

func seedOffer(t *testing.T, db *gorm.DB, sender, recipient string, cents int64) *domain.Offer {
	t.Helper()
	o, err := repo.CreateOffer(context.Background(), db, sender, recipient, "Listing photos", "", cents)
	if err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	return o
}

func seedProject(t *testing.T, db *gorm.DB, owner string, status domain.ProjectStatus, minCents int64) *domain.CrowdfundingProject {
	t.Helper()
	p := &domain.CrowdfundingProject{
		ID:                 uuid.NewString(),
		OwnerID:            owner,
		Title:              "Elm Court Fourplex",
		GoalCents:          5_000_000,
		MinInvestmentCents: minCents,
		Status:             status,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}
