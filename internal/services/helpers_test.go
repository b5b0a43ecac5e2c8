package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/payments"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeGateway records created intents and serves them back by id.
type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]*payments.Intent
	created []payments.CreateParams
	err     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*payments.Intent{}}
}

func (g *fakeGateway) CreateIntent(_ context.Context, p payments.CreateParams) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, p)
	id := fmt.Sprintf("pi_%d", len(g.created))
	in := &payments.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  p.AmountCents,
		Currency:     "usd",
		Status:       "requires_payment_method",
		Metadata:     p.Metadata,
	}
	g.intents[id] = in
	return in, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	in, ok := g.intents[id]
	if !ok {
		return nil, payments.ErrIntentNotFound
	}
	cp := *in
	return &cp, nil
}

// put registers an intent directly, as if created elsewhere.
func (g *fakeGateway) put(in *payments.Intent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[in.ID] = in
}

func (g *fakeGateway) succeed(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = payments.StatusSucceeded
}

func (g *fakeGateway) lastCreated(t *testing.T) payments.CreateParams {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.created) == 0 {
		t.Fatalf("no intent created")
	}
	return g.created[len(g.created)-1]
}

func seedOffer(t *testing.T, db *gorm.DB, sender, recipient string, cents int64) *domain.Offer {
	t.Helper()
	o, err := repo.CreateOffer(context.Background(), db, sender, recipient, "Staging consult", "", cents)
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
		Title:              "Maple Street Duplex",
		GoalCents:          10_000_000,
		MinInvestmentCents: minCents,
		Status:             status,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}
