package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestOffersStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := OffersStats(context.Background(), db, "u1", OfferRoleReceived); err == nil {
		t.Fatalf("expected error due to missing offers table")
	}
}

func TestOffersStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.Offer{})
	count, maxAt, err := OffersStats(context.Background(), db, "u1", OfferRoleReceived)
	if err != nil {
		t.Fatalf("OffersStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestOffersStats_FilterByRoleAndMax(t *testing.T) {
	db := newTestDB(t, &domain.Offer{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1 as recipient
	t3 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)   // u1 as sender

	seed := []domain.Offer{
		{ID: "o1", SenderID: "s", RecipientID: "u1", Title: "a", AmountCents: 100, Status: domain.OfferPending, CreatedAt: t1, UpdatedAt: t1},
		{ID: "o2", SenderID: "s", RecipientID: "u1", Title: "b", AmountCents: 100, Status: domain.OfferPending, CreatedAt: t2, UpdatedAt: t2},
		{ID: "o3", SenderID: "u1", RecipientID: "x", Title: "c", AmountCents: 100, Status: domain.OfferPending, CreatedAt: t3, UpdatedAt: t3},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", seed[i].ID, err)
		}
	}

	count, maxAt, err := OffersStats(context.Background(), db, "u1", OfferRoleReceived)
	if err != nil {
		t.Fatalf("OffersStats error: %v", err)
	}
	if count != 2 || maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("received stats = (%d, %v); want (2, %v)", count, maxAt, t2)
	}

	count, maxAt, err = OffersStats(context.Background(), db, "u1", OfferRoleSent)
	if err != nil {
		t.Fatalf("OffersStats error: %v", err)
	}
	if count != 1 || maxAt == nil || !maxAt.Equal(t3) {
		t.Fatalf("sent stats = (%d, %v); want (1, %v)", count, maxAt, t3)
	}
}

func TestNotificationsStats(t *testing.T) {
	db := newTestDB(t, &domain.CrowdfundingNotification{})
	ctx := context.Background()

	count, maxAt, err := NotificationsStats(ctx, db, "u1")
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("empty stats = (%d, %v, %v)", count, maxAt, err)
	}

	t1 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{t1, t2} {
		n := &domain.CrowdfundingNotification{ID: fmt.Sprintf("n%d", i), UserID: "u1", ProjectID: "p", Kind: "k", Message: "m", CreatedAt: at}
		if err := db.Create(n).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	count, maxAt, err = NotificationsStats(ctx, db, "u1")
	if err != nil || count != 2 || maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("stats = (%d, %v, %v); want (2, %v)", count, maxAt, err, t2)
	}
}
