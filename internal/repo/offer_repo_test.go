package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

func TestCreateOffer_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	o, err := CreateOffer(context.Background(), db, "s", "r", "t", "", 100)
	if err == nil || o != nil {
		t.Fatalf("expected error creating without table, got offer=%v err=%v", o, err)
	}
}

func TestCreateAndGetOffer(t *testing.T) {
	db := newTestDB(t, &domain.Offer{})
	ctx := context.Background()

	o, err := CreateOffer(ctx, db, "seller", "buyer", "Listing photos", "10 rooms", 12500)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if o.ID == "" || o.Status != domain.OfferPending || o.AcceptedAt != nil {
		t.Fatalf("unexpected offer: %+v", o)
	}

	got, err := GetOffer(ctx, db, o.ID)
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if got.AmountCents != 12500 || got.SenderID != "seller" || got.RecipientID != "buyer" {
		t.Fatalf("readback mismatch: %+v", got)
	}

	if _, err := GetOffer(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcceptOfferIfPending_OnlyOnce(t *testing.T) {
	db := newTestDB(t, &domain.Offer{})
	ctx := context.Background()

	o, err := CreateOffer(ctx, db, "seller", "buyer", "t", "", 5000)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	// Wrong recipient matches nothing.
	if err := AcceptOfferIfPending(ctx, db, o.ID, "intruder", "pi_1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong recipient, got %v", err)
	}

	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	if err := AcceptOfferIfPending(ctx, db, o.ID, "buyer", "pi_1", now); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	got, _ := GetOffer(ctx, db, o.ID)
	if got.Status != domain.OfferAccepted || got.AcceptedAt == nil || !got.AcceptedAt.Equal(now) {
		t.Fatalf("offer not accepted as expected: %+v", got)
	}
	if got.PaymentIntentID == nil || *got.PaymentIntentID != "pi_1" {
		t.Fatalf("payment intent not recorded: %+v", got)
	}

	// Second acceptance affects zero rows and leaves the row untouched.
	if err := AcceptOfferIfPending(ctx, db, o.ID, "buyer", "pi_2", now.Add(time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second accept, got %v", err)
	}
	again, _ := GetOffer(ctx, db, o.ID)
	if !again.AcceptedAt.Equal(now) || *again.PaymentIntentID != "pi_1" {
		t.Fatalf("second accept must not modify the offer: %+v", again)
	}
}

func TestDeclineAndWithdraw(t *testing.T) {
	db := newTestDB(t, &domain.Offer{})
	ctx := context.Background()

	a, _ := CreateOffer(ctx, db, "seller", "buyer", "a", "", 100)
	b, _ := CreateOffer(ctx, db, "seller", "buyer", "b", "", 100)

	if err := DeclineOfferIfPending(ctx, db, a.ID, "seller"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("sender must not decline: %v", err)
	}
	if err := DeclineOfferIfPending(ctx, db, a.ID, "buyer"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := AcceptOfferIfPending(ctx, db, a.ID, "buyer", "pi", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("declined offer must not be accepted: %v", err)
	}

	if err := WithdrawOfferIfPending(ctx, db, b.ID, "buyer"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("recipient must not withdraw: %v", err)
	}
	if err := WithdrawOfferIfPending(ctx, db, b.ID, "seller"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	got, _ := GetOffer(ctx, db, b.ID)
	if got.Status != domain.OfferWithdrawn {
		t.Fatalf("expected withdrawn, got %s", got.Status)
	}
}

func TestListOffersPage_ByRole(t *testing.T) {
	db := newTestDB(t, &domain.Offer{})
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"o1", "o2", "o3"} {
		at := base.Add(time.Duration(i) * time.Hour)
		o := &domain.Offer{ID: id, SenderID: "s", RecipientID: "u1", Title: id, AmountCents: 100, Status: domain.OfferPending, CreatedAt: at, UpdatedAt: at}
		if err := db.Create(o).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	out := &domain.Offer{ID: "o4", SenderID: "u1", RecipientID: "x", Title: "mine", AmountCents: 100, Status: domain.OfferPending, CreatedAt: base, UpdatedAt: base}
	if err := db.Create(out).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	total, err := CountOffers(ctx, db, "u1", OfferRoleReceived)
	if err != nil || total != 3 {
		t.Fatalf("CountOffers received = (%d, %v)", total, err)
	}
	page, err := ListOffersPage(ctx, db, "u1", OfferRoleReceived, 0, 2)
	if err != nil || len(page) != 2 || page[0].ID != "o3" || page[1].ID != "o2" {
		t.Fatalf("ListOffersPage = %+v, %v", page, err)
	}
	sent, err := ListOffersPage(ctx, db, "u1", OfferRoleSent, 0, 10)
	if err != nil || len(sent) != 1 || sent[0].ID != "o4" {
		t.Fatalf("sent page = %+v, %v", sent, err)
	}
}
