package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

func TestOfferService_Create(t *testing.T) {
	db := newServiceDB(t)
	svc := NewOfferService(db)
	svc.TitleMaxLen = 10
	ctx := context.Background()

	o, err := svc.Create(ctx, "seller", " buyer ", "  Home\t staging   plan ", " notes ", 5000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.RecipientID != "buyer" || o.Title != "Home stagi" || o.Description != "notes" || o.Status != domain.OfferPending {
		t.Fatalf("unexpected offer: %+v", o)
	}

	cases := []struct {
		name      string
		recipient string
		title     string
		amount    int64
		want      error
	}{
		{"no recipient", " ", "t", 5000, ErrRecipientRequired},
		{"self offer", "seller", "t", 5000, ErrSelfOffer},
		{"blank title", "buyer", "  \n ", 5000, ErrTitleRequired},
		{"below minimum", "buyer", "t", domain.MinOfferAmountCents - 1, ErrAmountTooSmall},
		{"above maximum", "buyer", "t", domain.MaxChargeCents + 1, ErrAmountTooLarge},
		{"int64 max", "buyer", "t", math.MaxInt64, ErrAmountTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, "seller", tc.recipient, tc.title, "", tc.amount); !errors.Is(err, tc.want) {
				t.Fatalf("got %v; want %v", err, tc.want)
			}
		})
	}
}

func TestOfferService_VisibilityAndTransitions(t *testing.T) {
	db := newServiceDB(t)
	svc := NewOfferService(db)
	ctx := context.Background()

	a := seedOffer(t, db, "seller", "buyer", 5000)
	b := seedOffer(t, db, "seller", "buyer", 7000)

	if _, err := svc.Get(ctx, "stranger", a.ID); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("stranger Get: %v", err)
	}
	if _, err := svc.Get(ctx, "seller", a.ID); err != nil {
		t.Fatalf("sender Get: %v", err)
	}

	if err := svc.Decline(ctx, "seller", a.ID); !errors.Is(err, ErrNotOfferRecipient) {
		t.Fatalf("sender decline: %v", err)
	}
	if err := svc.Decline(ctx, "buyer", a.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if err := svc.Decline(ctx, "buyer", a.ID); !errors.Is(err, ErrOfferNotPending) {
		t.Fatalf("second decline: %v", err)
	}

	if err := svc.Withdraw(ctx, "buyer", b.ID); !errors.Is(err, ErrNotOfferSender) {
		t.Fatalf("recipient withdraw: %v", err)
	}
	if err := svc.Withdraw(ctx, "seller", b.ID); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	got, _ := repo.GetOffer(ctx, db, b.ID)
	if got.Status != domain.OfferWithdrawn {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestOfferService_ListPageAndStats(t *testing.T) {
	db := newServiceDB(t)
	svc := NewOfferService(db)
	ctx := context.Background()

	items, total, err := svc.ListPage(ctx, "buyer", repo.OfferRoleReceived, 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty ListPage = (%v, %d, %v)", items, total, err)
	}
	if n, ts, err := svc.Stats(ctx, "buyer", repo.OfferRoleReceived); err != nil || n != 0 || ts != 0 {
		t.Fatalf("empty Stats = (%d, %d, %v)", n, ts, err)
	}

	for i := 0; i < 3; i++ {
		seedOffer(t, db, "seller", "buyer", 5000)
	}
	seedOffer(t, db, "buyer", "seller", 5000)

	items, total, err = svc.ListPage(ctx, "buyer", repo.OfferRoleReceived, 1, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("received page = (%d items, total %d, %v)", len(items), total, err)
	}
	_, total, _ = svc.ListPage(ctx, "buyer", repo.OfferRoleSent, 1, 10)
	if total != 1 {
		t.Fatalf("sent total = %d", total)
	}
	n, ts, err := svc.Stats(ctx, "buyer", repo.OfferRoleReceived)
	if err != nil || n != 3 || ts == 0 {
		t.Fatalf("Stats = (%d, %d, %v)", n, ts, err)
	}
}

func TestMessageService(t *testing.T) {
	db := newServiceDB(t)
	svc := NewMessageService(db)
	svc.MaxContentRunes = 5
	ctx := context.Background()

	if _, err := repo.EnsureProfile(ctx, db, "bob"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	cases := []struct {
		name, to, content string
		want              error
	}{
		{"no recipient", "", "hi", ErrRecipientRequired},
		{"self", "alice", "hi", ErrSelfMessage},
		{"empty", "bob", "   ", ErrEmptyContent},
		{"too long", "bob", "héllo!", ErrContentTooLong},
		{"unknown recipient", "ghost", "hi", ErrProfileNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Send(ctx, "alice", tc.to, tc.content); !errors.Is(err, tc.want) {
				t.Fatalf("got %v; want %v", err, tc.want)
			}
		})
	}

	if _, err := svc.Send(ctx, "alice", "bob", " héllo "); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := svc.Send(ctx, "alice", "bob", "again"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, total, err := svc.Thread(ctx, "bob", "alice", 1, 10)
	if err != nil || total != 2 || msgs[0].Content != "héllo" {
		t.Fatalf("Thread = (%+v, %d, %v)", msgs, total, err)
	}
	if n, _ := svc.UnreadCount(ctx, "bob"); n != 2 {
		t.Fatalf("unread = %d", n)
	}
	// The sender marking the thread read must not touch the recipient's side.
	if n, _ := svc.MarkRead(ctx, "alice", "bob"); n != 0 {
		t.Fatalf("sender MarkRead updated %d rows", n)
	}
	if n, err := svc.MarkRead(ctx, "bob", "alice"); err != nil || n != 2 {
		t.Fatalf("MarkRead = (%d, %v)", n, err)
	}
	if n, _ := svc.UnreadCount(ctx, "bob"); n != 0 {
		t.Fatalf("unread after MarkRead = %d", n)
	}
}

func TestFeedService(t *testing.T) {
	db := newServiceDB(t)
	svc := NewFeedService(db)
	ctx := context.Background()

	if _, err := svc.CreatePost(ctx, "alice", "  "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("empty post: %v", err)
	}
	if _, err := svc.CreatePost(ctx, "alice", strings.Repeat("x", 5001)); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("long post: %v", err)
	}
	p, err := svc.CreatePost(ctx, "alice", "Just listed a 3BR in Austin")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if _, err := svc.CreatePost(ctx, "bob", "Open house Sunday"); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	_, total, err := svc.ListPage(ctx, "", 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("feed total = %d, %v", total, err)
	}
	items, total, _ := svc.ListPage(ctx, "alice", 1, 10)
	if total != 1 || items[0].ID != p.ID {
		t.Fatalf("author feed = %+v", items)
	}

	if err := svc.Delete(ctx, "bob", p.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := svc.Delete(ctx, "alice", p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, total, _ := svc.ListPage(ctx, "alice", 1, 10); total != 0 {
		t.Fatalf("deleted post still listed")
	}
}

func TestNotificationService(t *testing.T) {
	db := newServiceDB(t)
	svc := NewNotificationService(db)
	ctx := context.Background()

	n1, err := repo.CreateNotification(ctx, db, "u1", "p1", domain.NotificationPledgeConfirmed, "one")
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if _, err := repo.CreateNotification(ctx, db, "u1", "p1", domain.NotificationPledgeConfirmed, "two"); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	count, latest, unread, err := svc.Stats(ctx, "u1")
	if err != nil || count != 2 || latest == 0 || unread != 2 {
		t.Fatalf("Stats = (%d, %d, %d, %v)", count, latest, unread, err)
	}

	if err := svc.MarkRead(ctx, "u2", n1.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("foreign MarkRead: %v", err)
	}
	if err := svc.MarkRead(ctx, "u1", n1.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	items, total, err := svc.ListPage(ctx, "u1", true, 1, 10)
	if err != nil || total != 1 || items[0].Message != "two" {
		t.Fatalf("unread ListPage = (%+v, %d, %v)", items, total, err)
	}
	if _, _, unread, _ := svc.Stats(ctx, "u1"); unread != 1 {
		t.Fatalf("unread after MarkRead = %d", unread)
	}
}
