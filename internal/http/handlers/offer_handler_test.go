package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

func (e *testEnv) mountOffers() {
	e.r.POST("/api/offers", e.h.CreateOffer)
	e.r.GET("/api/offers", e.h.ListOffers)
	e.r.GET("/api/offers/:id", e.h.GetOffer)
	e.r.POST("/api/offers/:id/decline", e.h.DeclineOffer)
	e.r.POST("/api/offers/:id/withdraw", e.h.WithdrawOffer)
}

func TestCreateOffer(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mountOffers()

	wantError(t, e.do(t, http.MethodPost, "/api/offers", "seller", map[string]any{"title": "x"}), http.StatusBadRequest, ErrCodeBadRequest, "required")
	wantError(t, e.do(t, http.MethodPost, "/api/offers", "seller", map[string]any{"recipient_id": "seller", "title": "x", "amount_cents": 5000}),
		http.StatusBadRequest, ErrCodeBadRequest, "yourself")
	wantError(t, e.do(t, http.MethodPost, "/api/offers", "seller", map[string]any{"recipient_id": "buyer", "title": "x", "amount_cents": 49}),
		http.StatusBadRequest, ErrCodeBadRequest, "minimum")

	w := e.do(t, http.MethodPost, "/api/offers", "seller", map[string]any{"recipient_id": "buyer", "title": " Drone shoot ", "amount_cents": 45000})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	o := decode[domain.Offer](t, w)
	if o.SenderID != "seller" || o.RecipientID != "buyer" || o.Title != "Drone shoot" || o.Status != domain.OfferPending {
		t.Fatalf("unexpected offer: %+v", o)
	}
}

func TestListOffers_PaginationAndETag(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mountOffers()
	for i := 0; i < 3; i++ {
		seedOffer(t, e.db, "seller", "buyer", 5000)
	}

	w := e.do(t, http.MethodGet, "/api/offers?page=1&page_size=2", "buyer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	res := decode[ListOffersResponse](t, w)
	if len(res.Offers) != 2 || res.Pagination.Total != 3 || !res.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", res.Pagination)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	if w := e.do(t, http.MethodGet, "/api/offers?page=1&page_size=2", "buyer", nil, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// The sent side has its own tag.
	w = e.do(t, http.MethodGet, "/api/offers?role=sent", "buyer", nil, "If-None-Match", etag)
	if w.Code != http.StatusOK || decode[ListOffersResponse](t, w).Pagination.Total != 0 {
		t.Fatalf("sent list = %d %s", w.Code, w.Body.String())
	}

	wantError(t, e.do(t, http.MethodGet, "/api/offers?role=both", "buyer", nil), http.StatusBadRequest, ErrCodeBadRequest, "role")
}

func TestOfferTransitions(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mountOffers()
	a := seedOffer(t, e.db, "seller", "buyer", 5000)
	b := seedOffer(t, e.db, "seller", "buyer", 5000)

	wantError(t, e.do(t, http.MethodGet, "/api/offers/not-a-uuid", "buyer", nil), http.StatusBadRequest, ErrCodeBadRequest, "UUID")
	wantError(t, e.do(t, http.MethodGet, "/api/offers/"+a.ID, "stranger", nil), http.StatusNotFound, ErrCodeNotFound, "")
	if w := e.do(t, http.MethodGet, "/api/offers/"+a.ID, "seller", nil); w.Code != http.StatusOK {
		t.Fatalf("sender get = %d", w.Code)
	}

	wantError(t, e.do(t, http.MethodPost, "/api/offers/"+a.ID+"/decline", "seller", nil), http.StatusForbidden, ErrCodeForbidden, "")
	if w := e.do(t, http.MethodPost, "/api/offers/"+a.ID+"/decline", "buyer", nil); w.Code != http.StatusNoContent {
		t.Fatalf("decline = %d %s", w.Code, w.Body.String())
	}
	wantError(t, e.do(t, http.MethodPost, "/api/offers/"+a.ID+"/decline", "buyer", nil), http.StatusBadRequest, ErrCodeOfferNotPending, "")

	wantError(t, e.do(t, http.MethodPost, "/api/offers/"+b.ID+"/withdraw", "buyer", nil), http.StatusForbidden, ErrCodeForbidden, "")
	if w := e.do(t, http.MethodPost, "/api/offers/"+b.ID+"/withdraw", "seller", nil); w.Code != http.StatusNoContent {
		t.Fatalf("withdraw = %d %s", w.Code, w.Body.String())
	}
}
