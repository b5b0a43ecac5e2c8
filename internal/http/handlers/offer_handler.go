// Offer HTTP handlers.
//
//   - POST /offers                 (send)
//   - GET  /offers?role=received   (list, paginated, ETag support)
//   - GET  /offers/{id}            (sender or recipient only)
//   - POST /offers/{id}/decline    (recipient only)
//   - POST /offers/{id}/withdraw   (sender only)
//
// Acceptance is not here: it only happens through the payment routes.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

// CreateOfferRequest is the JSON payload for sending an offer.
type CreateOfferRequest struct {
	RecipientID string `json:"recipient_id" binding:"required" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	Title       string `json:"title" binding:"required,max=255" example:"Listing photography package"`
	Description string `json:"description" example:"Twilight shoot plus drone, 40 edited photos"`
	AmountCents int64  `json:"amount_cents" binding:"required" example:"45000"`
}

// ListOffersResponse wraps a page of offers and pagination information.
type ListOffersResponse struct {
	Offers     []domain.Offer `json:"offers"`
	Pagination Pagination     `json:"pagination"`
}

func offerRole(c *gin.Context) (repo.OfferRole, bool) {
	switch strings.ToLower(strings.TrimSpace(c.DefaultQuery("role", string(repo.OfferRoleReceived)))) {
	case string(repo.OfferRoleReceived):
		return repo.OfferRoleReceived, true
	case string(repo.OfferRoleSent):
		return repo.OfferRoleSent, true
	}
	return "", false
}

// offerID reads and validates the :id path parameter.
func offerID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "offer id must be a UUID")
		return "", false
	}
	return id, true
}

// CreateOffer godoc
// @ID          createOffer
// @Summary     Send an offer
// @Tags        Offers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateOfferRequest  true  "Offer"
// @Success     201  {object}  domain.Offer
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /offers [post]
func (h *Handlers) CreateOffer(c *gin.Context) {
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipient_id, title and amount_cents are required")
		return
	}
	o, err := h.offers.Create(c.Request.Context(), userID(c), req.RecipientID, req.Title, req.Description, req.AmountCents)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, o)
}

// ListOffers godoc
// @ID          listOffers
// @Summary     List offers (paginated)
// @Description Returns the caller's received or sent offers. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Offers
// @Produce     json
// @Security    BearerAuth
// @Param       role           query   string  false "received or sent"  Enums(received, sent) default(received)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListOffersResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /offers [get]
func (h *Handlers) ListOffers(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	role, valid := offerRole(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be received or sent")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, ts, err := h.offers.Stats(ctx, uid, role); err == nil {
		if notModified(c, "offers-"+string(role), uid, count, ts) {
			return
		}
	}

	items, total, err := h.offers.ListPage(ctx, uid, role, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ListOffersResponse{Offers: items, Pagination: newPagination(page, pageSize, total)})
}

// GetOffer godoc
// @ID          getOffer
// @Summary     Get an offer
// @Tags        Offers
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Offer ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Offer
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Offer not found"
// @Router      /offers/{id} [get]
func (h *Handlers) GetOffer(c *gin.Context) {
	id, valid := offerID(c)
	if !valid {
		return
	}
	o, err := h.offers.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// DeclineOffer godoc
// @ID          declineOffer
// @Summary     Decline a pending offer
// @Tags        Offers
// @Security    BearerAuth
// @Param       id  path  string  true  "Offer ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Offer not pending"
// @Failure     403  {object}  handlers.ErrorResponse  "Caller is not the recipient"
// @Failure     404  {object}  handlers.ErrorResponse  "Offer not found"
// @Router      /offers/{id}/decline [post]
func (h *Handlers) DeclineOffer(c *gin.Context) {
	id, valid := offerID(c)
	if !valid {
		return
	}
	if err := h.offers.Decline(c.Request.Context(), userID(c), id); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

// WithdrawOffer godoc
// @ID          withdrawOffer
// @Summary     Withdraw a pending offer
// @Tags        Offers
// @Security    BearerAuth
// @Param       id  path  string  true  "Offer ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Offer not pending"
// @Failure     403  {object}  handlers.ErrorResponse  "Caller is not the sender"
// @Failure     404  {object}  handlers.ErrorResponse  "Offer not found"
// @Router      /offers/{id}/withdraw [post]
func (h *Handlers) WithdrawOffer(c *gin.Context) {
	id, valid := offerID(c)
	if !valid {
		return
	}
	if err := h.offers.Withdraw(c.Request.Context(), userID(c), id); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
