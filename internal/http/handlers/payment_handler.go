// Payment HTTP handlers.
//
// This file exposes the payment-gated routes:
//   - POST /create-payment-intent          (offer intent, recipient only)
//   - POST /accept-offer-after-payment     (pending -> accepted once paid)
//   - POST /crowdfunding-payment-intent    (investment intent)
//   - POST /confirm-crowdfunding-payment   (record the paid pledge)
//
// Bodies use camelCase field names because browser clients post them as-is.
// The Idempotency-Key header, when present, is forwarded to the processor.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/http/middleware"
)

//
// DTOs
//

// CreatePaymentIntentRequest names the offer the caller wants to pay for.
type CreatePaymentIntentRequest struct {
	OfferID string `json:"offerId" example:"0b8f5f3e-8c1a-4a53-9a57-1a0f6f3c2d11"`
}

// CreatePaymentIntentResponse carries the secret the browser confirms with.
type CreatePaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret" example:"pi_123_secret_456"`
}

// PaymentIntentRequest names a processor intent to verify.
type PaymentIntentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" example:"pi_3NkXYZ"`
}

// SuccessResponse reports a completed state transition.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// CrowdfundingIntentRequest starts an investment. AmountCents may carry a
// fraction; it is rounded to whole cents.
type CrowdfundingIntentRequest struct {
	ProjectID   string   `json:"projectId" example:"5a1d9c3e-6f0b-4a8e-9d2c-7b3e1f4a5c6d"`
	AmountCents *float64 `json:"amountCents" example:"25000"`
}

// CrowdfundingIntentResponse carries the secret and id of the new intent.
type CrowdfundingIntentResponse struct {
	ClientSecret    string `json:"clientSecret" example:"pi_123_secret_456"`
	PaymentIntentID string `json:"paymentIntentId" example:"pi_123"`
}

// ConfirmCrowdfundingResponse carries the stored pledge.
type ConfirmCrowdfundingResponse struct {
	Success bool                       `json:"success" example:"true"`
	Pledge  *domain.CrowdfundingPledge `json:"pledge"`
}

func idempotencyKey(c *gin.Context) string {
	k, _ := middleware.GetIdempotencyKey(c)
	return k
}

//
// Handlers
//

// CreatePaymentIntent godoc
// @ID          createPaymentIntent
// @Summary     Create a payment intent for an offer
// @Description Only the offer recipient can pay, and only while the offer is pending.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Client retry key"
// @Param       body  body  handlers.CreatePaymentIntentRequest  true  "Offer to pay for"
// @Success     200  {object}  handlers.CreatePaymentIntentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or offer not pending"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Caller is not the recipient"
// @Failure     404  {object}  handlers.ErrorResponse  "Offer not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /create-payment-intent [post]
func (h *Handlers) CreatePaymentIntent(c *gin.Context) {
	var req CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.OfferID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing offerId")
		return
	}

	secret, err := h.pay.CreateOfferIntent(c.Request.Context(), userID(c), req.OfferID, idempotencyKey(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, CreatePaymentIntentResponse{ClientSecret: secret})
}

// AcceptOfferAfterPayment godoc
// @ID          acceptOfferAfterPayment
// @Summary     Accept an offer once its payment succeeded
// @Description Verifies the intent with the processor and flips the offer from pending to accepted.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.PaymentIntentRequest  true  "Paid intent"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Not paid, bad metadata or offer not pending"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Payment made by another user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /accept-offer-after-payment [post]
func (h *Handlers) AcceptOfferAfterPayment(c *gin.Context) {
	var req PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing paymentIntentId")
		return
	}

	if err := h.pay.AcceptOfferAfterPayment(c.Request.Context(), userID(c), req.PaymentIntentID); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, SuccessResponse{Success: true})
}

// CrowdfundingPaymentIntent godoc
// @ID          crowdfundingPaymentIntent
// @Summary     Create a payment intent for an investment
// @Description The amount must reach the larger of the platform floor and the project's minimum.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Client retry key"
// @Param       body  body  handlers.CrowdfundingIntentRequest  true  "Project and amount"
// @Success     200  {object}  handlers.CrowdfundingIntentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid amount, below minimum or project closed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Owners cannot invest"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /crowdfunding-payment-intent [post]
func (h *Handlers) CrowdfundingPaymentIntent(c *gin.Context) {
	var req CrowdfundingIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" || req.AmountCents == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing projectId or amountCents")
		return
	}

	in, err := h.funding.CreateInvestmentIntent(c.Request.Context(), userID(c), req.ProjectID, *req.AmountCents, idempotencyKey(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, CrowdfundingIntentResponse{ClientSecret: in.ClientSecret, PaymentIntentID: in.PaymentIntentID})
}

// ConfirmCrowdfundingPayment godoc
// @ID          confirmCrowdfundingPayment
// @Summary     Record a paid investment
// @Description Upserts the caller's pledge for the project with the amount the processor charged.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.PaymentIntentRequest  true  "Paid intent"
// @Success     200  {object}  handlers.ConfirmCrowdfundingResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Not paid or bad metadata"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Payment made by another user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /confirm-crowdfunding-payment [post]
func (h *Handlers) ConfirmCrowdfundingPayment(c *gin.Context) {
	var req PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing paymentIntentId")
		return
	}

	pledge, err := h.funding.ConfirmInvestment(c.Request.Context(), userID(c), req.PaymentIntentID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ConfirmCrowdfundingResponse{Success: true, Pledge: pledge})
}
