package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/http/middleware"
	"github.com/tbourn/go-realty-backend/internal/payments"
)

// WebhookAck is returned for every delivery that was verified and recorded.
type WebhookAck struct {
	Received bool   `json:"received" example:"true"`
	Status   string `json:"status" example:"processed"`
}

// StripeWebhook godoc
// @ID          stripeWebhook
// @Summary     Receive payment processor events
// @Description Verifies Stripe-Signature, records the event once, and accepts offers whose payment succeeded.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature  header  string  true  "Processor signature"
// @Success     200  {object}  handlers.WebhookAck
// @Failure     400  {object}  handlers.ErrorResponse  "Bad signature or payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Processing failed; the processor retries"
// @Router      /webhooks/stripe [post]
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "payload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read body")
		return
	}

	ev, err := payments.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("webhook rejected")
		code := ErrCodeBadRequest
		if errors.Is(err, payments.ErrInvalidSignature) {
			code = ErrCodeInvalidSignature
		}
		fail(c, http.StatusBadRequest, code, "invalid webhook")
		return
	}

	status, err := h.hooks.Handle(c.Request.Context(), ev)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	middleware.LoggerFrom(c).Info().
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("status", status).
		Msg("webhook handled")
	ok(c, http.StatusOK, WebhookAck{Received: true, Status: status})
}
