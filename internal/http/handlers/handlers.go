// Package handlers exposes the marketplace REST endpoints.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services, and translate results into HTTP responses
// (including conditional responses). Service sentinel errors are mapped to
// statuses in one place, writeError, so every route follows the same
// taxonomy: 400 validation, 403 ownership, 404 missing resource, 500
// anything unexpected (with the error's message).
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/auth"
	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/payments"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// PaymentService gates offer acceptance behind a successful payment.
type PaymentService interface {
	CreateOfferIntent(ctx context.Context, callerID, offerID, idemKey string) (string, error)
	AcceptOfferAfterPayment(ctx context.Context, callerID, intentID string) error
}

// CrowdfundingService handles investments and project listings.
type CrowdfundingService interface {
	CreateInvestmentIntent(ctx context.Context, callerID, projectID string, amountCents float64, idemKey string) (*services.InvestmentIntent, error)
	ConfirmInvestment(ctx context.Context, callerID, intentID string) (*domain.CrowdfundingPledge, error)
	ListProjects(ctx context.Context, statuses []domain.ProjectStatus, page, pageSize int) ([]domain.CrowdfundingProject, int64, error)
	GetProject(ctx context.Context, projectID string) (*services.ProjectView, error)
	ListMyPledges(ctx context.Context, userID string) ([]domain.CrowdfundingPledge, error)
}

// OfferService manages offers outside of the payment path.
type OfferService interface {
	Create(ctx context.Context, senderID, recipientID, title, description string, amountCents int64) (*domain.Offer, error)
	Get(ctx context.Context, userID, offerID string) (*domain.Offer, error)
	ListPage(ctx context.Context, userID string, role repo.OfferRole, page, pageSize int) ([]domain.Offer, int64, error)
	Decline(ctx context.Context, userID, offerID string) error
	Withdraw(ctx context.Context, userID, offerID string) error
	Stats(ctx context.Context, userID string, role repo.OfferRole) (int64, int64, error)
}

// ProfileService covers profiles, the directory and registration.
type ProfileService interface {
	Me(ctx context.Context, userID string) (*domain.Profile, error)
	Get(ctx context.Context, viewerID, id string) (*domain.Profile, error)
	Browse(ctx context.Context, q services.DirectoryQuery) (*services.DirectoryPage, error)
	SaveRegistrationStep(ctx context.Context, userID string, step int, in services.RegistrationInput) (*domain.Profile, error)
	CompleteRegistration(ctx context.Context, userID string) (*domain.Profile, error)
	UploadAvatar(ctx context.Context, userID, contentType string, data []byte) (*domain.Profile, error)
	UploadLicenseDocument(ctx context.Context, userID, contentType string, data []byte) (*domain.Profile, error)
}

// MessageService covers direct messages.
type MessageService interface {
	Send(ctx context.Context, senderID, recipientID, content string) (*domain.DirectMessage, error)
	Thread(ctx context.Context, userID, otherID string, page, pageSize int) ([]domain.DirectMessage, int64, error)
	MarkRead(ctx context.Context, userID, otherID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// FeedService covers the network feed.
type FeedService interface {
	CreatePost(ctx context.Context, authorID, content string) (*domain.Post, error)
	ListPage(ctx context.Context, authorID string, page, pageSize int) ([]domain.Post, int64, error)
	Delete(ctx context.Context, authorID, postID string) error
}

// NotificationService covers in-app notifications.
type NotificationService interface {
	ListPage(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]domain.CrowdfundingNotification, int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (count, latest, unread int64, err error)
}

// WebhookService processes verified processor events.
type WebhookService interface {
	Handle(ctx context.Context, ev *payments.Event) (string, error)
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Nil members leave their
// routes unmounted by the router.
type Services struct {
	Payments      PaymentService
	Crowdfunding  CrowdfundingService
	Offers        OfferService
	Profiles      ProfileService
	Messages      MessageService
	Feed          FeedService
	Notifications NotificationService
	Webhooks      WebhookService
}

// Handlers groups the HTTP endpoints of the marketplace.
type Handlers struct {
	pay      PaymentService
	funding  CrowdfundingService
	offers   OfferService
	profiles ProfileService
	msgs     MessageService
	feed     FeedService
	notes    NotificationService
	hooks    WebhookService

	// WebhookSecret verifies Stripe-Signature headers.
	WebhookSecret string
	// MaxUploadBytes caps multipart uploads read by the upload handlers.
	MaxUploadBytes int64
}

// New constructs and returns a Handlers instance bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		pay:            s.Payments,
		funding:        s.Crowdfunding,
		offers:         s.Offers,
		profiles:       s.Profiles,
		msgs:           s.Messages,
		feed:           s.Feed,
		notes:          s.Notifications,
		hooks:          s.Webhooks,
		MaxUploadBytes: 5 << 20,
	}
}

// userID returns the caller id stored by the auth middleware.
func userID(c *gin.Context) string { return auth.UserID(c) }

// writeError maps a service error to the error envelope.
func writeError(c *gin.Context, err error) {
	var minErr *services.MinimumInvestmentError
	switch {
	case errors.As(err, &minErr):
		fail(c, http.StatusBadRequest, ErrCodeMinimumInvestment, minErr.Error())

	case errors.Is(err, services.ErrOfferNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrPostNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case errors.Is(err, services.ErrNotOfferRecipient),
		errors.Is(err, services.ErrNotOfferSender),
		errors.Is(err, services.ErrPaymentNotOwned),
		errors.Is(err, services.ErrOwnProject):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())

	case errors.Is(err, services.ErrOfferNotPending):
		fail(c, http.StatusBadRequest, ErrCodeOfferNotPending, err.Error())
	case errors.Is(err, services.ErrPaymentNotSucceeded):
		fail(c, http.StatusBadRequest, ErrCodePaymentNotSucceeded, err.Error())
	case errors.Is(err, services.ErrMissingMetadata):
		fail(c, http.StatusBadRequest, ErrCodeMissingMetadata, err.Error())
	case errors.Is(err, services.ErrProjectNotOpen):
		fail(c, http.StatusBadRequest, ErrCodeProjectNotOpen, err.Error())

	case errors.Is(err, services.ErrFileTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
	case errors.Is(err, services.ErrUnsupportedFile):
		fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedFile, err.Error())
	case errors.Is(err, services.ErrStorageDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())

	// An unknown intent id is bad input, not a missing marketplace resource.
	case errors.Is(err, services.ErrIntentNotFound),
		errors.Is(err, services.ErrMissingIntentID),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrAmountTooSmall),
		errors.Is(err, services.ErrAmountTooLarge),
		errors.Is(err, services.ErrSelfOffer),
		errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrRecipientRequired),
		errors.Is(err, services.ErrSelfMessage),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrContentTooLong),
		errors.Is(err, services.ErrStepOutOfOrder),
		errors.Is(err, services.ErrInvalidStep),
		errors.Is(err, services.ErrInvalidProfile),
		errors.Is(err, services.ErrRegistrationOpen):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())

	default:
		msg := err.Error()
		if msg == "" {
			msg = "Internal server error"
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msg)
	}
}
