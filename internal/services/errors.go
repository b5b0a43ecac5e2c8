// Package services defines the business logic for offers, payments,
// crowdfunding, profiles, messaging and the network feed.
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages and HTTP status codes is performed
// at the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Offer and offer-payment errors.
var (
	// ErrOfferNotFound indicates that the offer does not exist.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrNotOfferRecipient is returned when someone other than the recipient
	// tries to pay for or answer an offer.
	ErrNotOfferRecipient = errors.New("only the offer recipient can accept this offer")

	// ErrNotOfferSender is returned when someone other than the sender tries
	// to withdraw an offer.
	ErrNotOfferSender = errors.New("only the offer sender can withdraw this offer")

	// ErrOfferNotPending is returned when the offer already left the pending
	// state, including the losing side of a concurrent acceptance.
	ErrOfferNotPending = errors.New("offer is no longer pending")

	// ErrAmountTooSmall is returned for offers below the chargeable minimum.
	ErrAmountTooSmall = errors.New("offer amount is below the minimum chargeable amount")

	// ErrAmountTooLarge is returned for offers above the largest chargeable amount.
	ErrAmountTooLarge = errors.New("offer amount is above the maximum chargeable amount")

	// ErrSelfOffer is returned when sender and recipient are the same user.
	ErrSelfOffer = errors.New("you cannot send an offer to yourself")

	// ErrTitleRequired is returned when an offer has no title.
	ErrTitleRequired = errors.New("title is required")
)

// Payment verification errors shared by the offer and crowdfunding paths.
var (
	// ErrMissingIntentID is returned when a request does not name an intent.
	ErrMissingIntentID = errors.New("missing payment intent id")

	// ErrIntentNotFound is returned when the processor does not know the intent.
	ErrIntentNotFound = errors.New("payment not found")

	// ErrMissingMetadata is returned when an intent lacks the metadata that
	// binds it to a resource and a payer.
	ErrMissingMetadata = errors.New("payment metadata is incomplete")

	// ErrPaymentNotOwned is returned when the intent was created for a
	// different user than the caller.
	ErrPaymentNotOwned = errors.New("payment does not belong to the current user")

	// ErrPaymentNotSucceeded is returned when the intent has not been paid.
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
)

// Crowdfunding errors.
var (
	// ErrInvalidAmount is returned when an amount is missing, non-finite, not
	// positive or above domain.MaxChargeCents.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrProjectNotFound indicates that the project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrOwnProject is returned when a project owner tries to invest in
	// their own project.
	ErrOwnProject = errors.New("you cannot invest in your own project")

	// ErrProjectNotOpen is returned when the project does not accept pledges.
	ErrProjectNotOpen = errors.New("project is not accepting investments")
)

// MinimumInvestmentError reports an amount below a project's effective
// minimum. Its message is shown to investors verbatim.
type MinimumInvestmentError struct {
	MinimumCents int64
}

func (e *MinimumInvestmentError) Error() string {
	return fmt.Sprintf("Minimum investment is $%s", decimal.New(e.MinimumCents, -2).StringFixed(2))
}

// Profile and registration errors.
var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrStepOutOfOrder   = errors.New("previous registration steps must be completed first")
	ErrInvalidStep      = errors.New("unknown registration step")
	ErrInvalidProfile   = errors.New("missing or invalid profile fields")
	ErrRegistrationOpen = errors.New("registration steps are not complete")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrFileTooLarge     = errors.New("file is too large")
	ErrStorageDisabled  = errors.New("file uploads are not configured")
)

// Messaging, feed and notification errors.
var (
	ErrEmptyContent         = errors.New("content is empty")
	ErrContentTooLong       = errors.New("content is too long")
	ErrSelfMessage          = errors.New("you cannot message yourself")
	ErrRecipientRequired    = errors.New("recipient is required")
	ErrPostNotFound         = errors.New("post not found")
	ErrNotificationNotFound = errors.New("notification not found")
)
