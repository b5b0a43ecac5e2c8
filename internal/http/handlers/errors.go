// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements the human-readable `error` field.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., payment_not_succeeded, minimum_investment) are
//     reserved for business rules that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "payment_not_succeeded",
//     "error": "payment has not succeeded"
//   }

package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeOfferNotPending     = "offer_not_pending"
	ErrCodePaymentNotSucceeded = "payment_not_succeeded"
	ErrCodeMissingMetadata     = "missing_metadata"
	ErrCodeMinimumInvestment   = "minimum_investment"
	ErrCodeProjectNotOpen      = "project_not_open"
	ErrCodeInvalidSignature    = "invalid_signature"
	ErrCodeTooLarge            = "payload_too_large"
	ErrCodeUnsupportedFile     = "unsupported_file"
	ErrCodeUnavailable         = "unavailable"
)
