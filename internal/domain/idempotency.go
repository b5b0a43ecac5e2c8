package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency records that a (scope, key) pair has been processed, e.g. a
// payment processor webhook event id. Ref points at whatever the first
// processing produced. HTTP request keys also keep the first answer so a
// retry can be served without running the handler again.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Scope     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_scope_key,priority:1"`
	Key       string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_idem_scope_key,priority:2"`
	Ref       string    `gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`

	Status      int    `gorm:"not null;default:0"`
	ContentType string `gorm:"type:varchar(128);not null;default:''"`
	Body        []byte
	Truncated   bool `gorm:"not null;default:false"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// PaymentEvent statuses.
const (
	PaymentEventProcessed = "processed"
	PaymentEventIgnored   = "ignored"
	PaymentEventFailed    = "failed"
)

// PaymentEvent is the audit log of payment processor webhook deliveries.
type PaymentEvent struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;index"`
	Type            string         `json:"type"              gorm:"type:varchar(128);not null"`
	PaymentIntentID string         `json:"payment_intent_id" gorm:"type:varchar(255);index"`
	Payload         datatypes.JSON `json:"payload"`
	Status          string         `json:"status"            gorm:"type:varchar(16);not null"`
	Detail          string         `json:"detail,omitempty"  gorm:"type:text"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TableName returns the database table name for PaymentEvent.
func (PaymentEvent) TableName() string { return "payment_events" }
