// Package domain defines the persistence models for the marketplace:
// professional profiles, paid offers, crowdfunding projects with their
// pledges and notifications, direct messages, and the network feed. These
// types are mapped with GORM and form the core data layer of the backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// OfferStatus is the lifecycle state of an Offer.
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferWithdrawn OfferStatus = "withdrawn"
)

// MinOfferAmountCents is the smallest chargeable offer amount.
const MinOfferAmountCents int64 = 50

// MaxChargeCents is the largest amount a single payment intent may carry
// ($999,999.99).
const MaxChargeCents int64 = 99_999_999

// Offer is a priced proposal sent by one user (sender) to another
// (recipient). The recipient pays to accept it; acceptance is the only
// pending -> accepted transition and happens at most once.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SenderID / RecipientID: auth user ids; indexed for inbox/outbox queries.
//   - AmountCents: price in minor units, at least MinOfferAmountCents.
//   - Status: pending|accepted|declined|withdrawn.
//   - PaymentIntentID: processor intent that paid for acceptance, if any.
//   - AcceptedAt: set together with Status=accepted.
type Offer struct {
	ID              string      `json:"id"                          gorm:"type:char(36);primaryKey"`
	SenderID        string      `json:"sender_id"                   gorm:"type:varchar(64);not null;index:idx_offers_sender"`
	RecipientID     string      `json:"recipient_id"                gorm:"type:varchar(64);not null;index:idx_offers_recipient"`
	Title           string      `json:"title"                       gorm:"type:varchar(255);not null"`
	Description     string      `json:"description,omitempty"       gorm:"type:text"`
	AmountCents     int64       `json:"amount_cents"                gorm:"not null;check:chk_offers_amount,amount_cents >= 50"`
	Status          OfferStatus `json:"status"                      gorm:"type:varchar(16);not null;default:'pending';check:chk_offers_status,status IN ('pending','accepted','declined','withdrawn')"`
	PaymentIntentID *string     `json:"payment_intent_id,omitempty" gorm:"type:varchar(255)"`
	AcceptedAt      *time.Time  `json:"accepted_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Offer.
func (Offer) TableName() string { return "offers" }

// ProjectStatus is the lifecycle state of a CrowdfundingProject.
type ProjectStatus string

const (
	ProjectDraft  ProjectStatus = "draft"
	ProjectActive ProjectStatus = "active"
	ProjectFunded ProjectStatus = "funded"
	ProjectClosed ProjectStatus = "closed"
)

// AcceptsPledges reports whether new investments may be started.
func (s ProjectStatus) AcceptsPledges() bool {
	return s == ProjectActive || s == ProjectFunded
}

// PlatformMinInvestmentCents is the floor applied on top of a project's own
// minimum investment.
const PlatformMinInvestmentCents int64 = 100

// CrowdfundingProject is a real-estate project open for investment.
type CrowdfundingProject struct {
	ID                 string        `json:"id"                   gorm:"type:char(36);primaryKey"`
	OwnerID            string        `json:"owner_id"             gorm:"type:varchar(64);not null;index"`
	Title              string        `json:"title"                gorm:"type:varchar(255);not null"`
	Description        string        `json:"description"          gorm:"type:text"`
	Location           string        `json:"location"             gorm:"type:varchar(255)"`
	GoalCents          int64         `json:"goal_cents"           gorm:"not null;default:0"`
	MinInvestmentCents int64         `json:"min_investment_cents" gorm:"not null;default:0"`
	Status             ProjectStatus `json:"status"               gorm:"type:varchar(16);not null;default:'draft';index;check:chk_projects_status,status IN ('draft','active','funded','closed')"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName returns the database table name for CrowdfundingProject.
func (CrowdfundingProject) TableName() string { return "crowdfunding_projects" }

// MinimumPledgeCents is the effective minimum: the larger of the platform
// floor and the project's configured minimum.
func (p CrowdfundingProject) MinimumPledgeCents() int64 {
	if p.MinInvestmentCents > PlatformMinInvestmentCents {
		return p.MinInvestmentCents
	}
	return PlatformMinInvestmentCents
}

// PledgeConfirmed is the status written when a payment-backed pledge is recorded.
const PledgeConfirmed = "confirmed"

// CrowdfundingPledge records a user's investment in a project. At most one
// row exists per (project, user); a later confirmation overwrites the amount.
type CrowdfundingPledge struct {
	ID              string    `json:"id"                gorm:"type:char(36);primaryKey"`
	ProjectID       string    `json:"project_id"        gorm:"type:char(36);not null;uniqueIndex:ux_pledges_project_user,priority:1"`
	UserID          string    `json:"user_id"           gorm:"type:varchar(64);not null;index;uniqueIndex:ux_pledges_project_user,priority:2"`
	AmountCents     int64     `json:"amount_cents"      gorm:"not null"`
	Status          string    `json:"status"            gorm:"type:varchar(16);not null"`
	PaymentIntentID string    `json:"payment_intent_id" gorm:"type:varchar(255)"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Project CrowdfundingProject `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CrowdfundingPledge.
func (CrowdfundingPledge) TableName() string { return "crowdfunding_pledges" }

// NotificationPledgeConfirmed is the kind of notification written after a
// pledge is confirmed.
const NotificationPledgeConfirmed = "pledge_confirmed"

// CrowdfundingNotification is an informational message for a user. Rows are
// append-only apart from ReadAt.
type CrowdfundingNotification struct {
	ID        string     `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID    string     `json:"user_id"           gorm:"type:varchar(64);not null;index:idx_notifications_user,priority:1"`
	ProjectID string     `json:"project_id"        gorm:"type:char(36);not null"`
	Kind      string     `json:"kind"              gorm:"type:varchar(32);not null"`
	Message   string     `json:"message"           gorm:"type:text;not null"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"        gorm:"index:idx_notifications_user,priority:2"`
}

// TableName returns the database table name for CrowdfundingNotification.
func (CrowdfundingNotification) TableName() string { return "crowdfunding_notifications" }

// DirectMessage is a private message between two users.
type DirectMessage struct {
	ID          string         `json:"id"                gorm:"type:char(36);primaryKey"`
	SenderID    string         `json:"sender_id"         gorm:"type:varchar(64);not null;index:idx_dm_pair,priority:1"`
	RecipientID string         `json:"recipient_id"      gorm:"type:varchar(64);not null;index:idx_dm_pair,priority:2"`
	Content     string         `json:"content"           gorm:"type:text;not null"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"        gorm:"index:idx_dm_pair,priority:3"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"                 gorm:"index"`
}

// TableName returns the database table name for DirectMessage.
func (DirectMessage) TableName() string { return "direct_messages" }

// Post is an entry in the professional network feed.
type Post struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	AuthorID  string         `json:"author_id"  gorm:"type:varchar(64);not null;index"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "network_posts" }
