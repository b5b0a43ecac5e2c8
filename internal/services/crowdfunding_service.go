// Package services – CrowdfundingService
//
// CrowdfundingService starts investments in crowdfunding projects and
// records them once the processor reports the payment as succeeded. Pledges
// are upserted per (project, user); every successful confirmation appends a
// notification for the investor. The notification is best-effort: a failure
// is logged and counted but never undoes the pledge.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/observability"
	"github.com/tbourn/go-realty-backend/internal/payments"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InvestmentIntent is returned to the client to complete payment.
type InvestmentIntent struct {
	ClientSecret    string
	PaymentIntentID string
	AmountCents     int64
}

// ProjectView is a project with its confirmed funding total.
type ProjectView struct {
	domain.CrowdfundingProject
	RaisedCents int64 `json:"raised_cents"`
}

// CrowdfundingService handles project listings, investments and pledges.
type CrowdfundingService struct {
	DB      *gorm.DB
	Gateway PaymentGateway
}

// NewCrowdfundingService wires a CrowdfundingService.
func NewCrowdfundingService(db *gorm.DB, gw PaymentGateway) *CrowdfundingService {
	return &CrowdfundingService{DB: db, Gateway: gw}
}

// CreateInvestmentIntent validates the amount against the project's
// effective minimum and creates a payment intent tagged with the project and
// the investor. amountCents is rounded to whole cents.
func (s *CrowdfundingService) CreateInvestmentIntent(ctx context.Context, callerID, projectID string, amountCents float64, idemKey string) (*InvestmentIntent, error) {
	tr := otel.Tracer("services/CrowdfundingService")
	ctx, span := tr.Start(ctx, "CreateInvestmentIntent",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("user.id", callerID),
		),
	)
	defer span.End()

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrProjectNotFound
	}
	if math.IsNaN(amountCents) || math.IsInf(amountCents, 0) || amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	rounded := math.Round(amountCents)
	if rounded > float64(domain.MaxChargeCents) {
		return nil, ErrInvalidAmount
	}
	cents := int64(rounded)
	span.SetAttributes(attribute.Int64("amount_cents", cents))

	project, err := repo.GetProject(ctx, s.DB, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.OwnerID == callerID {
		return nil, ErrOwnProject
	}
	if !project.Status.AcceptsPledges() {
		return nil, ErrProjectNotOpen
	}
	if minCents := project.MinimumPledgeCents(); cents < minCents {
		return nil, &MinimumInvestmentError{MinimumCents: minCents}
	}

	intent, err := s.Gateway.CreateIntent(ctx, payments.CreateParams{
		AmountCents: cents,
		Description: "Investment in " + project.Title,
		Metadata: map[string]string{
			payments.MetaType:      payments.TypeCrowdfunding,
			payments.MetaProjectID: project.ID,
			payments.MetaUserID:    callerID,
		},
		IdempotencyKey: scopedKey("crowdfunding", fmt.Sprintf("%s:%s:%d", project.ID, callerID, cents), idemKey),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create intent")
		return nil, err
	}
	observability.IntentCreated(observability.KindCrowdfunding)
	return &InvestmentIntent{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID, AmountCents: cents}, nil
}

// ConfirmInvestment records the pledge paid by intentID. The pledge amount
// is the amount the processor charged, never a client-supplied value.
func (s *CrowdfundingService) ConfirmInvestment(ctx context.Context, callerID, intentID string) (*domain.CrowdfundingPledge, error) {
	tr := otel.Tracer("services/CrowdfundingService")
	ctx, span := tr.Start(ctx, "ConfirmInvestment",
		trace.WithAttributes(
			attribute.String("payment_intent.id", intentID),
			attribute.String("user.id", callerID),
		),
	)
	defer span.End()

	intent, err := retrieveIntent(ctx, s.Gateway, intentID)
	if err != nil {
		return nil, err
	}

	projectID := intent.Meta(payments.MetaProjectID)
	userID := intent.Meta(payments.MetaUserID)
	span.SetAttributes(attribute.String("project.id", projectID))
	if intent.Meta(payments.MetaType) != payments.TypeCrowdfunding || projectID == "" || userID == "" {
		observability.Transition(observability.KindCrowdfunding, observability.OutcomeRejected)
		return nil, ErrMissingMetadata
	}
	if userID != callerID {
		observability.Transition(observability.KindCrowdfunding, observability.OutcomeRejected)
		return nil, ErrPaymentNotOwned
	}
	if !intent.Succeeded() {
		observability.Transition(observability.KindCrowdfunding, observability.OutcomeRejected)
		return nil, ErrPaymentNotSucceeded
	}

	pledge, err := repo.UpsertPledge(ctx, s.DB, projectID, callerID, intent.AmountCents, domain.PledgeConfirmed, intent.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert pledge")
		return nil, err
	}
	observability.Transition(observability.KindCrowdfunding, observability.OutcomeApplied)

	s.notifyPledge(ctx, pledge)
	return pledge, nil
}

// notifyPledge appends the confirmation notification. Failures are logged
// and counted only.
func (s *CrowdfundingService) notifyPledge(ctx context.Context, p *domain.CrowdfundingPledge) {
	title := "a crowdfunding project"
	if project, err := repo.GetProject(ctx, s.DB, p.ProjectID); err == nil && strings.TrimSpace(project.Title) != "" {
		title = project.Title
	}
	msg := fmt.Sprintf("Your investment of $%s in %s has been confirmed.",
		decimal.New(p.AmountCents, -2).StringFixed(2), title)

	if _, err := repo.CreateNotification(ctx, s.DB, p.UserID, p.ProjectID, domain.NotificationPledgeConfirmed, msg); err != nil {
		observability.NotificationFailed()
		log.Warn().Err(err).
			Str("project_id", p.ProjectID).
			Str("user_id", p.UserID).
			Msg("pledge notification not written")
	}
}

// ListProjects returns a page of projects. An empty statuses filter lists
// projects that accept pledges.
func (s *CrowdfundingService) ListProjects(ctx context.Context, statuses []domain.ProjectStatus, page, pageSize int) ([]domain.CrowdfundingProject, int64, error) {
	tr := otel.Tracer("services/CrowdfundingService")
	ctx, span := tr.Start(ctx, "ListProjects",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if len(statuses) == 0 {
		statuses = []domain.ProjectStatus{domain.ProjectActive, domain.ProjectFunded}
	}
	offset, limit := utils.PageWindow(page, pageSize)

	total, err := repo.CountProjects(ctx, s.DB, statuses)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CrowdfundingProject{}, 0, nil
	}
	items, err := repo.ListProjectsPage(ctx, s.DB, statuses, offset, limit)
	return items, total, err
}

// GetProject returns a project with the sum of its confirmed pledges.
func (s *CrowdfundingService) GetProject(ctx context.Context, projectID string) (*ProjectView, error) {
	tr := otel.Tracer("services/CrowdfundingService")
	ctx, span := tr.Start(ctx, "GetProject", trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	p, err := repo.GetProject(ctx, s.DB, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	raised, err := repo.ProjectRaisedCents(ctx, s.DB, p.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectView{CrowdfundingProject: *p, RaisedCents: raised}, nil
}

// ListMyPledges returns the caller's pledges, newest first.
func (s *CrowdfundingService) ListMyPledges(ctx context.Context, userID string) ([]domain.CrowdfundingPledge, error) {
	tr := otel.Tracer("services/CrowdfundingService")
	ctx, span := tr.Start(ctx, "ListMyPledges", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return repo.ListPledgesByUser(ctx, s.DB, userID)
}
