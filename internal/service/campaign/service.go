package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
)

// legal enumerates every allowed status transition. Entering sending is only
// legal from scheduled; a failed send rolls back to draft, never to
// scheduled, so the next dispatcher tick cannot immediately re-trigger it.
var legal = map[domain.CampaignStatus][]domain.CampaignStatus{
	domain.CampaignDraft:     {domain.CampaignScheduled, domain.CampaignCancelled},
	domain.CampaignScheduled: {domain.CampaignSending, domain.CampaignDraft},
	domain.CampaignSending:   {domain.CampaignSent, domain.CampaignDraft},
}

// CanTransition reports whether from → to is a legal transition.
func CanTransition(from, to domain.CampaignStatus) bool {
	for _, t := range legal[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Service implements campaign lifecycle logic on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name       string      `json:"name"`
	Subject    string      `json:"subject"`
	TemplateID *uuid.UUID  `json:"template_id"`
	SegmentIDs []uuid.UUID `json:"segment_ids"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	c := &domain.Campaign{
		ID:         uuid.New(),
		Name:       input.Name,
		Subject:    input.Subject,
		TemplateID: input.TemplateID,
		SegmentIDs: input.SegmentIDs,
		Status:     domain.CampaignDraft,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// Update modifies mutable campaign fields. Campaigns are editable only while
// draft; anything later has either committed to a schedule or gone out.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u UpdateFields) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft {
		return ErrNotEditable
	}
	return s.repo.Update(ctx, id, u)
}

// Schedule moves a draft campaign to scheduled for the given time.
// The sendable guard (template set, segments non-empty) is enforced here,
// before any state is touched.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := validateSendable(c); err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft {
		return fmt.Errorf("%w: %s -> scheduled", ErrInvalidTransition, c.Status)
	}
	if err := s.repo.Schedule(ctx, id, at.UTC()); err != nil {
		return err
	}
	logger.Info("campaign scheduled", "campaign_id", id, "scheduled_at", at.UTC().Format(time.RFC3339))
	return nil
}

// Cancel returns a scheduled campaign to draft before sending begins.
// Once a campaign has entered sending there is no mid-send cancellation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignScheduled {
		return fmt.Errorf("%w: only scheduled campaigns can be cancelled", ErrInvalidTransition)
	}
	if err := s.repo.ClearSchedule(ctx, id); err != nil {
		return err
	}
	logger.Info("campaign schedule cancelled", "campaign_id", id)
	return nil
}

// Abandon moves a draft campaign to the terminal cancelled state.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID) error {
	return s.repo.Transition(ctx, id, domain.CampaignDraft, domain.CampaignCancelled)
}

// ClaimForSending atomically moves a scheduled campaign to sending. The
// conditional update is the only concurrency control across overlapping
// dispatcher passes: whichever pass commits the status write first owns the
// send, and the loser gets ErrInvalidTransition.
func (s *Service) ClaimForSending(ctx context.Context, id uuid.UUID) error {
	return s.repo.Transition(ctx, id, domain.CampaignScheduled, domain.CampaignSending)
}

// CompleteSend moves a sending campaign to sent and records sentAt. A
// campaign with zero eligible recipients still completes as sent.
func (s *Service) CompleteSend(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkSent(ctx, id, s.now().UTC())
}

// RollbackSend returns a sending campaign to draft after a fatal pipeline
// failure, so it is visibly "not sent" and re-editable rather than stuck.
func (s *Service) RollbackSend(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Transition(ctx, id, domain.CampaignSending, domain.CampaignDraft); err != nil {
		return err
	}
	logger.Warn("campaign rolled back to draft", "campaign_id", id)
	return nil
}

// Due returns campaigns ready for dispatch at the given instant.
func (s *Service) Due(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	return s.repo.Due(ctx, now)
}

// ValidateSendable checks the guard for leaving draft toward
// scheduled/sending.
func ValidateSendable(c *domain.Campaign) error {
	return validateSendable(c)
}

func validateSendable(c *domain.Campaign) error {
	if c.TemplateID == nil {
		return ErrMissingTemplate
	}
	if len(c.SegmentIDs) == 0 {
		return ErrMissingSegments
	}
	return nil
}
