package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-engine/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)

	// Create inserts a new campaign row.
	Create(ctx context.Context, c *domain.Campaign) error

	// Update applies the non-nil fields. The caller is responsible for the
	// draft-only editing rule.
	Update(ctx context.Context, id uuid.UUID, u UpdateFields) error

	// Transition atomically moves the campaign from `from` to `to` with a
	// conditional update. Returns ErrInvalidTransition if the row was not in
	// `from` at commit time; this is the engine's sole concurrency guard.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus) error

	// Schedule moves a draft campaign to scheduled and records scheduledAt.
	Schedule(ctx context.Context, id uuid.UUID, at time.Time) error

	// ClearSchedule moves a scheduled campaign back to draft and clears
	// scheduledAt.
	ClearSchedule(ctx context.Context, id uuid.UUID) error

	// MarkSent moves a sending campaign to sent and records sentAt.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// Due returns campaigns with status scheduled whose scheduledAt has
	// passed relative to now, oldest first.
	Due(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name       *string
	Subject    *string
	TemplateID *uuid.UUID
	SegmentIDs *[]uuid.UUID
}
