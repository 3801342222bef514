package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
)

// Event kind constants for the queue wire format.
const (
	KindOpen        = "open"
	KindClick       = "click"
	KindUnsubscribe = "unsubscribe"
)

// Event is the queued form of one tracking hit.
type Event struct {
	Kind        string    `json:"kind"`
	EmailSendID uuid.UUID `json:"email_send_id"`
	URL         string    `json:"url,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	IP          string    `json:"ip,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SendStore is the slice of the send repository the tracking side needs.
type SendStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.EmailSend, error)
	GetByProviderID(ctx context.Context, providerID string) (*domain.EmailSend, error)
	Advance(ctx context.Context, id uuid.UUID, status domain.SendStatus, at time.Time) error
	AdvanceByProviderID(ctx context.Context, providerID string, status domain.SendStatus, at time.Time) error
}

// EventStore appends to the email event log.
type EventStore interface {
	Insert(ctx context.Context, e *domain.EmailEvent) error
}

// SubscriberStore flips subscriber eligibility.
type SubscriberStore interface {
	SetStatus(ctx context.Context, id uuid.UUID, status domain.SubscriberStatus) error
}
