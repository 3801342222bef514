package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign represents an email campaign: a template plus an ordered set of
// target segments, carried through the draft → scheduled → sending → sent
// lifecycle. SegmentIDs is persisted as a JSON array on the campaign row.
type Campaign struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	Subject    string         `json:"subject" db:"subject"`
	TemplateID *uuid.UUID     `json:"template_id" db:"template_id"`
	SegmentIDs []uuid.UUID    `json:"segment_ids" db:"segment_ids"`
	Status     CampaignStatus `json:"status" db:"status"`

	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignCancelled
}

// Sendable reports whether the campaign satisfies the guard for leaving
// draft toward scheduled/sending: a template and at least one segment.
func (c *Campaign) Sendable() bool {
	return c.TemplateID != nil && len(c.SegmentIDs) > 0
}

// SegmentSource distinguishes how a segment's membership is maintained.
type SegmentSource string

const (
	SegmentSynced SegmentSource = "synced"
	SegmentManual SegmentSource = "manual"
)

// Segment is a named, possibly-overlapping group of subscribers used as a
// campaign targeting unit. SubscriberCount is denormalized and advisory only;
// deduplication is always done against the membership edges.
type Segment struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Name            string        `json:"name" db:"name"`
	Source          SegmentSource `json:"source" db:"source"`
	SubscriberCount int           `json:"subscriber_count" db:"subscriber_count"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Template identifies a stored email template rendered by the template
// renderer collaborator.
type Template struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	HTMLBody  string    `json:"html_body" db:"html_body"`
	TextBody  string    `json:"text_body" db:"text_body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
