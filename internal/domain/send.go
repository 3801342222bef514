package domain

import (
	"time"

	"github.com/google/uuid"
)

// SendStatus enumerates the delivery lifecycle of a single EmailSend.
// Statuses only move forward; see StatusRank.
type SendStatus string

const (
	SendPending    SendStatus = "pending"
	SendSent       SendStatus = "sent"
	SendDelivered  SendStatus = "delivered"
	SendOpened     SendStatus = "opened"
	SendClicked    SendStatus = "clicked"
	SendBounced    SendStatus = "bounced"
	SendComplained SendStatus = "complained"
)

// statusRank orders send statuses for the monotonic-progression guard.
// bounced/complained are terminal failure states ranked above engagement so
// an out-of-order open webhook can never resurrect a bounced send.
var statusRank = map[SendStatus]int{
	SendPending:    0,
	SendSent:       1,
	SendDelivered:  2,
	SendOpened:     3,
	SendClicked:    4,
	SendBounced:    5,
	SendComplained: 5,
}

// StatusRank returns the ordering rank of a send status. Unknown statuses
// rank below pending so they can never overwrite a real one.
func StatusRank(s SendStatus) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CountsAsDelivered reports whether a status implies successful delivery
// (delivered, or an engagement status that presupposes it).
func (s SendStatus) CountsAsDelivered() bool {
	return s == SendDelivered || s == SendOpened || s == SendClicked
}

// EmailSend is the durable record of one attempted delivery to one subscriber
// for one campaign. The row is created with status pending before the
// provider call so a stable tracking id exists prior to send, then advanced
// (never regressed, never deleted).
type EmailSend struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	CampaignID        uuid.UUID  `json:"campaign_id" db:"campaign_id"`
	SubscriberID      uuid.UUID  `json:"subscriber_id" db:"subscriber_id"`
	ProviderMessageID *string    `json:"provider_message_id" db:"provider_message_id"`
	Status            SendStatus `json:"status" db:"status"`
	SentAt            *time.Time `json:"sent_at" db:"sent_at"`
	DeliveredAt       *time.Time `json:"delivered_at" db:"delivered_at"`
	OpenedAt          *time.Time `json:"opened_at" db:"opened_at"`
	ClickedAt         *time.Time `json:"clicked_at" db:"clicked_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// EventType enumerates notable events recorded in the append-only event log.
type EventType string

const (
	EventUnsubscribe EventType = "unsubscribe"
	EventBounce      EventType = "bounce"
	EventComplaint   EventType = "complaint"
)

// EmailEvent is an append-only log entry. The event log, not EmailSend
// status, is the source of truth for unsubscribe and attrition counts.
type EmailEvent struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Type         EventType  `json:"type" db:"event_type"`
	CampaignID   *uuid.UUID `json:"campaign_id" db:"campaign_id"`
	SubscriberID *uuid.UUID `json:"subscriber_id" db:"subscriber_id"`
	EmailSendID  *uuid.UUID `json:"email_send_id" db:"email_send_id"`
	OccurredAt   time.Time  `json:"occurred_at" db:"occurred_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
