package domain

import (
	"time"

	"github.com/google/uuid"
)

// DailyEmailMetrics is one rollup row per (date, campaign), with a nil
// CampaignID for the overall bucket. Rows are derived caches, recomputable
// from email_sends/email_events, and upserted rather than duplicated per key.
type DailyEmailMetrics struct {
	Date         time.Time  `json:"date" db:"metric_date"`
	CampaignID   *uuid.UUID `json:"campaign_id" db:"campaign_id"`
	Sent         int        `json:"sent" db:"sent_count"`
	Delivered    int        `json:"delivered" db:"delivered_count"`
	Opened       int        `json:"opened" db:"opened_count"`
	Clicked      int        `json:"clicked" db:"clicked_count"`
	Bounced      int        `json:"bounced" db:"bounced_count"`
	Unsubscribed int        `json:"unsubscribed" db:"unsubscribed_count"`
}

// DailySubscriberMetrics is one rollup row per date tracking list growth.
type DailySubscriberMetrics struct {
	Date           time.Time `json:"date" db:"metric_date"`
	NewSubscribers int       `json:"new_subscribers" db:"new_subscribers"`
	Unsubscribed   int       `json:"unsubscribed" db:"unsubscribed"`
	NetGrowth      int       `json:"net_growth" db:"net_growth"`
	TotalActive    int       `json:"total_active" db:"total_active"`
}
