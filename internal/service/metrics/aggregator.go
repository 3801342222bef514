// Package metrics computes the daily rollups: one email-metrics row per
// (date, campaign) plus an overall row, and one subscriber-growth row per
// date. Rollups are derived caches over email_sends and email_events and can
// be recomputed for any day; re-running a day updates rows in place.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
)

// Counts is the per-bucket tally pulled from email_sends. Delivered already
// includes opened and clicked; opened already includes clicked.
type Counts struct {
	Sent      int
	Delivered int
	Opened    int
	Clicked   int
	Bounced   int
}

// Repository is the data access contract for aggregation. A nil campaignID
// selects the overall bucket (all sends in the window).
type Repository interface {
	// CampaignIDsWithSends returns the distinct campaigns that have send rows
	// created in [from, to).
	CampaignIDsWithSends(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)

	// SendCounts tallies send rows created in [from, to) by current status.
	SendCounts(ctx context.Context, campaignID *uuid.UUID, from, to time.Time) (Counts, error)

	// UnsubscribeCount counts unsubscribe events in [from, to) from the
	// append-only event log.
	UnsubscribeCount(ctx context.Context, campaignID *uuid.UUID, from, to time.Time) (int, error)

	// UpsertEmailMetrics inserts or replaces the row for (date, campaign).
	UpsertEmailMetrics(ctx context.Context, m *domain.DailyEmailMetrics) error

	// SubscriberSnapshot returns signups and unsubscribes in [from, to) plus
	// the current active total.
	SubscriberSnapshot(ctx context.Context, from, to time.Time) (newSubs, unsubscribed, totalActive int, err error)

	// UpsertSubscriberMetrics inserts or replaces the row for date.
	UpsertSubscriberMetrics(ctx context.Context, m *domain.DailySubscriberMetrics) error
}

// Aggregator runs the daily rollup.
type Aggregator struct {
	repo Repository
}

// NewAggregator creates a metrics aggregator.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// RunForDate aggregates one UTC calendar day. A failed bucket is logged and
// skipped; the other buckets still land, and the day can be re-run any time.
func (a *Aggregator) RunForDate(ctx context.Context, date time.Time) error {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	from, to := day, day.Add(24*time.Hour)

	var errs []error

	ids, err := a.repo.CampaignIDsWithSends(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list campaigns with sends: %w", err)
	}

	for _, id := range ids {
		id := id
		if err := a.rollupEmail(ctx, day, &id, from, to); err != nil {
			logger.Error("campaign rollup failed", "campaign_id", id, "date", day.Format("2006-01-02"), "error", err.Error())
			errs = append(errs, err)
		}
	}
	// Overall bucket, campaignID nil.
	if err := a.rollupEmail(ctx, day, nil, from, to); err != nil {
		logger.Error("overall rollup failed", "date", day.Format("2006-01-02"), "error", err.Error())
		errs = append(errs, err)
	}

	if err := a.rollupSubscribers(ctx, day, from, to); err != nil {
		logger.Error("subscriber rollup failed", "date", day.Format("2006-01-02"), "error", err.Error())
		errs = append(errs, err)
	}

	logger.Info("daily aggregation finished",
		"date", day.Format("2006-01-02"),
		"campaigns", len(ids),
		"failures", len(errs))
	return errors.Join(errs...)
}

func (a *Aggregator) rollupEmail(ctx context.Context, day time.Time, campaignID *uuid.UUID, from, to time.Time) error {
	counts, err := a.repo.SendCounts(ctx, campaignID, from, to)
	if err != nil {
		return fmt.Errorf("send counts: %w", err)
	}
	unsubs, err := a.repo.UnsubscribeCount(ctx, campaignID, from, to)
	if err != nil {
		return fmt.Errorf("unsubscribe count: %w", err)
	}
	return a.repo.UpsertEmailMetrics(ctx, &domain.DailyEmailMetrics{
		Date:         day,
		CampaignID:   campaignID,
		Sent:         counts.Sent,
		Delivered:    counts.Delivered,
		Opened:       counts.Opened,
		Clicked:      counts.Clicked,
		Bounced:      counts.Bounced,
		Unsubscribed: unsubs,
	})
}

func (a *Aggregator) rollupSubscribers(ctx context.Context, day, from, to time.Time) error {
	newSubs, unsubscribed, totalActive, err := a.repo.SubscriberSnapshot(ctx, from, to)
	if err != nil {
		return fmt.Errorf("subscriber snapshot: %w", err)
	}
	return a.repo.UpsertSubscriberMetrics(ctx, &domain.DailySubscriberMetrics{
		Date:           day,
		NewSubscribers: newSubs,
		Unsubscribed:   unsubscribed,
		NetGrowth:      newSubs - unsubscribed,
		TotalActive:    totalActive,
	})
}
