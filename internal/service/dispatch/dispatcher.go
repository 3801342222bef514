package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
	"github.com/ignite/campaign-engine/internal/service/campaign"
)

// CampaignLifecycle is the slice of the campaign service the dispatcher
// drives.
type CampaignLifecycle interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	Due(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	Schedule(ctx context.Context, id uuid.UUID, at time.Time) error
	ClaimForSending(ctx context.Context, id uuid.UUID) error
	CompleteSend(ctx context.Context, id uuid.UUID) error
	RollbackSend(ctx context.Context, id uuid.UUID) error
}

// RecipientResolver resolves a campaign's segments to its recipient list.
type RecipientResolver interface {
	Resolve(ctx context.Context, segmentIDs []uuid.UUID) ([]domain.Recipient, error)
}

// Sender delivers a claimed campaign to its recipients.
type Sender interface {
	Send(ctx context.Context, c *domain.Campaign, recipients []domain.Recipient) (*Result, error)
}

// Dispatcher periodically scans for due campaigns and runs each through the
// send pipeline. Overlapping dispatcher instances are safe: the status
// transition claim decides ownership, nothing else.
type Dispatcher struct {
	campaigns CampaignLifecycle
	resolver  RecipientResolver
	sender    Sender

	pollInterval time.Duration
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher polling at the given interval.
func NewDispatcher(campaigns CampaignLifecycle, resolver RecipientResolver, sender Sender, pollInterval time.Duration) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &Dispatcher{
		campaigns:    campaigns,
		resolver:     resolver,
		sender:       sender,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// SetClock overrides the dispatcher clock, for tests.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// Start launches the poll loop. Call Stop to shut it down.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		logger.Info("dispatcher started", "poll_interval", d.pollInterval.String())
		for {
			select {
			case <-ctx.Done():
				logger.Info("dispatcher stopped")
				return
			case <-ticker.C:
				if err := d.RunOnce(ctx); err != nil {
					logger.Error("dispatcher pass failed", "error", err.Error())
				}
			}
		}
	}()
}

// Stop shuts down the poll loop and waits for an in-flight pass to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// RunOnce processes every campaign due at this instant. A failure on one
// campaign never blocks the rest of the pass.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	due, err := d.campaigns.Due(ctx, d.now().UTC())
	if err != nil {
		return fmt.Errorf("scan due campaigns: %w", err)
	}
	for _, c := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := d.Dispatch(ctx, c.ID); err != nil {
			logger.Error("campaign dispatch failed", "campaign_id", c.ID, "error", err.Error())
		}
	}
	return nil
}

// Dispatch claims one scheduled campaign and runs the full pipeline:
// resolve, send, complete. Losing the claim is not an error; another pass
// owns the campaign. A pipeline failure after the claim rolls the campaign
// back to draft.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID) (*Result, error) {
	if err := d.campaigns.ClaimForSending(ctx, id); err != nil {
		if errors.Is(err, campaign.ErrInvalidTransition) {
			logger.Debug("campaign already claimed", "campaign_id", id)
			return nil, nil
		}
		return nil, err
	}

	c, err := d.campaigns.Get(ctx, id)
	if err != nil {
		return nil, d.rollback(ctx, id, fmt.Errorf("load claimed campaign: %w", err))
	}

	recipients, err := d.resolver.Resolve(ctx, c.SegmentIDs)
	if err != nil {
		return nil, d.rollback(ctx, id, fmt.Errorf("resolve recipients: %w", err))
	}
	if len(recipients) == 0 {
		logger.Warn("campaign resolved to zero recipients", "campaign_id", id)
	}

	result, err := d.sender.Send(ctx, c, recipients)
	if err != nil {
		return result, d.rollback(ctx, id, fmt.Errorf("send: %w", err))
	}

	if err := d.campaigns.CompleteSend(ctx, id); err != nil {
		return result, fmt.Errorf("complete send: %w", err)
	}
	return result, nil
}

// SendNow pushes a campaign through the pipeline immediately. Drafts pass
// the sendable guard and are scheduled for now first, so the send still
// enters sending from scheduled like every other send.
func (d *Dispatcher) SendNow(ctx context.Context, id uuid.UUID) (*Result, error) {
	c, err := d.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case domain.CampaignDraft:
		if err := d.campaigns.Schedule(ctx, id, d.now().UTC()); err != nil {
			return nil, err
		}
	case domain.CampaignScheduled:
	default:
		return nil, fmt.Errorf("%w: cannot send from %s", campaign.ErrInvalidTransition, c.Status)
	}
	return d.Dispatch(ctx, id)
}

func (d *Dispatcher) rollback(ctx context.Context, id uuid.UUID, cause error) error {
	if err := d.campaigns.RollbackSend(ctx, id); err != nil {
		logger.Error("rollback failed", "campaign_id", id, "error", err.Error())
	}
	return cause
}
