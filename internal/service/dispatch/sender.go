package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
	"github.com/ignite/campaign-engine/internal/provider"
	"github.com/ignite/campaign-engine/internal/render"
)

// SendStore persists per-recipient send rows.
type SendStore interface {
	// Create inserts a pending EmailSend row. The row exists before the
	// provider call so a stable tracking id is available at render time.
	Create(ctx context.Context, campaignID, subscriberID uuid.UUID) (*domain.EmailSend, error)

	// MarkSent backfills provider message ids and flips the rows to sent.
	// ids and providerIDs are matched positionally.
	MarkSent(ctx context.Context, ids []uuid.UUID, providerIDs []string, at time.Time) error
}

// Renderer renders a stored template for one recipient.
type Renderer interface {
	Render(ctx context.Context, templateID uuid.UUID, vars map[string]string) (render.Result, error)
}

// Result summarizes one campaign send.
type Result struct {
	Total  int      `json:"total"`
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// SenderOptions tunes batching and rate-limit backoff.
type SenderOptions struct {
	FromEmail  string
	FromName   string
	BatchSize  int
	BatchDelay time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

// BatchSender walks a recipient list in fixed-size batches: create the send
// row, render, inject tracking, hand the batch to the provider, backfill
// message ids. Per-recipient failures are absorbed into the Result; only a
// cancelled context aborts the send.
type BatchSender struct {
	store    SendStore
	renderer Renderer
	injector *TrackingInjector
	provider provider.Provider
	opts     SenderOptions
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBatchSender creates a batch sender. Zero option fields get conservative
// defaults.
func NewBatchSender(store SendStore, renderer Renderer, injector *TrackingInjector, p provider.Provider, opts SenderOptions) *BatchSender {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}
	return &BatchSender{
		store:    store,
		renderer: renderer,
		injector: injector,
		provider: p,
		opts:     opts,
		sleep:    sleepCtx,
	}
}

// SetSleep overrides the delay function, for tests.
func (bs *BatchSender) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	bs.sleep = fn
}

// Send delivers the campaign to every recipient. The campaign must already
// be claimed (status sending) by the caller.
func (bs *BatchSender) Send(ctx context.Context, c *domain.Campaign, recipients []domain.Recipient) (*Result, error) {
	result := &Result{Total: len(recipients)}

	for start := 0; start < len(recipients); start += bs.opts.BatchSize {
		end := start + bs.opts.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		if start > 0 {
			if err := bs.sleep(ctx, bs.opts.BatchDelay); err != nil {
				return result, err
			}
		}
		if err := bs.sendBatch(ctx, c, recipients[start:end], result); err != nil {
			return result, err
		}
	}

	logger.Info("campaign batch send finished",
		"campaign_id", c.ID,
		"total", result.Total,
		"sent", result.Sent,
		"failed", result.Failed)
	return result, nil
}

func (bs *BatchSender) sendBatch(ctx context.Context, c *domain.Campaign, batch []domain.Recipient, result *Result) error {
	items := make([]provider.Item, 0, len(batch))
	sendIDs := make([]uuid.UUID, 0, len(batch))

	for _, rcpt := range batch {
		item, sendID, err := bs.prepare(ctx, c, rcpt)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rcpt.Email, err))
			continue
		}
		items = append(items, item)
		sendIDs = append(sendIDs, sendID)
	}
	if len(items) == 0 {
		return ctx.Err()
	}

	providerIDs, err := bs.submit(ctx, items)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Rows stay pending; the aggregator never counts them as sent.
		result.Failed += len(items)
		result.Errors = append(result.Errors, fmt.Sprintf("batch of %d: %v", len(items), err))
		logger.Error("provider batch failed", "campaign_id", c.ID, "batch_size", len(items), "error", err.Error())
		return nil
	}

	n := len(providerIDs)
	if n > len(sendIDs) {
		n = len(sendIDs)
	}
	if n < len(items) {
		result.Failed += len(items) - n
		result.Errors = append(result.Errors, fmt.Sprintf("provider returned %d ids for %d items", len(providerIDs), len(items)))
	}
	if n > 0 {
		if err := bs.store.MarkSent(ctx, sendIDs[:n], providerIDs[:n], time.Now().UTC()); err != nil {
			return fmt.Errorf("mark sent: %w", err)
		}
		result.Sent += n
	}
	return nil
}

// prepare creates the pending row and renders the tagged message for one
// recipient. Any failure here is that recipient's alone.
func (bs *BatchSender) prepare(ctx context.Context, c *domain.Campaign, rcpt domain.Recipient) (provider.Item, uuid.UUID, error) {
	send, err := bs.store.Create(ctx, c.ID, rcpt.SubscriberID)
	if err != nil {
		return provider.Item{}, uuid.Nil, fmt.Errorf("create send row: %w", err)
	}

	vars := map[string]string{
		"email":           rcpt.Email,
		"first_name":      rcpt.FirstName,
		"last_name":       rcpt.LastName,
		"subject":         c.Subject,
		"unsubscribe_url": bs.injector.UnsubscribeURL(send.ID),
	}
	rendered, err := bs.renderer.Render(ctx, *c.TemplateID, vars)
	if err != nil {
		return provider.Item{}, uuid.Nil, fmt.Errorf("render: %w", err)
	}

	return provider.Item{
		From:     bs.opts.FromEmail,
		FromName: bs.opts.FromName,
		To:       rcpt.Email,
		Subject:  c.Subject,
		HTML:     bs.injector.Inject(rendered.HTML, c.ID, send.ID),
		Text:     rendered.Text,
	}, send.ID, nil
}

// submit calls the provider, retrying rate limits with exponential backoff:
// up to MaxRetries retries after the initial attempt, delayed RetryBase,
// 2*RetryBase, 4*RetryBase, ...
func (bs *BatchSender) submit(ctx context.Context, items []provider.Item) ([]string, error) {
	for attempt := 0; ; attempt++ {
		ids, err := bs.provider.BatchSend(ctx, items)
		if err == nil {
			return ids, nil
		}
		if !errors.Is(err, provider.ErrRateLimited) || attempt >= bs.opts.MaxRetries {
			return nil, err
		}
		delay := bs.opts.RetryBase * (1 << attempt)
		logger.Warn("provider rate limited, backing off",
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds())
		if err := bs.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
