package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
)

// RecipientStore provides segment membership and subscriber rows.
type RecipientStore interface {
	// SegmentMemberIDs returns the subscriber ids of every membership edge in
	// the given segments. Overlapping segments yield duplicates; the resolver
	// collapses them.
	SegmentMemberIDs(ctx context.Context, segmentIDs []uuid.UUID) ([]uuid.UUID, error)

	// ActiveSubscribers returns only the rows with status active among ids.
	ActiveSubscribers(ctx context.Context, ids []uuid.UUID) ([]domain.Subscriber, error)
}

// Resolver turns a campaign's segment list into the final recipient list.
type Resolver struct {
	store RecipientStore
}

// NewResolver creates a recipient resolver.
func NewResolver(store RecipientStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns each eligible subscriber exactly once, no matter how many
// of the campaign's segments they belong to. Unsubscribed and bounced
// subscribers are dropped. An empty segment list resolves to zero recipients;
// there is no implicit all-subscribers fallback.
func (r *Resolver) Resolve(ctx context.Context, segmentIDs []uuid.UUID) ([]domain.Recipient, error) {
	if len(segmentIDs) == 0 {
		return nil, nil
	}

	memberIDs, err := r.store.SegmentMemberIDs(ctx, segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("load segment members: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(memberIDs))
	unique := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	subs, err := r.store.ActiveSubscribers(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}

	byID := make(map[uuid.UUID]domain.Subscriber, len(subs))
	for _, s := range subs {
		byID[s.ID] = s
	}

	// Preserve first-seen membership order for a deterministic batch layout.
	recipients := make([]domain.Recipient, 0, len(subs))
	for _, id := range unique {
		s, ok := byID[id]
		if !ok {
			continue
		}
		recipients = append(recipients, domain.Recipient{
			SubscriberID: s.ID,
			Email:        s.Email,
			FirstName:    s.FirstName,
			LastName:     s.LastName,
		})
	}
	return recipients, nil
}
