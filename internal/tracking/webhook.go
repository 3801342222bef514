package tracking

import (
	"net/http"
	"time"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/pkg/httputil"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
)

// WebhookEvent is one entry in a provider delivery-status callback.
type WebhookEvent struct {
	MessageID string    `json:"message_id"`
	Event     string    `json:"event"` // delivery, bounce, complaint
	Timestamp time.Time `json:"timestamp"`
}

// WebhookHandler ingests provider delivery callbacks and advances send rows
// by provider message id. Unknown message ids and out-of-order events are
// dropped quietly; the provider retries on non-2xx, so only transport-level
// problems should fail the request.
type WebhookHandler struct {
	sends       SendStore
	events      EventStore
	subscribers SubscriberStore
}

// NewWebhookHandler creates the provider webhook handler.
func NewWebhookHandler(sends SendStore, events EventStore, subscribers SubscriberStore) *WebhookHandler {
	return &WebhookHandler{sends: sends, events: events, subscribers: subscribers}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var batch []WebhookEvent
	if !httputil.Decode(w, r, &batch) {
		return
	}

	accepted := 0
	for _, evt := range batch {
		if evt.MessageID == "" {
			continue
		}
		if err := h.apply(r, evt); err != nil {
			logger.Warn("webhook event dropped", "event", evt.Event, "message_id", evt.MessageID, "error", err.Error())
			continue
		}
		accepted++
	}
	httputil.OK(w, map[string]int{"accepted": accepted})
}

func (h *WebhookHandler) apply(r *http.Request, evt WebhookEvent) error {
	ctx := r.Context()
	at := evt.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch evt.Event {
	case "delivery", "delivered":
		return h.sends.AdvanceByProviderID(ctx, evt.MessageID, domain.SendDelivered, at)

	case "bounce", "bounced":
		if err := h.sends.AdvanceByProviderID(ctx, evt.MessageID, domain.SendBounced, at); err != nil {
			return err
		}
		send, err := h.sends.GetByProviderID(ctx, evt.MessageID)
		if err != nil {
			return err
		}
		if err := h.subscribers.SetStatus(ctx, send.SubscriberID, domain.SubscriberBounced); err != nil {
			return err
		}
		return h.events.Insert(ctx, &domain.EmailEvent{
			Type:         domain.EventBounce,
			CampaignID:   &send.CampaignID,
			SubscriberID: &send.SubscriberID,
			EmailSendID:  &send.ID,
			OccurredAt:   at,
		})

	case "complaint", "spam_complaint":
		if err := h.sends.AdvanceByProviderID(ctx, evt.MessageID, domain.SendComplained, at); err != nil {
			return err
		}
		send, err := h.sends.GetByProviderID(ctx, evt.MessageID)
		if err != nil {
			return err
		}
		return h.events.Insert(ctx, &domain.EmailEvent{
			Type:         domain.EventComplaint,
			CampaignID:   &send.CampaignID,
			SubscriberID: &send.SubscriberID,
			EmailSendID:  &send.ID,
			OccurredAt:   at,
		})
	}

	logger.Debug("ignoring webhook event type", "event", evt.Event)
	return nil
}
