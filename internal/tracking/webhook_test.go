package tracking_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/tracking"
)

func postWebhook(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func providerSend(sends *fakeSends, providerID string) *domain.EmailSend {
	s := &domain.EmailSend{
		ID:                uuid.New(),
		CampaignID:        uuid.New(),
		SubscriberID:      uuid.New(),
		ProviderMessageID: &providerID,
		Status:            domain.SendSent,
	}
	sends.rows[s.ID] = s
	return s
}

func TestWebhookDeliveredAdvancesByProviderID(t *testing.T) {
	sends := &fakeSends{rows: make(map[uuid.UUID]*domain.EmailSend)}
	send := providerSend(sends, "msg-1")
	h := tracking.NewWebhookHandler(sends, &fakeEvents{}, &fakeSubscribers{})

	ts := time.Now().UTC().Format(time.RFC3339)
	rec := postWebhook(t, h, `[{"message_id":"msg-1","event":"delivery","timestamp":"`+ts+`"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if len(sends.advanced) != 1 || sends.advanced[0].id != send.ID || sends.advanced[0].status != domain.SendDelivered {
		t.Fatalf("advanced = %+v", sends.advanced)
	}
}

func TestWebhookBounceFlipsSubscriberAndLogsEvent(t *testing.T) {
	sends := &fakeSends{rows: make(map[uuid.UUID]*domain.EmailSend)}
	send := providerSend(sends, "msg-2")
	events := &fakeEvents{}
	subs := &fakeSubscribers{}
	h := tracking.NewWebhookHandler(sends, events, subs)

	rec := postWebhook(t, h, `[{"message_id":"msg-2","event":"bounce"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := subs.statuses[send.SubscriberID]; got != domain.SubscriberBounced {
		t.Fatalf("subscriber status = %s, want bounced", got)
	}
	if len(events.inserted) != 1 || events.inserted[0].Type != domain.EventBounce {
		t.Fatalf("events = %+v", events.inserted)
	}
}

func TestWebhookUnknownMessageIDIsDroppedNotFatal(t *testing.T) {
	sends := &fakeSends{rows: make(map[uuid.UUID]*domain.EmailSend)}
	h := tracking.NewWebhookHandler(sends, &fakeEvents{}, &fakeSubscribers{})

	rec := postWebhook(t, h, `[{"message_id":"ghost","event":"delivery"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown ids must not fail the batch, status = %d", rec.Code)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	h := tracking.NewWebhookHandler(&fakeSends{}, &fakeEvents{}, &fakeSubscribers{})
	rec := postWebhook(t, h, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
