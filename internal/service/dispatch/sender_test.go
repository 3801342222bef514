package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/provider"
	"github.com/ignite/campaign-engine/internal/render"
	"github.com/ignite/campaign-engine/internal/service/dispatch"
)

type memSendStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*domain.EmailSend
	created []uuid.UUID
	failFor map[uuid.UUID]bool
}

func newMemSendStore() *memSendStore {
	return &memSendStore{rows: make(map[uuid.UUID]*domain.EmailSend), failFor: make(map[uuid.UUID]bool)}
}

func (m *memSendStore) Create(_ context.Context, campaignID, subscriberID uuid.UUID) (*domain.EmailSend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[subscriberID] {
		return nil, errors.New("insert failed")
	}
	s := &domain.EmailSend{
		ID:           uuid.New(),
		CampaignID:   campaignID,
		SubscriberID: subscriberID,
		Status:       domain.SendPending,
	}
	m.rows[s.ID] = s
	m.created = append(m.created, s.ID)
	return s, nil
}

func (m *memSendStore) MarkSent(_ context.Context, ids []uuid.UUID, providerIDs []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		row := m.rows[id]
		row.Status = domain.SendSent
		pid := providerIDs[i]
		row.ProviderMessageID = &pid
		sent := at
		row.SentAt = &sent
	}
	return nil
}

type fakeRenderer struct {
	failFor string // email that fails to render
}

func (f *fakeRenderer) Render(_ context.Context, _ uuid.UUID, vars map[string]string) (render.Result, error) {
	if f.failFor != "" && vars["email"] == f.failFor {
		return render.Result{}, errors.New("bad template variable")
	}
	return render.Result{
		HTML: fmt.Sprintf("<html><body>Hello %s</body></html>", vars["first_name"]),
		Text: "Hello " + vars["first_name"],
	}, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	failTimes int   // how many leading calls return failErr
	failErr   error // defaults to ErrRateLimited
	batches   [][]provider.Item
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) BatchSend(_ context.Context, items []provider.Item) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failTimes {
		if f.failErr != nil {
			return nil, f.failErr
		}
		return nil, provider.ErrRateLimited
	}
	f.batches = append(f.batches, items)
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = fmt.Sprintf("msg-%d-%d", f.calls, i)
	}
	return ids, nil
}

func recipients(n int) []domain.Recipient {
	out := make([]domain.Recipient, n)
	for i := range out {
		out[i] = domain.Recipient{
			SubscriberID: uuid.New(),
			Email:        fmt.Sprintf("user%d@example.com", i),
			FirstName:    fmt.Sprintf("User%d", i),
		}
	}
	return out
}

func sendableCampaign() *domain.Campaign {
	tmpl := uuid.New()
	return &domain.Campaign{
		ID:         uuid.New(),
		Name:       "test",
		Subject:    "hi",
		TemplateID: &tmpl,
		SegmentIDs: []uuid.UUID{uuid.New()},
		Status:     domain.CampaignSending,
	}
}

func newSender(store *memSendStore, r dispatch.Renderer, p provider.Provider, opts dispatch.SenderOptions) (*dispatch.BatchSender, *[]time.Duration) {
	bs := dispatch.NewBatchSender(store, r, dispatch.NewTrackingInjector(trackBase), p, opts)
	var delays []time.Duration
	bs.SetSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	return bs, &delays
}

func TestSendBatchesWithFixedDelay(t *testing.T) {
	store := newMemSendStore()
	prov := &fakeProvider{}
	bs, delays := newSender(store, &fakeRenderer{}, prov, dispatch.SenderOptions{
		BatchSize:  2,
		BatchDelay: 250 * time.Millisecond,
		MaxRetries: 3,
		RetryBase:  time.Second,
	})

	res, err := bs.Send(context.Background(), sendableCampaign(), recipients(5))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Total != 5 || res.Sent != 5 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if prov.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", prov.calls)
	}
	// Fixed pause between batches, none before the first.
	if len(*delays) != 2 {
		t.Fatalf("expected 2 inter-batch delays, got %v", *delays)
	}
	for _, d := range *delays {
		if d != 250*time.Millisecond {
			t.Fatalf("inter-batch delay = %v, want 250ms", d)
		}
	}
}

func TestSendBackfillsProviderIDsPositionally(t *testing.T) {
	store := newMemSendStore()
	prov := &fakeProvider{}
	bs, _ := newSender(store, &fakeRenderer{}, prov, dispatch.SenderOptions{BatchSize: 10})

	if _, err := bs.Send(context.Background(), sendableCampaign(), recipients(3)); err != nil {
		t.Fatalf("send: %v", err)
	}
	for i, sendID := range store.created {
		row := store.rows[sendID]
		want := fmt.Sprintf("msg-1-%d", i)
		if row.ProviderMessageID == nil || *row.ProviderMessageID != want {
			t.Fatalf("row %d provider id = %v, want %s", i, row.ProviderMessageID, want)
		}
		if row.Status != domain.SendSent || row.SentAt == nil {
			t.Fatalf("row %d not marked sent: %+v", i, row)
		}
	}
}

func TestSendRateLimitBackoffBound(t *testing.T) {
	store := newMemSendStore()
	prov := &fakeProvider{failTimes: 100} // never recovers
	bs, delays := newSender(store, &fakeRenderer{}, prov, dispatch.SenderOptions{
		BatchSize:  10,
		MaxRetries: 3,
		RetryBase:  10 * time.Millisecond,
	})

	res, err := bs.Send(context.Background(), sendableCampaign(), recipients(2))
	if err != nil {
		t.Fatalf("exhausted retries must not be fatal: %v", err)
	}
	if prov.calls != 4 {
		t.Fatalf("expected 1 attempt + 3 retries, got %d calls", prov.calls)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	if len(*delays) != len(want) {
		t.Fatalf("delays = %v, want %v", *delays, want)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("delay %d = %v, want %v", i, (*delays)[i], d)
		}
	}
	if res.Failed != 2 || res.Sent != 0 {
		t.Fatalf("result = %+v", res)
	}
	// Exhausted rows stay pending so they never count as sent.
	for _, row := range store.rows {
		if row.Status != domain.SendPending {
			t.Fatalf("row advanced past pending on failed batch: %+v", row)
		}
	}
}

func TestSendRecoversAfterRateLimit(t *testing.T) {
	store := newMemSendStore()
	prov := &fakeProvider{failTimes: 2}
	bs, _ := newSender(store, &fakeRenderer{}, prov, dispatch.SenderOptions{
		BatchSize:  10,
		MaxRetries: 3,
		RetryBase:  10 * time.Millisecond,
	})

	res, err := bs.Send(context.Background(), sendableCampaign(), recipients(2))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Sent != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestSendIsolatesPerRecipientFailures(t *testing.T) {
	rcpts := recipients(3)
	store := newMemSendStore()
	store.failFor[rcpts[1].SubscriberID] = true
	prov := &fakeProvider{}
	bs, _ := newSender(store, &fakeRenderer{failFor: rcpts[2].Email}, prov, dispatch.SenderOptions{BatchSize: 10})

	res, err := bs.Send(context.Background(), sendableCampaign(), rcpts)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Total != 3 || res.Sent != 1 || res.Failed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 recorded errors, got %v", res.Errors)
	}
}

func TestSendZeroRecipients(t *testing.T) {
	prov := &fakeProvider{}
	bs, _ := newSender(newMemSendStore(), &fakeRenderer{}, prov, dispatch.SenderOptions{})

	res, err := bs.Send(context.Background(), sendableCampaign(), nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Total != 0 || prov.calls != 0 {
		t.Fatalf("zero recipients must not touch the provider: %+v, calls=%d", res, prov.calls)
	}
}

func TestSendInjectsTrackingIntoHTML(t *testing.T) {
	store := newMemSendStore()
	prov := &fakeProvider{}
	bs, _ := newSender(store, &fakeRenderer{}, prov, dispatch.SenderOptions{BatchSize: 10})

	if _, err := bs.Send(context.Background(), sendableCampaign(), recipients(1)); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := prov.batches[0][0]
	pixel := fmt.Sprintf("%s/track/open?eid=%s", trackBase, store.created[0])
	if !strings.Contains(sent.HTML, pixel) {
		t.Fatalf("pixel for send row missing in outgoing html: %s", sent.HTML)
	}
	if strings.Contains(sent.Text, "/track/") {
		t.Fatal("text body must not carry tracking markup")
	}
}
