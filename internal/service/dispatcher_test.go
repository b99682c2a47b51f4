package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
	"github.com/leadwire/relay/internal/models"
)

type mockDispatcherRepo struct {
	mu        sync.Mutex
	subs      []models.WebhookSubscription
	listErr   error
	listCalls int
	successes []uuid.UUID
	failures  []uuid.UUID
}

func (m *mockDispatcherRepo) ListAll(_ context.Context) ([]models.WebhookSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.subs, nil
}

func (m *mockDispatcherRepo) RecordDeliverySuccess(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, id)
	return nil
}

func (m *mockDispatcherRepo) RecordDeliveryFailure(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, id)
	return nil
}

type receivedDelivery struct {
	body      []byte
	signature string
	eventType string
}

// deliveryRecorder is a test endpoint that records every received delivery.
type deliveryRecorder struct {
	mu         sync.Mutex
	deliveries []receivedDelivery
	status     int
}

func (rec *deliveryRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.deliveries = append(rec.deliveries, receivedDelivery{
			body:      body,
			signature: r.Header.Get(HeaderHubSignature),
			eventType: r.Header.Get(HeaderEventType),
		})
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
	}
}

func (rec *deliveryRecorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.deliveries)
}

func subscription(url, secret string, active bool, events ...datatypes.EventType) models.WebhookSubscription {
	return models.WebhookSubscription{
		ID:     uuid.Must(uuid.NewV7()),
		Name:   "test endpoint",
		URL:    url,
		Secret: secret,
		Events: events,
		Active: active,
	}
}

func TestDispatcher_Trigger(t *testing.T) {
	t.Run("delivers to every matching subscription exactly once", func(t *testing.T) {
		rec := &deliveryRecorder{status: http.StatusOK}
		srv := httptest.NewServer(rec.handler())
		defer srv.Close()

		repo := &mockDispatcherRepo{subs: []models.WebhookSubscription{
			subscription(srv.URL, "s1", true, datatypes.LeadCreated),
			subscription(srv.URL, "s2", true, datatypes.LeadCreated, datatypes.LeadUpdated),
			subscription(srv.URL, "s3", true, datatypes.LeadDeleted),
		}}
		d := NewDispatcher(repo, nil)

		payload := map[string]string{"id": "lead-1"}
		if err := d.Trigger(context.Background(), datatypes.LeadCreated, payload); err != nil {
			t.Fatalf("Trigger: %v", err)
		}

		if rec.count() != 2 {
			t.Errorf("expected 2 deliveries, got %d", rec.count())
		}
		if len(repo.successes) != 2 {
			t.Errorf("expected 2 recorded successes, got %d", len(repo.successes))
		}
		if len(repo.failures) != 0 {
			t.Errorf("expected no failures, got %d", len(repo.failures))
		}
	})

	t.Run("signs the exact payload bytes with the subscription secret", func(t *testing.T) {
		rec := &deliveryRecorder{status: http.StatusOK}
		srv := httptest.NewServer(rec.handler())
		defer srv.Close()

		repo := &mockDispatcherRepo{subs: []models.WebhookSubscription{
			subscription(srv.URL, "endpoint-secret", true, datatypes.LeadCreated),
		}}
		d := NewDispatcher(repo, nil)

		if err := d.Trigger(context.Background(), datatypes.LeadCreated, map[string]string{"id": "x"}); err != nil {
			t.Fatalf("Trigger: %v", err)
		}

		if rec.count() != 1 {
			t.Fatalf("expected 1 delivery, got %d", rec.count())
		}

		got := rec.deliveries[0]
		mac := hmac.New(sha256.New, []byte("endpoint-secret"))
		mac.Write(got.body)
		want := hex.EncodeToString(mac.Sum(nil))

		if got.signature != want {
			t.Errorf("signature = %q, want %q", got.signature, want)
		}
		if got.eventType != "lead.created" {
			t.Errorf("event type header = %q, want lead.created", got.eventType)
		}

		var decoded map[string]string
		if err := json.Unmarshal(got.body, &decoded); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if decoded["id"] != "x" {
			t.Errorf("body = %s", got.body)
		}
	})

	t.Run("skips inactive and non-subscribed endpoints", func(t *testing.T) {
		rec := &deliveryRecorder{status: http.StatusOK}
		srv := httptest.NewServer(rec.handler())
		defer srv.Close()

		repo := &mockDispatcherRepo{subs: []models.WebhookSubscription{
			subscription(srv.URL, "", false, datatypes.LeadCreated),
			subscription(srv.URL, "", true, datatypes.LeadDeleted),
		}}
		d := NewDispatcher(repo, nil)

		if err := d.Trigger(context.Background(), datatypes.LeadCreated, nil); err != nil {
			t.Fatalf("Trigger: %v", err)
		}

		if rec.count() != 0 {
			t.Errorf("expected no deliveries, got %d", rec.count())
		}
	})

	t.Run("non-2xx response records a failure", func(t *testing.T) {
		rec := &deliveryRecorder{status: http.StatusInternalServerError}
		srv := httptest.NewServer(rec.handler())
		defer srv.Close()

		sub := subscription(srv.URL, "", true, datatypes.LeadCreated)
		repo := &mockDispatcherRepo{subs: []models.WebhookSubscription{sub}}
		d := NewDispatcher(repo, nil)

		if err := d.Trigger(context.Background(), datatypes.LeadCreated, nil); err != nil {
			t.Fatalf("Trigger should not propagate delivery failures: %v", err)
		}

		if len(repo.failures) != 1 || repo.failures[0] != sub.ID {
			t.Errorf("expected 1 recorded failure for %s, got %v", sub.ID, repo.failures)
		}
		if len(repo.successes) != 0 {
			t.Errorf("expected no successes, got %v", repo.successes)
		}
	})

	t.Run("one failing endpoint does not block its siblings", func(t *testing.T) {
		okRec := &deliveryRecorder{status: http.StatusOK}
		okSrv := httptest.NewServer(okRec.handler())
		defer okSrv.Close()

		badRec := &deliveryRecorder{status: http.StatusBadGateway}
		badSrv := httptest.NewServer(badRec.handler())
		defer badSrv.Close()

		unreachable := subscription("http://127.0.0.1:1/hook", "", true, datatypes.LeadCreated)
		good := subscription(okSrv.URL, "", true, datatypes.LeadCreated)
		bad := subscription(badSrv.URL, "", true, datatypes.LeadCreated)

		repo := &mockDispatcherRepo{subs: []models.WebhookSubscription{unreachable, good, bad}}
		d := NewDispatcher(repo, nil)

		if err := d.Trigger(context.Background(), datatypes.LeadCreated, nil); err != nil {
			t.Fatalf("Trigger: %v", err)
		}

		if okRec.count() != 1 {
			t.Errorf("healthy endpoint got %d deliveries, want 1", okRec.count())
		}
		if len(repo.successes) != 1 || repo.successes[0] != good.ID {
			t.Errorf("expected success for %s only, got %v", good.ID, repo.successes)
		}
		if len(repo.failures) != 2 {
			t.Errorf("expected 2 failures, got %v", repo.failures)
		}
	})

	t.Run("registry failure is the only propagated error", func(t *testing.T) {
		repo := &mockDispatcherRepo{listErr: errors.New("db down")}
		d := NewDispatcher(repo, nil)

		if err := d.Trigger(context.Background(), datatypes.LeadCreated, nil); err == nil {
			t.Fatal("expected an error when the registry cannot be listed")
		}
	})

	t.Run("caches the registry list and invalidates on demand", func(t *testing.T) {
		repo := &mockDispatcherRepo{}
		d := NewDispatcher(repo, &DispatcherConfig{CacheEnabled: true, CacheTTL: time.Minute})

		for range 3 {
			if err := d.Trigger(context.Background(), datatypes.LeadCreated, nil); err != nil {
				t.Fatalf("Trigger: %v", err)
			}
		}

		if repo.listCalls != 1 {
			t.Errorf("expected 1 registry list with cache enabled, got %d", repo.listCalls)
		}

		d.InvalidateCache()

		if err := d.Trigger(context.Background(), datatypes.LeadCreated, nil); err != nil {
			t.Fatalf("Trigger: %v", err)
		}

		if repo.listCalls != 2 {
			t.Errorf("expected reload after invalidation, got %d list calls", repo.listCalls)
		}
	})

	t.Run("empty-secret subscriptions get an empty signature", func(t *testing.T) {
		rec := &deliveryRecorder{status: http.StatusOK}
		srv := httptest.NewServer(rec.handler())
		defer srv.Close()

		repo := &mockDispatcherRepo{subs: []models.WebhookSubscription{
			subscription(srv.URL, "", true, datatypes.LeadCreated),
		}}
		d := NewDispatcher(repo, nil)

		if err := d.Trigger(context.Background(), datatypes.LeadCreated, nil); err != nil {
			t.Fatalf("Trigger: %v", err)
		}

		if rec.count() != 1 {
			t.Fatalf("expected 1 delivery, got %d", rec.count())
		}
		if rec.deliveries[0].signature != "" {
			t.Errorf("signature = %q, want empty", rec.deliveries[0].signature)
		}
	})
}
