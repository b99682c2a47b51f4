package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
	"github.com/leadwire/relay/internal/models"
	"github.com/leadwire/relay/pkg/cache"
)

// Outbound delivery headers. Receivers verify X-Hub-Signature by recomputing
// the HMAC over the request body with their shared secret.
const (
	HeaderHubSignature = "X-Hub-Signature"
	HeaderEventType    = "X-Event-Type"
)

// subscriptionsCacheKey is the single cache key for the full registry list.
// Filtering by event and active flag happens in the dispatcher, not storage.
const subscriptionsCacheKey = "subscriptions"

// DispatcherRepository is the registry surface the dispatcher needs.
type DispatcherRepository interface {
	ListAll(ctx context.Context) ([]models.WebhookSubscription, error)
	RecordDeliverySuccess(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error
	RecordDeliveryFailure(ctx context.Context, id uuid.UUID) error
}

// DispatcherConfig tunes delivery concurrency and subscription caching.
type DispatcherConfig struct {
	MaxConcurrent int           // max concurrent outbound HTTP calls (0 = 100)
	CacheEnabled  bool          // cache the registry list between triggers
	CacheTTL      time.Duration // cache TTL when enabled
}

// Dispatcher fans an event out to every active subscription whose event set
// contains it. Deliveries run concurrently and independently: one endpoint
// failing, hanging, or returning garbage never blocks or aborts its siblings.
// There are no retries and no delivery ordering guarantee.
type Dispatcher struct {
	repo         DispatcherRepository
	httpClient   *http.Client
	subs         *cache.LoaderCache[[]models.WebhookSubscription]
	cacheEnabled bool
	sem          chan struct{}
}

// NewDispatcher creates a dispatcher. The HTTP client uses a 15s timeout and
// does not follow redirects (a subscriber that moved should update its URL).
func NewDispatcher(repo DispatcherRepository, cfg *DispatcherConfig) *Dispatcher {
	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		t = t.Clone()
		t.MaxIdleConns = 100
		t.MaxIdleConnsPerHost = 20
		client.Transport = t
	}

	maxConcurrent := 100
	if cfg != nil && cfg.MaxConcurrent > 0 {
		maxConcurrent = cfg.MaxConcurrent
	}

	d := &Dispatcher{
		repo:         repo,
		httpClient:   client,
		cacheEnabled: cfg != nil && cfg.CacheEnabled,
		sem:          make(chan struct{}, maxConcurrent),
	}

	if d.cacheEnabled {
		d.subs = cache.NewLoaderCache[[]models.WebhookSubscription](1, cfg.CacheTTL)
	}

	return d
}

// Trigger delivers payload to every active subscription of eventType and
// waits for all deliveries to finish. It returns an error only when the
// registry itself cannot be listed; individual delivery failures are recorded
// on the subscription's failure counter and logged, never propagated.
func (d *Dispatcher) Trigger(ctx context.Context, eventType datatypes.EventType, payload any) error {
	subs, err := d.listSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list webhook subscriptions: %w", err)
	}

	matching := subs[:0:0]
	for _, sub := range subs {
		if sub.Active && sub.SubscribedTo(eventType) {
			matching = append(matching, sub)
		}
	}

	if len(matching) == 0 {
		return nil
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	var wg sync.WaitGroup
	for _, sub := range matching {
		d.sem <- struct{}{} // acquire (blocks if at cap)
		wg.Add(1)
		go func(sub models.WebhookSubscription) {
			defer func() { <-d.sem }() // release
			defer wg.Done()
			d.deliver(ctx, sub, eventType, payloadJSON)
		}(sub)
	}
	wg.Wait()

	return nil
}

// deliver sends one event to one endpoint and records the outcome on the
// subscription's counters.
func (d *Dispatcher) deliver(ctx context.Context, sub models.WebhookSubscription, eventType datatypes.EventType, payloadJSON []byte) {
	start := time.Now()
	err := d.send(ctx, sub, eventType, payloadJSON)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("webhook delivery failed",
			"subscription_id", sub.ID,
			"url", sub.URL,
			"event_type", eventType.String(),
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)

		if recErr := d.repo.RecordDeliveryFailure(ctx, sub.ID); recErr != nil {
			slog.Error("failed to record delivery failure",
				"subscription_id", sub.ID,
				"error", recErr,
			)
		}

		return
	}

	slog.Debug("webhook delivered",
		"subscription_id", sub.ID,
		"url", sub.URL,
		"event_type", eventType.String(),
		"duration_ms", duration.Milliseconds(),
	)

	if recErr := d.repo.RecordDeliverySuccess(ctx, sub.ID, time.Now()); recErr != nil {
		slog.Error("failed to record delivery success",
			"subscription_id", sub.ID,
			"error", recErr,
		)
	}
}

// send signs and POSTs the payload to one endpoint. Any 2xx is success.
func (d *Dispatcher) send(ctx context.Context, sub models.WebhookSubscription, eventType datatypes.EventType, payloadJSON []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payloadJSON))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderHubSignature, Sign(payloadJSON, sub.Secret))
	req.Header.Set(HeaderEventType, eventType.String())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close webhook response body", "subscription_id", sub.ID, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}

// listSubscriptions returns the registry list, from cache when enabled.
func (d *Dispatcher) listSubscriptions(ctx context.Context) ([]models.WebhookSubscription, error) {
	if !d.cacheEnabled {
		return d.repo.ListAll(ctx)
	}

	return d.subs.Get(ctx, subscriptionsCacheKey, func(ctx context.Context) ([]models.WebhookSubscription, error) {
		return d.repo.ListAll(ctx)
	})
}

// InvalidateCache clears the cached registry list. The registry service calls
// this after every create/update/delete so dispatch observes changes promptly.
func (d *Dispatcher) InvalidateCache() {
	if !d.cacheEnabled {
		return
	}

	d.subs.InvalidateAll()
}
