// Package worker provides background workers (e.g. the exchange-alert monitor).
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
	"github.com/leadwire/relay/internal/models"
	"github.com/leadwire/relay/internal/service"
)

// AlertsRepository is the minimal alert surface the monitor needs.
type AlertsRepository interface {
	ListActive(ctx context.Context) ([]models.ExchangeAlert, error)
	MarkTriggered(ctx context.Context, id uuid.UUID, triggeredAt time.Time) (bool, error)
}

// QuoteClient fetches the current rate for a currency pair.
type QuoteClient interface {
	Latest(ctx context.Context, baseCurrency, quoteCurrency string) (*models.Quote, error)
}

// notifier creates in-app notifications for alert owners.
type notifier interface {
	Create(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error)
}

// AlertMonitor is a background worker that periodically compares active
// exchange alerts against fresh quotes. When an alert's target is crossed it
// is marked triggered (one-shot), an exchange.alert.triggered event carrying
// the alert/quote bundle is published, and the owner is notified.
type AlertMonitor struct {
	repo         AlertsRepository
	quotes       QuoteClient
	publisher    service.Publisher
	notifier     notifier
	pollInterval time.Duration
}

// NewAlertMonitor creates a new alert monitor. notifier may be nil.
func NewAlertMonitor(
	repo AlertsRepository,
	quotes QuoteClient,
	publisher service.Publisher,
	n notifier,
	pollInterval time.Duration,
) *AlertMonitor {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}

	return &AlertMonitor{
		repo:         repo,
		quotes:       quotes,
		publisher:    publisher,
		notifier:     n,
		pollInterval: pollInterval,
	}
}

// Start runs the monitor loop until ctx is cancelled. An evaluation failure
// is logged and the loop continues with the next tick.
func (m *AlertMonitor) Start(ctx context.Context) {
	slog.Info("alert monitor started", "poll_interval", m.pollInterval)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.evaluateOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("alert monitor stopped")
			return
		case <-ticker.C:
			m.evaluateOnce(ctx)
		}
	}
}

// evaluateOnce evaluates all active alerts against one quote per distinct
// currency pair. A quote failure for one pair skips that pair's alerts only.
func (m *AlertMonitor) evaluateOnce(ctx context.Context) {
	alerts, err := m.repo.ListActive(ctx)
	if err != nil {
		slog.Error("alert monitor: list active alerts failed", "error", err)
		return
	}

	if len(alerts) == 0 {
		return
	}

	quotesByPair := make(map[string]*models.Quote)
	for _, alert := range alerts {
		pair := alert.Pair()
		quote, ok := quotesByPair[pair]
		if !ok {
			quote, err = m.quotes.Latest(ctx, alert.BaseCurrency, alert.QuoteCurrency)
			if err != nil {
				slog.Warn("alert monitor: quote fetch failed",
					"pair", pair,
					"error", err,
				)
				quotesByPair[pair] = nil
				continue
			}
			quotesByPair[pair] = quote
		}
		if quote == nil {
			continue
		}

		if !alert.Matches(quote.Rate) {
			continue
		}

		m.fire(ctx, alert, quote)
	}
}

// fire marks one alert triggered and fans the trigger out. MarkTriggered is
// conditional on the alert still being active, so two overlapping evaluations
// fire it at most once.
func (m *AlertMonitor) fire(ctx context.Context, alert models.ExchangeAlert, quote *models.Quote) {
	now := time.Now()

	won, err := m.repo.MarkTriggered(ctx, alert.ID, now)
	if err != nil {
		slog.Error("alert monitor: mark triggered failed",
			"alert_id", alert.ID,
			"error", err,
		)
		return
	}
	if !won {
		return
	}

	alert.Active = false
	alert.TriggeredAt = &now

	slog.Info("exchange alert triggered",
		"alert_id", alert.ID,
		"pair", alert.Pair(),
		"rate", quote.Rate,
		"target_rate", alert.TargetRate,
		"direction", alert.Direction,
	)

	m.publisher.Publish(ctx, datatypes.ExchangeAlertTriggered, &models.AlertBundle{
		Alert: alert,
		Quote: *quote,
	})

	if m.notifier == nil {
		return
	}

	_, err = m.notifier.Create(ctx, &models.CreateNotificationRequest{
		Title: "Exchange alert triggered",
		Message: fmt.Sprintf("%s reached %.4f (target %.4f %s).",
			alert.Pair(), quote.Rate, alert.TargetRate, alert.Direction),
		Type:         models.NotificationWarning,
		HighPriority: true,
		Recipient:    models.Recipient{Kind: models.RecipientUser, Value: alert.UserID},
	})
	if err != nil {
		slog.Warn("alert monitor: notification failed",
			"alert_id", alert.ID,
			"user_id", alert.UserID,
			"error", err,
		)
	}
}
