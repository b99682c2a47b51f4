package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
	apperrors "github.com/leadwire/relay/internal/errors"
	"github.com/leadwire/relay/internal/models"
)

type mockAlertsServiceRepo struct {
	alerts map[uuid.UUID]*models.ExchangeAlert
}

func newMockAlertsServiceRepo() *mockAlertsServiceRepo {
	return &mockAlertsServiceRepo{alerts: make(map[uuid.UUID]*models.ExchangeAlert)}
}

func (m *mockAlertsServiceRepo) Create(_ context.Context, req *models.CreateExchangeAlertRequest) (*models.ExchangeAlert, error) {
	alert := &models.ExchangeAlert{
		ID:            uuid.Must(uuid.NewV7()),
		UserID:        req.UserID,
		BaseCurrency:  req.BaseCurrency,
		QuoteCurrency: req.QuoteCurrency,
		TargetRate:    req.TargetRate,
		Direction:     req.Direction,
		Active:        true,
	}
	m.alerts[alert.ID] = alert
	return alert, nil
}

func (m *mockAlertsServiceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ExchangeAlert, error) {
	alert, ok := m.alerts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("exchange alert", "alert not found")
	}
	copied := *alert
	return &copied, nil
}

func (m *mockAlertsServiceRepo) List(_ context.Context, _ *models.ListExchangeAlertsFilters) ([]models.ExchangeAlert, error) {
	out := make([]models.ExchangeAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockAlertsServiceRepo) Count(_ context.Context, _ *models.ListExchangeAlertsFilters) (int64, error) {
	return int64(len(m.alerts)), nil
}

func (m *mockAlertsServiceRepo) Update(_ context.Context, id uuid.UUID, req *models.UpdateExchangeAlertRequest) (*models.ExchangeAlert, error) {
	alert, ok := m.alerts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("exchange alert", "alert not found")
	}
	if req.TargetRate != nil {
		alert.TargetRate = *req.TargetRate
	}
	if req.Direction != nil {
		alert.Direction = *req.Direction
	}
	copied := *alert
	return &copied, nil
}

func (m *mockAlertsServiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.alerts[id]; !ok {
		return apperrors.NewNotFoundError("exchange alert", "alert not found")
	}
	delete(m.alerts, id)
	return nil
}

func TestAlertsService(t *testing.T) {
	createReq := func() *models.CreateExchangeAlertRequest {
		return &models.CreateExchangeAlertRequest{
			UserID:        "u1",
			BaseCurrency:  "USD",
			QuoteCurrency: "BRL",
			TargetRate:    5.5,
			Direction:     models.AlertAbove,
		}
	}

	t.Run("create publishes exchange.alert.created", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := NewAlertsService(newMockAlertsServiceRepo(), pub)

		alert, err := svc.CreateAlert(context.Background(), createReq())
		if err != nil {
			t.Fatalf("CreateAlert: %v", err)
		}
		if !alert.Active {
			t.Error("new alerts should be active")
		}

		ev := pub.last(t)
		if ev.eventType != datatypes.ExchangeAlertCreated {
			t.Errorf("event = %s, want exchange.alert.created", ev.eventType)
		}
	})

	t.Run("create rejects unknown directions", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := NewAlertsService(newMockAlertsServiceRepo(), pub)

		req := createReq()
		req.Direction = "sideways"
		if _, err := svc.CreateAlert(context.Background(), req); !errors.Is(err, models.ErrInvalidAlertDirection) {
			t.Errorf("expected ErrInvalidAlertDirection, got %v", err)
		}
		if len(pub.events) != 0 {
			t.Error("invalid create must not publish")
		}
	})

	t.Run("update publishes exchange.alert.updated", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := NewAlertsService(newMockAlertsServiceRepo(), pub)
		alert, _ := svc.CreateAlert(context.Background(), createReq())

		rate := 6.0
		updated, err := svc.UpdateAlert(context.Background(), alert.ID, &models.UpdateExchangeAlertRequest{TargetRate: &rate})
		if err != nil {
			t.Fatalf("UpdateAlert: %v", err)
		}
		if updated.TargetRate != 6.0 {
			t.Errorf("target rate = %v, want 6.0", updated.TargetRate)
		}

		if ev := pub.last(t); ev.eventType != datatypes.ExchangeAlertUpdated {
			t.Errorf("event = %s, want exchange.alert.updated", ev.eventType)
		}
	})

	t.Run("delete publishes exchange.alert.deleted with the snapshot", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := NewAlertsService(newMockAlertsServiceRepo(), pub)
		alert, _ := svc.CreateAlert(context.Background(), createReq())

		if err := svc.DeleteAlert(context.Background(), alert.ID); err != nil {
			t.Fatalf("DeleteAlert: %v", err)
		}

		ev := pub.last(t)
		if ev.eventType != datatypes.ExchangeAlertDeleted {
			t.Errorf("event = %s, want exchange.alert.deleted", ev.eventType)
		}
		if got := ev.data.(*models.ExchangeAlert); got.ID != alert.ID {
			t.Errorf("snapshot id = %s, want %s", got.ID, alert.ID)
		}

		if _, err := svc.GetAlert(context.Background(), alert.ID); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("expected not found after delete, got %v", err)
		}
	})

	t.Run("list defaults the limit", func(t *testing.T) {
		svc := NewAlertsService(newMockAlertsServiceRepo(), &recordingPublisher{})

		result, err := svc.ListAlerts(context.Background(), &models.ListExchangeAlertsFilters{})
		if err != nil {
			t.Fatalf("ListAlerts: %v", err)
		}
		if result.Limit != 100 {
			t.Errorf("Limit = %d, want 100", result.Limit)
		}
	})
}
