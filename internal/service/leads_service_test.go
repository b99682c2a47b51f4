package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
	apperrors "github.com/leadwire/relay/internal/errors"
	"github.com/leadwire/relay/internal/models"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	eventType     datatypes.EventType
	data          any
	changedFields []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType datatypes.EventType, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{eventType: eventType, data: data})
}

func (p *recordingPublisher) PublishWithChangedFields(_ context.Context, eventType datatypes.EventType, data any, changedFields []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{eventType: eventType, data: data, changedFields: changedFields})
}

func (p *recordingPublisher) last(t *testing.T) recordedEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("no events published")
	}
	return p.events[len(p.events)-1]
}

type mockLeadsRepo struct {
	leads     map[uuid.UUID]*models.Lead
	deleteErr error
}

func newMockLeadsRepo() *mockLeadsRepo {
	return &mockLeadsRepo{leads: make(map[uuid.UUID]*models.Lead)}
}

func (m *mockLeadsRepo) Create(_ context.Context, req *models.CreateLeadRequest) (*models.Lead, error) {
	status := req.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	lead := &models.Lead{
		ID:     uuid.Must(uuid.NewV7()),
		Name:   req.Name,
		Email:  req.Email,
		Status: status,
	}
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *mockLeadsRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Lead, error) {
	lead, ok := m.leads[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("lead", "lead not found")
	}
	copied := *lead
	return &copied, nil
}

func (m *mockLeadsRepo) List(_ context.Context, _ *models.ListLeadsFilters) ([]models.Lead, error) {
	out := make([]models.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		out = append(out, *l)
	}
	return out, nil
}

func (m *mockLeadsRepo) Count(_ context.Context, _ *models.ListLeadsFilters) (int64, error) {
	return int64(len(m.leads)), nil
}

func (m *mockLeadsRepo) Update(_ context.Context, id uuid.UUID, req *models.UpdateLeadRequest) (*models.Lead, error) {
	lead, ok := m.leads[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("lead", "lead not found")
	}
	if req.Status != nil {
		lead.Status = *req.Status
	}
	if req.Name != nil {
		lead.Name = *req.Name
	}
	copied := *lead
	return &copied, nil
}

func (m *mockLeadsRepo) SetAssignment(_ context.Context, id uuid.UUID, column string, userID *string) (*models.Lead, error) {
	lead, ok := m.leads[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("lead", "lead not found")
	}
	switch column {
	case "realtor_id":
		lead.RealtorID = userID
	case "partner_id":
		lead.PartnerID = userID
	case "broker_id":
		lead.BrokerID = userID
	}
	copied := *lead
	return &copied, nil
}

func (m *mockLeadsRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.leads[id]; !ok {
		return apperrors.NewNotFoundError("lead", "lead not found")
	}
	delete(m.leads, id)
	return nil
}

func TestLeadsService_Events(t *testing.T) {
	newService := func() (*LeadsService, *mockLeadsRepo, *recordingPublisher) {
		repo := newMockLeadsRepo()
		pub := &recordingPublisher{}
		return NewLeadsService(repo, pub, nil), repo, pub
	}

	t.Run("create publishes lead.created with the new lead", func(t *testing.T) {
		svc, _, pub := newService()

		lead, err := svc.CreateLead(context.Background(), &models.CreateLeadRequest{Name: "Ana"})
		if err != nil {
			t.Fatalf("CreateLead: %v", err)
		}

		ev := pub.last(t)
		if ev.eventType != datatypes.LeadCreated {
			t.Errorf("event = %s, want lead.created", ev.eventType)
		}
		if got := ev.data.(*models.Lead); got.ID != lead.ID {
			t.Errorf("event carries lead %s, want %s", got.ID, lead.ID)
		}
		if lead.Status != models.LeadStatusNew {
			t.Errorf("status = %q, want new", lead.Status)
		}
	})

	t.Run("update publishes lead.updated with changed fields", func(t *testing.T) {
		svc, _, pub := newService()
		lead, _ := svc.CreateLead(context.Background(), &models.CreateLeadRequest{Name: "Ana"})

		status := "qualified"
		if _, err := svc.UpdateLead(context.Background(), lead.ID, &models.UpdateLeadRequest{Status: &status}); err != nil {
			t.Fatalf("UpdateLead: %v", err)
		}

		ev := pub.last(t)
		if ev.eventType != datatypes.LeadUpdated {
			t.Errorf("event = %s, want lead.updated", ev.eventType)
		}
		if len(ev.changedFields) != 1 || ev.changedFields[0] != "status" {
			t.Errorf("changed fields = %v, want [status]", ev.changedFields)
		}
	})

	t.Run("delete publishes lead.deleted carrying the old snapshot", func(t *testing.T) {
		svc, _, pub := newService()
		lead, _ := svc.CreateLead(context.Background(), &models.CreateLeadRequest{Name: "Ana"})

		if err := svc.DeleteLead(context.Background(), lead.ID); err != nil {
			t.Fatalf("DeleteLead: %v", err)
		}

		ev := pub.last(t)
		if ev.eventType != datatypes.LeadDeleted {
			t.Errorf("event = %s, want lead.deleted", ev.eventType)
		}
		if got := ev.data.(*models.Lead); got.Name != "Ana" {
			t.Errorf("snapshot = %+v", got)
		}
	})

	t.Run("failed delete publishes nothing", func(t *testing.T) {
		repo := newMockLeadsRepo()
		pub := &recordingPublisher{}
		svc := NewLeadsService(repo, pub, nil)
		lead, _ := svc.CreateLead(context.Background(), &models.CreateLeadRequest{Name: "Ana"})
		before := len(pub.events)

		repo.deleteErr = errors.New("db down")
		if err := svc.DeleteLead(context.Background(), lead.ID); err == nil {
			t.Fatal("expected delete error")
		}

		if len(pub.events) != before {
			t.Error("failed delete must not publish lead.deleted")
		}
	})

	t.Run("assignment operations publish their events", func(t *testing.T) {
		cases := []struct {
			name string
			op   func(svc *LeadsService, id uuid.UUID) error
			want datatypes.EventType
		}{
			{"assign realtor", func(svc *LeadsService, id uuid.UUID) error {
				_, err := svc.AssignRealtor(context.Background(), id, "u1")
				return err
			}, datatypes.LeadRealtorAssigned},
			{"unassign realtor", func(svc *LeadsService, id uuid.UUID) error {
				_, err := svc.UnassignRealtor(context.Background(), id)
				return err
			}, datatypes.LeadRealtorUnassigned},
			{"assign partner", func(svc *LeadsService, id uuid.UUID) error {
				_, err := svc.AssignPartner(context.Background(), id, "u2")
				return err
			}, datatypes.LeadPartnerAssigned},
			{"unassign partner", func(svc *LeadsService, id uuid.UUID) error {
				_, err := svc.UnassignPartner(context.Background(), id)
				return err
			}, datatypes.LeadPartnerUnassigned},
			{"assign broker", func(svc *LeadsService, id uuid.UUID) error {
				_, err := svc.AssignBroker(context.Background(), id, "u3")
				return err
			}, datatypes.LeadBrokerAssigned},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc, _, pub := newService()
				lead, _ := svc.CreateLead(context.Background(), &models.CreateLeadRequest{Name: "Ana"})

				if err := tc.op(svc, lead.ID); err != nil {
					t.Fatalf("%s: %v", tc.name, err)
				}

				if ev := pub.last(t); ev.eventType != tc.want {
					t.Errorf("event = %s, want %s", ev.eventType, tc.want)
				}
			})
		}
	})
}

func TestLeadsService_ShareLead(t *testing.T) {
	repo := newMockLeadsRepo()
	pub := &recordingPublisher{}
	notif := &capturingNotifier{}
	svc := NewLeadsService(repo, pub, notif)

	lead, _ := svc.CreateLead(context.Background(), &models.CreateLeadRequest{Name: "Ana"})

	if _, err := svc.ShareLead(context.Background(), lead.ID, &models.ShareLeadRequest{
		RecipientUserID: "u7",
		Message:         "take a look",
	}, nil); err != nil {
		t.Fatalf("ShareLead: %v", err)
	}

	ev := pub.last(t)
	if ev.eventType != datatypes.LeadShared {
		t.Errorf("event = %s, want lead.shared", ev.eventType)
	}
	payload := ev.data.(map[string]any)
	if payload["recipient_user_id"] != "u7" {
		t.Errorf("payload = %v", payload)
	}

	if len(notif.requests) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notif.requests))
	}
	req := notif.requests[0]
	if req.Recipient != (models.Recipient{Kind: models.RecipientUser, Value: "u7"}) {
		t.Errorf("recipient = %+v", req.Recipient)
	}
	if req.Type != models.NotificationInterest {
		t.Errorf("type = %q, want interest", req.Type)
	}

	// Notification failure is logged, not surfaced.
	notif.err = errors.New("store down")
	if _, err := svc.ShareLead(context.Background(), lead.ID, &models.ShareLeadRequest{RecipientUserID: "u8"}, nil); err != nil {
		t.Errorf("notification failure should not fail the share: %v", err)
	}
}

// capturingNotifier records notification requests.
type capturingNotifier struct {
	mu       sync.Mutex
	requests []*models.CreateNotificationRequest
	err      error
}

func (n *capturingNotifier) Create(_ context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	n.requests = append(n.requests, req)
	return &models.Notification{ID: uuid.Must(uuid.NewV7())}, nil
}
