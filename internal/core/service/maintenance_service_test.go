package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubServiceRepo struct {
	details   map[int64]*domain.ServiceDetail
	nextID    int64
	createErr error
	completed map[int64]ports.Completion

	monthlyTotal float64
	monthlyErr   error
}

func newStubServiceRepo() *stubServiceRepo {
	return &stubServiceRepo{
		details:   make(map[int64]*domain.ServiceDetail),
		completed: make(map[int64]ports.Completion),
	}
}

func (r *stubServiceRepo) seed(id, mechanicID, adminID int64, status domain.ServiceStatus) {
	r.details[id] = &domain.ServiceDetail{
		ServiceRequest: domain.ServiceRequest{
			ID:          id,
			VehicleID:   1,
			MechanicID:  mechanicID,
			AdminID:     adminID,
			Description: "brake pads",
			DesiredAt:   "2026-03-12 10:00",
			Status:      status,
			CreatedAt:   time.Now().UTC(),
		},
		Plate:        "WE649LT",
		VIN:          "WAUZZZ8K9NA123",
		OwnerCompany: "Acme Logistics",
	}
	if id > r.nextID {
		r.nextID = id
	}
}

func (r *stubServiceRepo) Create(_ context.Context, s *domain.ServiceRequest) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	s.ID = r.nextID
	r.details[s.ID] = &domain.ServiceDetail{ServiceRequest: *s, Plate: "WE649LT", VIN: "WAUZZZ8K9NA123"}
	return nil
}

func (r *stubServiceRepo) FindDetail(_ context.Context, id int64) (*domain.ServiceDetail, error) {
	d, ok := r.details[id]
	if !ok {
		return nil, domain.ErrServiceNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *stubServiceRepo) UpdateStatus(_ context.Context, id int64, next domain.ServiceStatus) error {
	d, ok := r.details[id]
	if !ok {
		return domain.ErrServiceNotFound
	}
	if !d.Status.CanTransitionTo(next) {
		return domain.ErrInvalidTransition
	}
	d.Status = next
	return nil
}

func (r *stubServiceRepo) Complete(_ context.Context, id int64, c ports.Completion) error {
	d, ok := r.details[id]
	if !ok {
		return domain.ErrServiceNotFound
	}
	if !d.Status.CanTransitionTo(domain.StatusDone) {
		return domain.ErrInvalidTransition
	}
	d.Status = domain.StatusDone
	d.FinalMileage = &c.FinalMileage
	d.CostNet = &c.CostNet
	d.Comments = c.Comments
	r.completed[id] = c
	return nil
}

func (r *stubServiceRepo) MonthlyNetTotal(_ context.Context, _, _ int) (float64, error) {
	return r.monthlyTotal, r.monthlyErr
}

type stubNotifier struct {
	assigned  []int64
	confirmed []int64
	rejected  []string // alt slots, one per rejection
	completed []int64

	assignedErr error
}

func (n *stubNotifier) ServiceAssigned(_ context.Context, d *domain.ServiceDetail) error {
	if n.assignedErr != nil {
		return n.assignedErr
	}
	n.assigned = append(n.assigned, d.ID)
	return nil
}

func (n *stubNotifier) ServiceConfirmed(_ context.Context, d *domain.ServiceDetail) error {
	n.confirmed = append(n.confirmed, d.ID)
	return nil
}

func (n *stubNotifier) ServiceRejected(_ context.Context, _ *domain.ServiceDetail, altSlot string) error {
	n.rejected = append(n.rejected, altSlot)
	return nil
}

func (n *stubNotifier) ServiceCompleted(_ context.Context, r *ports.CompletionResult) error {
	n.completed = append(n.completed, r.Detail.ID)
	return nil
}

func newMaintSvc(repo *stubServiceRepo, notifier *stubNotifier) *MaintenanceService {
	return NewMaintenanceService(repo, notifier, zerolog.Nop())
}

func createInput() ports.CreateServiceInput {
	return ports.CreateServiceInput{
		VehicleID:   1,
		MechanicID:  200,
		AdminID:     100,
		Description: "brake pads",
		DesiredAt:   "2026-03-12 10:00",
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMaintenanceService_Create_HappyPath(t *testing.T) {
	repo := newStubServiceRepo()
	notifier := &stubNotifier{}
	svc := newMaintSvc(repo, notifier)

	res, err := svc.Create(context.Background(), createInput())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.Detail.Status != domain.StatusPending {
		t.Errorf("new request must be pending, got %s", res.Detail.Status)
	}
	if !res.MechanicNotified {
		t.Errorf("expected mechanic notified")
	}
	if len(notifier.assigned) != 1 || notifier.assigned[0] != res.Detail.ID {
		t.Errorf("expected assignment notification for #%d, got %v", res.Detail.ID, notifier.assigned)
	}
}

func TestMaintenanceService_Create_NotificationFailureIsNotFatal(t *testing.T) {
	repo := newStubServiceRepo()
	notifier := &stubNotifier{assignedErr: errors.New("chat not found")}
	svc := newMaintSvc(repo, notifier)

	res, err := svc.Create(context.Background(), createInput())
	if err != nil {
		t.Fatalf("create must succeed despite notification failure, got: %v", err)
	}
	if res.MechanicNotified {
		t.Errorf("expected MechanicNotified=false")
	}
	if len(repo.details) != 1 {
		t.Errorf("request must be persisted")
	}
}

func TestMaintenanceService_Confirm(t *testing.T) {
	repo := newStubServiceRepo()
	repo.seed(5, 200, 100, domain.StatusPending)
	notifier := &stubNotifier{}
	svc := newMaintSvc(repo, notifier)

	// Wrong mechanic.
	if _, err := svc.Confirm(context.Background(), 5, 999); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}
	if repo.details[5].Status != domain.StatusPending {
		t.Errorf("status must not change on a forbidden action")
	}

	// Assigned mechanic.
	d, err := svc.Confirm(context.Background(), 5, 200)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if d.Status != domain.StatusConfirmed || repo.details[5].Status != domain.StatusConfirmed {
		t.Errorf("expected status confirmed")
	}
	if len(notifier.confirmed) != 1 {
		t.Errorf("expected admin notified of confirmation")
	}

	// Confirm is only legal from pending.
	if _, err := svc.Confirm(context.Background(), 5, 200); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestMaintenanceService_Confirm_NotFound(t *testing.T) {
	svc := newMaintSvc(newStubServiceRepo(), &stubNotifier{})
	if _, err := svc.Confirm(context.Background(), 42, 200); !errors.Is(err, domain.ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got: %v", err)
	}
}

func TestMaintenanceService_Reject_FromConfirmed(t *testing.T) {
	repo := newStubServiceRepo()
	repo.seed(5, 200, 100, domain.StatusConfirmed)
	notifier := &stubNotifier{}
	svc := newMaintSvc(repo, notifier)

	d, err := svc.Reject(context.Background(), 5, 200, "2026-03-15 09:00")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if d.Status != domain.StatusRejected {
		t.Errorf("expected status rejected, got %s", d.Status)
	}
	if len(notifier.rejected) != 1 || notifier.rejected[0] != "2026-03-15 09:00" {
		t.Errorf("expected alt slot relayed, got %v", notifier.rejected)
	}

	// Terminal: no further transitions.
	if _, err := svc.Reject(context.Background(), 5, 200, "-"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestMaintenanceService_Complete_ComputesFigures(t *testing.T) {
	repo := newStubServiceRepo()
	repo.seed(5, 200, 100, domain.StatusPending) // pending → done is legal
	notifier := &stubNotifier{}
	svc := newMaintSvc(repo, notifier)

	res, err := svc.Complete(context.Background(), ports.CompleteServiceInput{
		ServiceID:    5,
		MechanicID:   200,
		FinalMileage: 131000,
		CostNet:      500,
		Comments:     "pads and discs replaced",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.Net != 500 || res.VAT != 115 || res.Gross != 615 {
		t.Errorf("figures: net=%v vat=%v gross=%v, want 500/115/615", res.Net, res.VAT, res.Gross)
	}
	if res.Detail.Status != domain.StatusDone {
		t.Errorf("expected status done")
	}
	c, ok := repo.completed[5]
	if !ok || c.FinalMileage != 131000 || c.CostNet != 500 || c.Comments != "pads and discs replaced" {
		t.Errorf("unexpected persisted completion: %+v", c)
	}
	if len(notifier.completed) != 1 {
		t.Errorf("expected admin notified of completion")
	}
}

func TestMaintenanceService_Complete_Guards(t *testing.T) {
	repo := newStubServiceRepo()
	repo.seed(5, 200, 100, domain.StatusRejected)
	svc := newMaintSvc(repo, &stubNotifier{})

	in := ports.CompleteServiceInput{ServiceID: 5, MechanicID: 200, FinalMileage: 1, CostNet: 1}
	if _, err := svc.Complete(context.Background(), in); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from rejected, got: %v", err)
	}

	in.MechanicID = 999
	if _, err := svc.Complete(context.Background(), in); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for foreign mechanic, got: %v", err)
	}
}
