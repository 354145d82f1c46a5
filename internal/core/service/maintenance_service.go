package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

// Notifier delivers lifecycle notifications to the counterpart of an action:
// the assigned mechanic on create, the requesting admin on confirm, reject
// and complete. Delivery failures must never fail the primary operation.
type Notifier interface {
	ServiceAssigned(ctx context.Context, d *domain.ServiceDetail) error
	ServiceConfirmed(ctx context.Context, d *domain.ServiceDetail) error
	ServiceRejected(ctx context.Context, d *domain.ServiceDetail, altSlot string) error
	ServiceCompleted(ctx context.Context, r *ports.CompletionResult) error
}

// MaintenanceService implements the service-request lifecycle.
type MaintenanceService struct {
	repo     ports.ServiceRepository
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewMaintenanceService(repo ports.ServiceRepository, notifier Notifier, logger zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

// Create opens a request with status=pending and notifies the assigned
// mechanic. A failed notification is reported in the result, not as an error.
func (s *MaintenanceService) Create(ctx context.Context, in ports.CreateServiceInput) (*ports.CreateServiceResult, error) {
	req := &domain.ServiceRequest{
		VehicleID:   in.VehicleID,
		MechanicID:  in.MechanicID,
		AdminID:     in.AdminID,
		Description: in.Description,
		DesiredAt:   in.DesiredAt,
		Status:      domain.StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.Error().Err(err).Int64("vehicle_id", in.VehicleID).Msg("failed to create service request")
		return nil, err
	}

	detail, err := s.repo.FindDetail(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("load created service request: %w", err)
	}

	s.logger.Info().
		Int64("service_id", req.ID).
		Int64("vehicle_id", in.VehicleID).
		Int64("mechanic_id", in.MechanicID).
		Msg("service request created")

	notified := true
	if err := s.notifier.ServiceAssigned(ctx, detail); err != nil {
		notified = false
		s.logger.Warn().Err(err).Int64("service_id", req.ID).Msg("failed to notify mechanic")
	}

	return &ports.CreateServiceResult{Detail: detail, MechanicNotified: notified}, nil
}

func (s *MaintenanceService) Get(ctx context.Context, id int64) (*domain.ServiceDetail, error) {
	return s.repo.FindDetail(ctx, id)
}

// Confirm moves a pending request to confirmed. Only the assigned mechanic
// may act, and only from the pending state.
func (s *MaintenanceService) Confirm(ctx context.Context, id, mechanicID int64) (*domain.ServiceDetail, error) {
	detail, err := s.ownedBy(ctx, id, mechanicID)
	if err != nil {
		return nil, err
	}
	if !detail.Status.CanTransitionTo(domain.StatusConfirmed) {
		return nil, fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, detail.Status, domain.StatusConfirmed)
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.StatusConfirmed); err != nil {
		return nil, err
	}
	detail.Status = domain.StatusConfirmed

	s.logger.Info().Int64("service_id", id).Int64("mechanic_id", mechanicID).Msg("service request confirmed")

	if err := s.notifier.ServiceConfirmed(ctx, detail); err != nil {
		s.logger.Warn().Err(err).Int64("service_id", id).Msg("failed to notify admin of confirmation")
	}
	return detail, nil
}

// Reject closes the request from pending or confirmed. The mechanic's
// alternative slot proposal is relayed to the requesting admin.
func (s *MaintenanceService) Reject(ctx context.Context, id, mechanicID int64, altSlot string) (*domain.ServiceDetail, error) {
	detail, err := s.ownedBy(ctx, id, mechanicID)
	if err != nil {
		return nil, err
	}
	if !detail.Status.CanTransitionTo(domain.StatusRejected) {
		return nil, fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, detail.Status, domain.StatusRejected)
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.StatusRejected); err != nil {
		return nil, err
	}
	detail.Status = domain.StatusRejected

	s.logger.Info().Int64("service_id", id).Int64("mechanic_id", mechanicID).Msg("service request rejected")

	if err := s.notifier.ServiceRejected(ctx, detail, altSlot); err != nil {
		s.logger.Warn().Err(err).Int64("service_id", id).Msg("failed to notify admin of rejection")
	}
	return detail, nil
}

// Complete sets the completion fields atomically with status=done and
// computes the display figures (net, 23% VAT, gross).
func (s *MaintenanceService) Complete(ctx context.Context, in ports.CompleteServiceInput) (*ports.CompletionResult, error) {
	detail, err := s.ownedBy(ctx, in.ServiceID, in.MechanicID)
	if err != nil {
		return nil, err
	}
	if !detail.Status.CanTransitionTo(domain.StatusDone) {
		return nil, fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, detail.Status, domain.StatusDone)
	}

	completion := ports.Completion{
		FinalMileage: in.FinalMileage,
		CostNet:      domain.Round2(in.CostNet),
		Comments:     in.Comments,
	}
	if err := s.repo.Complete(ctx, in.ServiceID, completion); err != nil {
		return nil, err
	}

	detail.Status = domain.StatusDone
	detail.FinalMileage = &completion.FinalMileage
	detail.CostNet = &completion.CostNet
	detail.Comments = completion.Comments

	net := completion.CostNet
	vat := domain.Round2(net * domain.VATRate)
	result := &ports.CompletionResult{
		Detail: detail,
		Net:    net,
		VAT:    vat,
		Gross:  domain.Round2(net + vat),
	}

	s.logger.Info().
		Int64("service_id", in.ServiceID).
		Float64("cost_net", net).
		Msg("service request completed")

	if err := s.notifier.ServiceCompleted(ctx, result); err != nil {
		s.logger.Warn().Err(err).Int64("service_id", in.ServiceID).Msg("failed to notify admin of completion")
	}
	return result, nil
}

// ownedBy loads the request and verifies the acting user is its assigned mechanic.
func (s *MaintenanceService) ownedBy(ctx context.Context, id, mechanicID int64) (*domain.ServiceDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.MechanicID != mechanicID {
		return nil, domain.ErrForbidden
	}
	return detail, nil
}
