package ports

import (
	"context"

	"github.com/fleetops/fleetbot/internal/core/domain"
)

// UserService covers registration and role management.
type UserService interface {
	// EnsureUser registers the user on first contact and returns their role.
	// The first user ever registered becomes admin.
	EnsureUser(ctx context.Context, telegramID int64, fullName string) (domain.Role, error)
	RoleOf(ctx context.Context, telegramID int64) (domain.Role, error)
	// RequireAdmin returns domain.ErrForbidden unless the user is an admin.
	RequireAdmin(ctx context.Context, telegramID int64) error
	// PromoteMechanic grants the mechanic role to target. Admin-only; the
	// target must already have registered with the bot.
	PromoteMechanic(ctx context.Context, adminID, targetID int64) error
	Mechanics(ctx context.Context) ([]domain.User, error)
	Admins(ctx context.Context) ([]domain.User, error)
}

// AddVehicleInput carries all collected fields for registering a vehicle.
// Model and Plate may be empty (omitted).
type AddVehicleInput struct {
	VIN          string `validate:"required,min=5"`
	Mileage      int    `validate:"gte=0"`
	Year         int    `validate:"gte=1980"`
	OwnerCompany string `validate:"required"`
	Model        string
	Plate        string
	FuelType     string `validate:"required"`
}

// FleetService covers the vehicle registry.
type FleetService interface {
	// AddVehicle validates the input and persists a new vehicle. A VIN equal
	// (case-insensitively) to an existing vehicle's is rejected with
	// domain.ErrDuplicateVIN before insertion.
	AddVehicle(ctx context.Context, in AddVehicleInput) (*domain.Vehicle, error)
	ListVehicles(ctx context.Context, limit int) ([]domain.Vehicle, error)
	// Resolve finds a vehicle by numeric id first, then by plate or VIN
	// matched case-insensitively.
	Resolve(ctx context.Context, identifier string) (*domain.Vehicle, error)
	// HasVIN reports whether a vehicle with this VIN (case-insensitive) exists.
	HasVIN(ctx context.Context, vin string) (bool, error)
	// UpdateField sets one allow-listed field from its raw text value and
	// returns the updated vehicle.
	UpdateField(ctx context.Context, id int64, field string, raw string) (*domain.Vehicle, error)
	DeleteVehicle(ctx context.Context, id int64) error
}

// CreateServiceInput carries all collected fields for opening a service request.
type CreateServiceInput struct {
	VehicleID   int64
	MechanicID  int64
	AdminID     int64
	Description string
	DesiredAt   string
}

// CreateServiceResult reports the created request and whether the assigned
// mechanic could be reached. A failed notification never fails the create.
type CreateServiceResult struct {
	Detail           *domain.ServiceDetail
	MechanicNotified bool
}

// CompleteServiceInput carries the completion fields entered by the mechanic.
type CompleteServiceInput struct {
	ServiceID    int64
	MechanicID   int64
	FinalMileage int
	CostNet      float64
	Comments     string
}

// CompletionResult is the closed request plus its display money figures:
// gross = net + round(net * VAT, 2).
type CompletionResult struct {
	Detail *domain.ServiceDetail
	Net    float64
	VAT    float64
	Gross  float64
}

// MaintenanceService covers the service-request lifecycle. Confirm, Reject
// and Complete are mechanic actions and return domain.ErrForbidden when the
// acting user is not the assigned mechanic, and domain.ErrInvalidTransition
// when the request is already past an eligible source state.
type MaintenanceService interface {
	Create(ctx context.Context, in CreateServiceInput) (*CreateServiceResult, error)
	Get(ctx context.Context, id int64) (*domain.ServiceDetail, error)
	Confirm(ctx context.Context, id, mechanicID int64) (*domain.ServiceDetail, error)
	// Reject closes the request; altSlot is the mechanic's proposed
	// alternative time ("-" meaning outright refusal) relayed to the admin.
	Reject(ctx context.Context, id, mechanicID int64, altSlot string) (*domain.ServiceDetail, error)
	Complete(ctx context.Context, in CompleteServiceInput) (*CompletionResult, error)
}

// MonthlyReport aggregates completed service costs for one calendar month.
type MonthlyReport struct {
	Year       int
	Month      int
	NetTotal   float64
	Commission float64
}

// ReportService produces financial summaries.
type ReportService interface {
	Monthly(ctx context.Context, year, month int) (*MonthlyReport, error)
}
