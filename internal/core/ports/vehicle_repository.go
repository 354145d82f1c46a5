package ports

import (
	"context"

	"github.com/fleetops/fleetbot/internal/core/domain"
)

// VehicleRepository defines persistence operations for vehicles.
type VehicleRepository interface {
	Create(ctx context.Context, v *domain.Vehicle) error
	// List returns up to limit vehicles, most recently added first.
	List(ctx context.Context, limit int) ([]domain.Vehicle, error)
	FindByID(ctx context.Context, id int64) (*domain.Vehicle, error)
	// FindByVIN matches the stored (uppercase) VIN exactly.
	FindByVIN(ctx context.Context, vin string) (*domain.Vehicle, error)
	// FindByPlateOrVIN matches either column case-insensitively.
	FindByPlateOrVIN(ctx context.Context, identifier string) (*domain.Vehicle, error)
	// UpdateField sets a single allow-listed field to an already-normalized value.
	UpdateField(ctx context.Context, id int64, field domain.VehicleField, value any) error
	Delete(ctx context.Context, id int64) error
}
