package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

const defaultListLimit = 50

// FleetService implements the vehicle registry use-cases.
type FleetService struct {
	repo   ports.VehicleRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewFleetService(repo ports.VehicleRepository, logger zerolog.Logger) *FleetService {
	return &FleetService{repo: repo, logger: logger, now: time.Now}
}

// AddVehicle validates and persists a new vehicle. The VIN is normalized to
// uppercase and pre-checked for uniqueness before insertion.
func (s *FleetService) AddVehicle(ctx context.Context, in ports.AddVehicleInput) (*domain.Vehicle, error) {
	in.VIN = strings.ToUpper(strings.TrimSpace(in.VIN))
	in.Plate = strings.ToUpper(strings.TrimSpace(in.Plate))

	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	if maxYear := s.now().Year() + 1; in.Year > maxYear {
		return nil, fmt.Errorf("year must be between %d and %d", domain.MinModelYear, maxYear)
	}

	exists, err := s.HasVIN(ctx, in.VIN)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateVIN
	}

	v := &domain.Vehicle{
		VIN:          in.VIN,
		Mileage:      in.Mileage,
		Year:         in.Year,
		OwnerCompany: strings.TrimSpace(in.OwnerCompany),
		Model:        strings.TrimSpace(in.Model),
		Plate:        in.Plate,
		FuelType:     strings.TrimSpace(in.FuelType),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, v); err != nil {
		s.logger.Error().Err(err).Str("vin", in.VIN).Msg("failed to create vehicle")
		return nil, err
	}

	s.logger.Info().Int64("vehicle_id", v.ID).Str("vin", v.VIN).Msg("vehicle registered")
	return v, nil
}

func (s *FleetService) ListVehicles(ctx context.Context, limit int) ([]domain.Vehicle, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.List(ctx, limit)
}

// Resolve finds a vehicle by numeric row id first, falling back to a
// case-insensitive match on plate or VIN.
func (s *FleetService) Resolve(ctx context.Context, identifier string) (*domain.Vehicle, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.ErrVehicleNotFound
	}

	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		v, err := s.repo.FindByID(ctx, id)
		if err == nil {
			return v, nil
		}
		if err != domain.ErrVehicleNotFound {
			return nil, err
		}
	}
	return s.repo.FindByPlateOrVIN(ctx, strings.ToUpper(identifier))
}

func (s *FleetService) HasVIN(ctx context.Context, vin string) (bool, error) {
	_, err := s.repo.FindByVIN(ctx, strings.ToUpper(strings.TrimSpace(vin)))
	switch err {
	case nil:
		return true, nil
	case domain.ErrVehicleNotFound:
		return false, nil
	default:
		return false, err
	}
}

// UpdateField sets one allow-listed field from its raw text value. The field
// tag is parsed against the editable-field enumeration and the value is
// type-coerced before the write; anything outside the enumeration is rejected
// without touching the record.
func (s *FleetService) UpdateField(ctx context.Context, id int64, field string, raw string) (*domain.Vehicle, error) {
	f, err := domain.ParseVehicleField(field)
	if err != nil {
		return nil, err
	}
	value, err := f.Normalize(raw, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateField(ctx, id, f, value); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("vehicle_id", id).Str("field", field).Msg("vehicle field updated")
	return s.repo.FindByID(ctx, id)
}

func (s *FleetService) DeleteVehicle(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("vehicle_id", id).Msg("vehicle deleted")
	return nil
}
