package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

const (
	stepVIN     = "vin"
	stepMileage = "mileage"
	stepYear    = "year"
	stepOwner   = "owner_company"
	stepModel   = "model"
	stepPlate   = "plate"
	stepFuel    = "fuel_type"
)

// BeginAddVehicle starts the vehicle registration flow.
func (e *Engine) BeginAddVehicle(ctx context.Context, chatID int64) error {
	if err := e.store.Put(ctx, chatID, newState(TagAddVehicle, stepVIN)); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, "Enter the vehicle VIN:")
}

func (e *Engine) addVehicleStep(ctx context.Context, chatID int64, st *State, text string) error {
	switch st.Step {
	case stepVIN:
		vin, err := parseVIN(text)
		if err != nil {
			return e.reprompt(ctx, chatID, "VIN is too short. Enter it again:")
		}
		exists, err := e.fleet.HasVIN(ctx, vin)
		if err != nil {
			return err
		}
		if exists {
			return e.reprompt(ctx, chatID, "A vehicle with this VIN is already registered.")
		}
		st.set(stepVIN, vin)
		return e.advance(ctx, chatID, st, stepMileage, "Enter the mileage (km):")

	case stepMileage:
		n, err := parseMileage(text)
		if err != nil {
			return e.reprompt(ctx, chatID, "Mileage must be a non-negative number. Enter it again:")
		}
		st.set(stepMileage, fmt.Sprintf("%d", n))
		return e.advance(ctx, chatID, st, stepYear, "Model year (e.g. 2018):")

	case stepYear:
		y, err := parseYear(text, e.now())
		if err != nil {
			return e.reprompt(ctx, chatID, "Invalid year. Enter it again:")
		}
		st.set(stepYear, fmt.Sprintf("%d", y))
		return e.advance(ctx, chatID, st, stepOwner, "Owner company (used for invoicing):")

	case stepOwner:
		owner := strings.TrimSpace(text)
		if owner == "" {
			return e.reprompt(ctx, chatID, "Owner company cannot be empty. Enter it again:")
		}
		st.set(stepOwner, owner)
		return e.advance(ctx, chatID, st, stepModel, "Vehicle model (or '-' to skip):")

	case stepModel:
		st.set(stepModel, optionalText(text))
		return e.advance(ctx, chatID, st, stepPlate, "Plate number (e.g. WE649LT, or '-' to skip):")

	case stepPlate:
		st.set(stepPlate, strings.ToUpper(optionalText(text)))
		return e.advance(ctx, chatID, st, stepFuel, "Fuel type (petrol/diesel/lpg/electric):")

	case stepFuel:
		fuel := strings.TrimSpace(text)
		if fuel == "" {
			return e.reprompt(ctx, chatID, "Fuel type cannot be empty. Enter it again:")
		}
		return e.commitAddVehicle(ctx, chatID, st, fuel)
	}
	return fmt.Errorf("%w: unknown step %q", domain.ErrStaleFlow, st.Step)
}

func (e *Engine) commitAddVehicle(ctx context.Context, chatID int64, st *State, fuel string) error {
	vin, err := st.field(stepVIN)
	if err != nil {
		return err
	}
	mileage, err := st.intField(stepMileage)
	if err != nil {
		return err
	}
	year, err := st.intField(stepYear)
	if err != nil {
		return err
	}
	owner, err := st.field(stepOwner)
	if err != nil {
		return err
	}
	model, err := st.field(stepModel)
	if err != nil {
		return err
	}
	plate, err := st.field(stepPlate)
	if err != nil {
		return err
	}

	v, err := e.fleet.AddVehicle(ctx, ports.AddVehicleInput{
		VIN:          vin,
		Mileage:      mileage,
		Year:         year,
		OwnerCompany: owner,
		Model:        model,
		Plate:        plate,
		FuelType:     fuel,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateVIN) {
			_ = e.store.Clear(ctx, chatID)
			return e.gw.SendText(ctx, chatID, "A vehicle with this VIN is already registered.")
		}
		return err
	}

	if err := e.store.Clear(ctx, chatID); err != nil {
		return fmt.Errorf("clear flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, "Vehicle registered.\n"+VehicleCard(v))
}
