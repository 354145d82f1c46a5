package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinModelYear is the oldest model year accepted for a tracked vehicle.
const MinModelYear = 1980

// Vehicle is a tracked fleet asset. The VIN is unique across the fleet;
// Model and Plate are optional and stored empty when omitted.
type Vehicle struct {
	ID           int64     `json:"id" bson:"_id"`
	VIN          string    `json:"vin" bson:"vin"`
	Mileage      int       `json:"mileage" bson:"mileage"`
	Year         int       `json:"year" bson:"year"`
	OwnerCompany string    `json:"owner_company" bson:"owner_company"`
	Model        string    `json:"model,omitempty" bson:"model,omitempty"`
	Plate        string    `json:"plate,omitempty" bson:"plate,omitempty"`
	FuelType     string    `json:"fuel_type" bson:"fuel_type"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// VehicleField enumerates the vehicle columns an admin may edit. Anything
// outside this enumeration is rejected at the boundary.
type VehicleField string

const (
	FieldVIN          VehicleField = "vin"
	FieldMileage      VehicleField = "mileage"
	FieldYear         VehicleField = "year"
	FieldOwnerCompany VehicleField = "owner_company"
	FieldModel        VehicleField = "model"
	FieldPlate        VehicleField = "plate"
	FieldFuelType     VehicleField = "fuel_type"
)

// EditableFields lists every field accepted by ParseVehicleField, in the
// order they are offered to the user.
var EditableFields = []VehicleField{
	FieldVIN, FieldMileage, FieldYear,
	FieldOwnerCompany, FieldModel, FieldPlate, FieldFuelType,
}

// ParseVehicleField maps a raw field tag to the enumeration, returning
// ErrUnknownField for anything outside the allow-list.
func ParseVehicleField(s string) (VehicleField, error) {
	for _, f := range EditableFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Normalize parses and coerces a raw user-supplied value into the typed
// representation stored for this field. Integer fields must parse and respect
// their bounds; VIN and plate are uppercased.
func (f VehicleField) Normalize(raw string, now time.Time) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f {
	case FieldVIN:
		vin := strings.ToUpper(raw)
		if len(vin) < 5 {
			return nil, fmt.Errorf("vin must be at least 5 characters")
		}
		return vin, nil
	case FieldMileage:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("mileage must be a non-negative integer")
		}
		return n, nil
	case FieldYear:
		n, err := strconv.Atoi(raw)
		if err != nil || n < MinModelYear || n > now.Year()+1 {
			return nil, fmt.Errorf("year must be between %d and %d", MinModelYear, now.Year()+1)
		}
		return n, nil
	case FieldPlate:
		return strings.ToUpper(raw), nil
	case FieldOwnerCompany, FieldModel, FieldFuelType:
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
}
