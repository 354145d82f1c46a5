package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

const (
	stepEditIdent     = "identifier"
	stepEditField     = "field"
	stepEditValue     = "value"
	stepDeleteConfirm = "delete_confirm"

	keyEditField = "field"
)

var fieldPrompts = map[domain.VehicleField]string{
	domain.FieldVIN:          "Enter the new VIN:",
	domain.FieldMileage:      "Enter the new mileage (km):",
	domain.FieldYear:         "Enter the new model year:",
	domain.FieldOwnerCompany: "Enter the owner company:",
	domain.FieldModel:        "Enter the new model:",
	domain.FieldPlate:        "Enter the new plate number:",
	domain.FieldFuelType:     "Enter the fuel type:",
}

var fieldLabels = map[domain.VehicleField]string{
	domain.FieldVIN:          "VIN",
	domain.FieldMileage:      "Mileage",
	domain.FieldYear:         "Year",
	domain.FieldOwnerCompany: "Company",
	domain.FieldModel:        "Model",
	domain.FieldPlate:        "Plate",
	domain.FieldFuelType:     "Fuel",
}

// BeginEditVehicle starts the edit flow. When an identifier is given with the
// command it is resolved immediately, skipping the identifier step.
func (e *Engine) BeginEditVehicle(ctx context.Context, chatID int64, identifier string) error {
	if identifier == "" {
		if err := e.store.Put(ctx, chatID, newState(TagEditVehicle, stepEditIdent)); err != nil {
			return fmt.Errorf("save flow state: %w", err)
		}
		return e.gw.SendText(ctx, chatID, "Enter the plate number, VIN or id of the vehicle to edit:")
	}

	v, err := e.fleet.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrVehicleNotFound) {
			return e.gw.SendText(ctx, chatID, "Vehicle not found. Check the plate / VIN or use /list_cars.")
		}
		return err
	}
	return e.showFieldMenu(ctx, chatID, newState(TagEditVehicle, stepEditField), v)
}

func (e *Engine) editVehicleStep(ctx context.Context, chatID int64, st *State, text string) error {
	switch st.Step {
	case stepEditIdent:
		v, err := e.fleet.Resolve(ctx, text)
		if err != nil {
			if errors.Is(err, domain.ErrVehicleNotFound) {
				return e.reprompt(ctx, chatID, "Vehicle not found. Check the plate / VIN or use /list_cars.")
			}
			return err
		}
		return e.showFieldMenu(ctx, chatID, st, v)

	case stepEditField, stepDeleteConfirm:
		return e.reprompt(ctx, chatID, "Please use the buttons above.")

	case stepEditValue:
		return e.commitEditValue(ctx, chatID, st, text)
	}
	return fmt.Errorf("%w: unknown step %q", domain.ErrStaleFlow, st.Step)
}

func (e *Engine) showFieldMenu(ctx context.Context, chatID int64, st *State, v *domain.Vehicle) error {
	st.set(keyVehicleID, fmt.Sprintf("%d", v.ID))
	st.Step = stepEditField
	if err := e.store.Put(ctx, chatID, st); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}

	fieldChoice := func(f domain.VehicleField) ports.Choice {
		return ports.Choice{Label: fieldLabels[f], Data: CallbackFieldPrefix + string(f)}
	}
	rows := [][]ports.Choice{
		{fieldChoice(domain.FieldVIN), fieldChoice(domain.FieldMileage), fieldChoice(domain.FieldYear)},
		{fieldChoice(domain.FieldOwnerCompany), fieldChoice(domain.FieldModel)},
		{fieldChoice(domain.FieldPlate), fieldChoice(domain.FieldFuelType)},
		{{Label: "Delete vehicle", Data: CallbackDelete}},
	}
	return e.gw.SendChoices(ctx, chatID, VehicleCard(v)+"\n\nWhat do you want to change?", rows)
}

// ChooseEditField handles the field-selection button press in the edit flow.
// Field tags outside the editable enumeration are rejected without touching
// the record.
func (e *Engine) ChooseEditField(ctx context.Context, chatID int64, field string) error {
	st, err := e.store.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load flow state: %w", err)
	}
	if st == nil || st.Tag != TagEditVehicle || st.Step != stepEditField {
		return e.gw.SendText(ctx, chatID, msgStale)
	}
	if _, err := st.field(keyVehicleID); err != nil {
		return e.recover(ctx, chatID, st, err)
	}

	f, err := domain.ParseVehicleField(field)
	if err != nil {
		return e.reprompt(ctx, chatID, "This field cannot be edited.")
	}

	st.set(keyEditField, string(f))
	return e.advance(ctx, chatID, st, stepEditValue, fieldPrompts[f])
}

func (e *Engine) commitEditValue(ctx context.Context, chatID int64, st *State, text string) error {
	vehicleID, err := st.int64Field(keyVehicleID)
	if err != nil {
		return err
	}
	fieldTag, err := st.field(keyEditField)
	if err != nil {
		return err
	}

	f, err := domain.ParseVehicleField(fieldTag)
	if err != nil {
		return err
	}
	// Validate before the write so a bad value re-prompts instead of failing.
	if _, err := f.Normalize(text, e.now()); err != nil {
		return e.reprompt(ctx, chatID, fmt.Sprintf("%s. Enter the value again:", capitalizeError(err)))
	}

	v, err := e.fleet.UpdateField(ctx, vehicleID, fieldTag, text)
	if err != nil {
		if errors.Is(err, domain.ErrVehicleNotFound) {
			_ = e.store.Clear(ctx, chatID)
			return e.gw.SendText(ctx, chatID, "This vehicle no longer exists.")
		}
		return err
	}

	if err := e.store.Clear(ctx, chatID); err != nil {
		return fmt.Errorf("clear flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, "Vehicle updated.\n"+VehicleCard(v))
}

// BeginDeleteConfirm handles the delete button press in the edit flow and
// asks for explicit confirmation.
func (e *Engine) BeginDeleteConfirm(ctx context.Context, chatID int64) error {
	st, err := e.store.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load flow state: %w", err)
	}
	if st == nil || st.Tag != TagEditVehicle || st.Step != stepEditField {
		return e.gw.SendText(ctx, chatID, msgStale)
	}
	if _, err := st.field(keyVehicleID); err != nil {
		return e.recover(ctx, chatID, st, err)
	}

	st.Step = stepDeleteConfirm
	if err := e.store.Put(ctx, chatID, st); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}
	rows := [][]ports.Choice{{
		{Label: "Yes, delete", Data: CallbackDeleteYes},
		{Label: "No", Data: CallbackDeleteNo},
	}}
	return e.gw.SendChoices(ctx, chatID, "Are you sure you want to delete this vehicle?", rows)
}

// ResolveDelete handles the yes/no confirmation button. "No" cancels the
// whole flow without side effects.
func (e *Engine) ResolveDelete(ctx context.Context, chatID int64, confirmed bool) error {
	st, err := e.store.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load flow state: %w", err)
	}
	if st == nil || st.Tag != TagEditVehicle || st.Step != stepDeleteConfirm {
		return e.gw.SendText(ctx, chatID, msgStale)
	}

	if !confirmed {
		if err := e.store.Clear(ctx, chatID); err != nil {
			return fmt.Errorf("clear flow state: %w", err)
		}
		return e.gw.SendText(ctx, chatID, "Deletion cancelled.")
	}

	vehicleID, err := st.int64Field(keyVehicleID)
	if err != nil {
		return e.recover(ctx, chatID, st, err)
	}
	if err := e.fleet.DeleteVehicle(ctx, vehicleID); err != nil {
		return err
	}
	if err := e.store.Clear(ctx, chatID); err != nil {
		return fmt.Errorf("clear flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, fmt.Sprintf("Vehicle ID %d has been deleted.", vehicleID))
}

// capitalizeError upper-cases the first letter of an error message for reply text.
func capitalizeError(err error) string {
	msg := err.Error()
	if msg == "" || msg[0] < 'a' || msg[0] > 'z' {
		return msg
	}
	return string(msg[0]-('a'-'A')) + msg[1:]
}
