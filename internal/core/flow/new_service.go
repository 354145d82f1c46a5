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
	stepCarIdent    = "car_identifier"
	stepMechanic    = "mechanic"
	stepDescription = "description"
	stepDesiredAt   = "desired_at"

	keyVehicleID  = "vehicle_id"
	keyMechanicID = "mechanic_id"
	keyAdminID    = "admin_id"
)

// BeginNewService starts the service-request flow for the given admin.
func (e *Engine) BeginNewService(ctx context.Context, chatID, adminID int64) error {
	st := newState(TagNewService, stepCarIdent)
	st.set(keyAdminID, fmt.Sprintf("%d", adminID))
	if err := e.store.Put(ctx, chatID, st); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, "Enter the vehicle's plate number (e.g. WE649LT):")
}

func (e *Engine) newServiceStep(ctx context.Context, chatID int64, st *State, text string) error {
	switch st.Step {
	case stepCarIdent:
		v, err := e.fleet.Resolve(ctx, text)
		if err != nil {
			if errors.Is(err, domain.ErrVehicleNotFound) {
				return e.reprompt(ctx, chatID, "No vehicle found with that plate. Enter it again or check /list_cars.")
			}
			return err
		}
		st.set(keyVehicleID, fmt.Sprintf("%d", v.ID))

		mechanics, err := e.users.Mechanics(ctx)
		if err != nil {
			return err
		}
		if len(mechanics) == 0 {
			_ = e.store.Clear(ctx, chatID)
			return e.gw.SendText(ctx, chatID, "No mechanics are registered yet. Add one with /add_mechanic <id>.")
		}

		rows := make([][]ports.Choice, 0, len(mechanics))
		for _, m := range mechanics {
			label := m.FullName
			if label == "" {
				label = fmt.Sprintf("%d", m.TelegramID)
			}
			rows = append(rows, []ports.Choice{{
				Label: label,
				Data:  fmt.Sprintf("%s%d", CallbackMechPrefix, m.TelegramID),
			}})
		}

		st.Step = stepMechanic
		if err := e.store.Put(ctx, chatID, st); err != nil {
			return fmt.Errorf("save flow state: %w", err)
		}
		return e.gw.SendChoices(ctx, chatID, "Choose a mechanic:", rows)

	case stepMechanic:
		return e.reprompt(ctx, chatID, "Please choose a mechanic using the buttons above.")

	case stepDescription:
		desc := strings.TrimSpace(text)
		if desc == "" {
			return e.reprompt(ctx, chatID, "Description cannot be empty. Describe the work needed:")
		}
		st.set(stepDescription, desc)
		return e.advance(ctx, chatID, st, stepDesiredAt, "Preferred date and time (e.g. 2025-12-05 11:00):")

	case stepDesiredAt:
		return e.commitNewService(ctx, chatID, st, strings.TrimSpace(text))
	}
	return fmt.Errorf("%w: unknown step %q", domain.ErrStaleFlow, st.Step)
}

// ChooseMechanic handles the mechanic-selection button press in the
// new-service flow.
func (e *Engine) ChooseMechanic(ctx context.Context, chatID, mechanicID int64) error {
	st, err := e.store.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load flow state: %w", err)
	}
	if st == nil || st.Tag != TagNewService || st.Step != stepMechanic {
		return e.gw.SendText(ctx, chatID, msgStale)
	}

	role, err := e.users.RoleOf(ctx, mechanicID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("look up mechanic role: %w", err)
	}
	if err != nil || role != domain.RoleMechanic {
		return e.reprompt(ctx, chatID, "That user is not a mechanic anymore. Choose another one.")
	}

	st.set(keyMechanicID, fmt.Sprintf("%d", mechanicID))
	return e.advance(ctx, chatID, st, stepDescription, "Describe the problem / scope of work:")
}

func (e *Engine) commitNewService(ctx context.Context, chatID int64, st *State, desiredAt string) error {
	vehicleID, err := st.int64Field(keyVehicleID)
	if err != nil {
		return err
	}
	mechanicID, err := st.int64Field(keyMechanicID)
	if err != nil {
		return err
	}
	adminID, err := st.int64Field(keyAdminID)
	if err != nil {
		return err
	}
	description, err := st.field(stepDescription)
	if err != nil {
		return err
	}

	res, err := e.maint.Create(ctx, ports.CreateServiceInput{
		VehicleID:   vehicleID,
		MechanicID:  mechanicID,
		AdminID:     adminID,
		Description: description,
		DesiredAt:   desiredAt,
	})
	if err != nil {
		return err
	}

	if err := e.store.Clear(ctx, chatID); err != nil {
		return fmt.Errorf("clear flow state: %w", err)
	}

	if !res.MechanicNotified {
		return e.gw.SendText(ctx, chatID, fmt.Sprintf(
			"Service request #%d created, but the mechanic could not be notified. Ask them to open the bot.",
			res.Detail.ID,
		))
	}
	return e.gw.SendText(ctx, chatID, fmt.Sprintf(
		"Service request #%d created and sent to the mechanic.", res.Detail.ID,
	))
}
