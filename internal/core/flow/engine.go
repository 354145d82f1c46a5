// Package flow implements the conversational form-filling engine: per-user
// finite-state flows that collect typed fields step by step and commit a
// single domain write at the end.
//
// Each step consumes one inbound message or button press, validates it, and
// either advances the flow or re-prompts without advancing. Flow state lives
// in a Store keyed by chat id and survives until the flow completes or is
// cancelled.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

// Callback payloads emitted on the keyboards this engine renders. The bot
// router matches on these prefixes when dispatching button presses.
const (
	CallbackFieldPrefix = "editcar:field:"
	CallbackDelete      = "editcar:delete"
	CallbackDeleteYes   = "editcar:delete:yes"
	CallbackDeleteNo    = "editcar:delete:no"
	CallbackMechPrefix  = "choose_mech:"
)

const msgStale = "This conversation expired. Please start the command again."

// Engine drives all multi-step flows. It owns the prompts and keyboards; the
// committing writes go through the core services.
type Engine struct {
	store Store
	fleet ports.FleetService
	maint ports.MaintenanceService
	users ports.UserService
	gw    ports.Gateway
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(
	store Store,
	fleet ports.FleetService,
	maint ports.MaintenanceService,
	users ports.UserService,
	gw ports.Gateway,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		store: store,
		fleet: fleet,
		maint: maint,
		users: users,
		gw:    gw,
		log:   log,
		now:   time.Now,
	}
}

// Active returns the chat's current flow state, or nil when idle.
func (e *Engine) Active(ctx context.Context, chatID int64) (*State, error) {
	return e.store.Get(ctx, chatID)
}

// Cancel clears any in-progress flow without side effects and reports whether
// one was active.
func (e *Engine) Cancel(ctx context.Context, chatID int64) (bool, error) {
	st, err := e.store.Get(ctx, chatID)
	if err != nil {
		return false, err
	}
	if st == nil {
		return false, nil
	}
	if err := e.store.Clear(ctx, chatID); err != nil {
		return false, err
	}
	e.log.Debug().Int64("chat_id", chatID).Str("flow", string(st.Tag)).Msg("flow cancelled")
	return true, nil
}

// HandleText feeds one text message into the chat's active flow. It returns
// false when the chat has no flow in progress, leaving the message to the
// command router.
func (e *Engine) HandleText(ctx context.Context, chatID int64, text string) (bool, error) {
	st, err := e.store.Get(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("load flow state: %w", err)
	}
	if st == nil {
		return false, nil
	}

	switch st.Tag {
	case TagAddVehicle:
		err = e.addVehicleStep(ctx, chatID, st, text)
	case TagNewService:
		err = e.newServiceStep(ctx, chatID, st, text)
	case TagEditVehicle:
		err = e.editVehicleStep(ctx, chatID, st, text)
	case TagRejectService:
		err = e.rejectStep(ctx, chatID, st, text)
	case TagCompleteService:
		err = e.completeStep(ctx, chatID, st, text)
	default:
		err = fmt.Errorf("%w: unknown flow %q", domain.ErrStaleFlow, st.Tag)
	}

	if err != nil {
		return true, e.recover(ctx, chatID, st, err)
	}
	return true, nil
}

// recover maps a step failure to a user-facing reply. Stale state clears the
// flow and asks the user to restart; any other failure keeps the flow and its
// collected fields so the user can simply repeat the last answer.
func (e *Engine) recover(ctx context.Context, chatID int64, st *State, err error) error {
	if errors.Is(err, domain.ErrStaleFlow) {
		_ = e.store.Clear(ctx, chatID)
		e.log.Warn().Int64("chat_id", chatID).Str("flow", string(st.Tag)).Msg("stale flow state")
		return e.gw.SendText(ctx, chatID, msgStale)
	}
	e.log.Error().Err(err).Int64("chat_id", chatID).Str("flow", string(st.Tag)).Str("step", st.Step).Msg("flow step failed")
	return e.gw.SendText(ctx, chatID, "Something went wrong. Please try again.")
}

// advance stores the updated state and sends the next prompt.
func (e *Engine) advance(ctx context.Context, chatID int64, st *State, step, prompt string) error {
	st.Step = step
	if err := e.store.Put(ctx, chatID, st); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, prompt)
}

// reprompt reports a validation failure without advancing the flow.
func (e *Engine) reprompt(ctx context.Context, chatID int64, msg string) error {
	return e.gw.SendText(ctx, chatID, msg)
}

// VehicleCard renders a vehicle the way it appears in every reply that shows one.
func VehicleCard(v *domain.Vehicle) string {
	return fmt.Sprintf(
		"ID: %d\nPlate: %s\nVIN: %s\nModel: %s\nCompany: %s\nYear: %d | Mileage: %d km",
		v.ID, orDash(v.Plate), v.VIN, orDash(v.Model), orDash(v.OwnerCompany), v.Year, v.Mileage,
	)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return OmitSentinel
	}
	return s
}
