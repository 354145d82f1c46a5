package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

const (
	stepAltSlot      = "alt_slot"
	stepFinalMileage = "final_mileage"
	stepCostNet      = "cost_net"
	stepComments     = "comments"

	keyServiceID = "service_id"
)

// BeginReject starts the rejection flow: the mechanic is asked for an
// alternative time slot before the request is closed.
func (e *Engine) BeginReject(ctx context.Context, chatID, serviceID int64) error {
	st := newState(TagRejectService, stepAltSlot)
	st.set(keyServiceID, fmt.Sprintf("%d", serviceID))
	if err := e.store.Put(ctx, chatID, st); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, fmt.Sprintf(
		"Rejecting service request #%d.\nPropose an available date/time (or '-' for an outright refusal):",
		serviceID,
	))
}

func (e *Engine) rejectStep(ctx context.Context, chatID int64, st *State, text string) error {
	if st.Step != stepAltSlot {
		return fmt.Errorf("%w: unknown step %q", domain.ErrStaleFlow, st.Step)
	}
	serviceID, err := st.int64Field(keyServiceID)
	if err != nil {
		return err
	}

	altSlot := strings.TrimSpace(text)
	if _, err := e.maint.Reject(ctx, serviceID, chatID, altSlot); err != nil {
		return err
	}
	if err := e.store.Clear(ctx, chatID); err != nil {
		return fmt.Errorf("clear flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, "Thank you. Your proposed slot has been sent to the administrator.")
}

// BeginComplete starts the completion flow, collecting the final mileage,
// the net cost and optional comments.
func (e *Engine) BeginComplete(ctx context.Context, chatID, serviceID int64) error {
	st := newState(TagCompleteService, stepFinalMileage)
	st.set(keyServiceID, fmt.Sprintf("%d", serviceID))
	if err := e.store.Put(ctx, chatID, st); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, fmt.Sprintf(
		"Completing service request #%d.\nEnter the current mileage (km):", serviceID,
	))
}

func (e *Engine) completeStep(ctx context.Context, chatID int64, st *State, text string) error {
	switch st.Step {
	case stepFinalMileage:
		n, err := parseMileage(text)
		if err != nil {
			return e.reprompt(ctx, chatID, "Mileage must be a non-negative number. Enter it again:")
		}
		st.set(stepFinalMileage, fmt.Sprintf("%d", n))
		return e.advance(ctx, chatID, st, stepCostNet, "Enter the net cost (e.g. 500 or 499,99):")

	case stepCostNet:
		cost, err := parseCost(text)
		if err != nil {
			return e.reprompt(ctx, chatID, "Cost must be a non-negative number. Enter it again:")
		}
		st.set(stepCostNet, fmt.Sprintf("%.2f", cost))
		return e.advance(ctx, chatID, st, stepComments, "Add comments / recommendations (or '-' for none):")

	case stepComments:
		return e.commitComplete(ctx, chatID, st, optionalText(text))
	}
	return fmt.Errorf("%w: unknown step %q", domain.ErrStaleFlow, st.Step)
}

func (e *Engine) commitComplete(ctx context.Context, chatID int64, st *State, comments string) error {
	serviceID, err := st.int64Field(keyServiceID)
	if err != nil {
		return err
	}
	finalMileage, err := st.intField(stepFinalMileage)
	if err != nil {
		return err
	}
	costNet, err := st.floatField(stepCostNet)
	if err != nil {
		return err
	}

	res, err := e.maint.Complete(ctx, ports.CompleteServiceInput{
		ServiceID:    serviceID,
		MechanicID:   chatID,
		FinalMileage: finalMileage,
		CostNet:      costNet,
		Comments:     comments,
	})
	if err != nil {
		return err
	}

	if err := e.store.Clear(ctx, chatID); err != nil {
		return fmt.Errorf("clear flow state: %w", err)
	}
	return e.gw.SendText(ctx, chatID, fmt.Sprintf(
		"Service #%d completed.\nMileage: %d km\nNET: %.2f\nVAT 23%%: %.2f\nGROSS: %.2f",
		serviceID, finalMileage, res.Net, res.VAT, res.Gross,
	))
}
