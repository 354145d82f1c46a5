package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/bot/metrics"
	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

// Notifier pushes lifecycle messages to the other side of each action: the
// assigned mechanic when a request is opened, the requesting admin when the
// mechanic confirms, rejects or completes it.
type Notifier struct {
	gw  ports.Gateway
	log zerolog.Logger
}

func NewNotifier(gw ports.Gateway, log zerolog.Logger) *Notifier {
	return &Notifier{gw: gw, log: log}
}

// ServiceAssigned sends the mechanic the request card with Confirm and
// Reject buttons.
func (n *Notifier) ServiceAssigned(ctx context.Context, d *domain.ServiceDetail) error {
	text := fmt.Sprintf("New service request #%d\n\n%s", d.ID, serviceCard(d))
	rows := [][]ports.Choice{{
		{Label: "Confirm", Data: svcPayload(svcConfirmPrefix, d.ID)},
		{Label: "Reject", Data: svcPayload(svcRejectPrefix, d.ID)},
	}}
	if err := n.gw.SendChoices(ctx, d.MechanicID, text, rows); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues("assigned").Inc()
		return err
	}
	return nil
}

func (n *Notifier) ServiceConfirmed(ctx context.Context, d *domain.ServiceDetail) error {
	text := fmt.Sprintf("Mechanic confirmed service request #%d (%s).", d.ID, vehicleRef(d))
	if err := n.gw.SendText(ctx, d.AdminID, text); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues("confirmed").Inc()
		return err
	}
	return nil
}

// ServiceRejected relays the rejection to the admin, including the mechanic's
// proposed alternative slot when one was given.
func (n *Notifier) ServiceRejected(ctx context.Context, d *domain.ServiceDetail, altSlot string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Mechanic rejected service request #%d (%s).\n", d.ID, vehicleRef(d))
	fmt.Fprintf(&b, "Requested date: %s\n", d.DesiredAt)
	if altSlot == "" || altSlot == "-" {
		b.WriteString("No alternative slot was proposed.")
	} else {
		fmt.Fprintf(&b, "Proposed alternative: %s", altSlot)
	}
	if err := n.gw.SendText(ctx, d.AdminID, b.String()); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues("rejected").Inc()
		return err
	}
	return nil
}

// ServiceCompleted sends the admin the closing card with the money figures.
func (n *Notifier) ServiceCompleted(ctx context.Context, r *ports.CompletionResult) error {
	d := r.Detail
	var b strings.Builder
	fmt.Fprintf(&b, "Service request #%d completed (%s).\n", d.ID, vehicleRef(d))
	if d.FinalMileage != nil {
		fmt.Fprintf(&b, "Final mileage: %d km\n", *d.FinalMileage)
	}
	fmt.Fprintf(&b, "NET: %.2f\nVAT 23%%: %.2f\nGROSS: %.2f", r.Net, r.VAT, r.Gross)
	if d.Comments != "" {
		fmt.Fprintf(&b, "\nComments: %s", d.Comments)
	}
	if err := n.gw.SendText(ctx, d.AdminID, b.String()); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues("completed").Inc()
		return err
	}
	return nil
}

// serviceCard renders the request body shown to mechanics.
func serviceCard(d *domain.ServiceDetail) string {
	return fmt.Sprintf(
		"Vehicle: %s\nCompany: %s\nWork: %s\nRequested date: %s",
		vehicleRef(d), d.OwnerCompany, d.Description, d.DesiredAt,
	)
}

// vehicleRef is the short vehicle identifier used inside notifications:
// the plate when one is registered, otherwise the VIN.
func vehicleRef(d *domain.ServiceDetail) string {
	if strings.TrimSpace(d.Plate) != "" {
		return d.Plate
	}
	return "VIN " + d.VIN
}
