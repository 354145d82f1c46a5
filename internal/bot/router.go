// Package bot routes inbound Telegram updates: slash commands, button
// presses and free-text answers to whatever flow the chat has in progress.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/bot/metrics"
	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/flow"
	"github.com/fleetops/fleetbot/internal/core/ports"
	"github.com/fleetops/fleetbot/internal/reports"
)

const (
	msgForbidden   = "This command is available to administrators only."
	msgTryAgain    = "Something went wrong. Please try again."
	msgUnknownText = "I didn't understand that. Use /start to see the available commands."
)

// Router is the single entry point for inbound updates. Every update first
// registers its sender, then is dispatched to a command handler, a flow step
// or a callback handler.
type Router struct {
	gw      ports.Gateway
	users   ports.UserService
	fleet   ports.FleetService
	maint   ports.MaintenanceService
	reports ports.ReportService
	engine  *flow.Engine
	log     zerolog.Logger
	now     func() time.Time
}

func NewRouter(
	gw ports.Gateway,
	users ports.UserService,
	fleet ports.FleetService,
	maint ports.MaintenanceService,
	reportsSvc ports.ReportService,
	engine *flow.Engine,
	log zerolog.Logger,
) *Router {
	return &Router{
		gw:      gw,
		users:   users,
		fleet:   fleet,
		maint:   maint,
		reports: reportsSvc,
		engine:  engine,
		log:     log,
		now:     time.Now,
	}
}

// HandleUpdate implements ports.UpdateHandler.
func (r *Router) HandleUpdate(ctx context.Context, u ports.Update) {
	kind := classify(u)
	timer := prometheus.NewTimer(metrics.HandleDuration.WithLabelValues(kind))
	defer timer.ObserveDuration()
	metrics.UpdatesTotal.WithLabelValues(kind).Inc()

	role, err := r.users.EnsureUser(ctx, u.UserID, u.FullName)
	if err != nil {
		metrics.UpdateErrorsTotal.WithLabelValues(kind).Inc()
		r.log.Error().Err(err).Int64("user_id", u.UserID).Msg("failed to register user")
		r.reply(ctx, u.ChatID, msgTryAgain)
		return
	}

	if u.IsCallback() {
		err = r.handleCallback(ctx, u)
	} else {
		err = r.handleMessage(ctx, u, role)
	}
	if err != nil {
		metrics.UpdateErrorsTotal.WithLabelValues(kind).Inc()
		r.log.Error().Err(err).Int64("user_id", u.UserID).Str("kind", kind).Msg("update handling failed")
		r.reply(ctx, u.ChatID, msgTryAgain)
	}
}

func classify(u ports.Update) string {
	switch {
	case u.IsCallback():
		return "callback"
	case strings.HasPrefix(u.Text, "/"):
		return "command"
	default:
		return "flow_text"
	}
}

func (r *Router) handleMessage(ctx context.Context, u ports.Update, role domain.Role) error {
	text := strings.TrimSpace(u.Text)
	if strings.HasPrefix(text, "/") {
		return r.handleCommand(ctx, u, role, text)
	}

	handled, err := r.engine.HandleText(ctx, u.ChatID, text)
	if err != nil {
		return err
	}
	if !handled {
		r.reply(ctx, u.ChatID, msgUnknownText)
	}
	return nil
}

func (r *Router) handleCommand(ctx context.Context, u ports.Update, role domain.Role, text string) error {
	name, args := splitCommand(text)

	switch name {
	case "/start":
		return r.cmdStart(ctx, u, role)
	case "/whoami":
		return r.gw.SendText(ctx, u.ChatID, fmt.Sprintf("Your id: %d\nRole: %s", u.UserID, role))
	case "/cancel":
		return r.cmdCancel(ctx, u)
	case "/add_mechanic":
		return r.cmdAddMechanic(ctx, u, args)
	case "/add_car":
		if !r.requireAdmin(ctx, u) {
			return nil
		}
		return r.engine.BeginAddVehicle(ctx, u.ChatID)
	case "/list_cars":
		return r.cmdListCars(ctx, u)
	case "/edit_car":
		if !r.requireAdmin(ctx, u) {
			return nil
		}
		return r.engine.BeginEditVehicle(ctx, u.ChatID, args)
	case "/service_new":
		if !r.requireAdmin(ctx, u) {
			return nil
		}
		return r.engine.BeginNewService(ctx, u.ChatID, u.UserID)
	case "/report_month":
		return r.cmdReportMonth(ctx, u, args)
	default:
		r.reply(ctx, u.ChatID, "Unknown command. Use /start to see the available commands.")
		return nil
	}
}

// splitCommand separates the command name from its argument string and strips
// an @botname suffix from the name.
func splitCommand(text string) (name, args string) {
	name, args, _ = strings.Cut(text, " ")
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	return name, strings.TrimSpace(args)
}

func (r *Router) cmdStart(ctx context.Context, u ports.Update, role domain.Role) error {
	var b strings.Builder
	b.WriteString("Fleet maintenance bot.\n\n")
	switch role {
	case domain.RoleAdmin:
		b.WriteString("You are an administrator. Commands:\n")
		b.WriteString("/add_car — register a vehicle\n")
		b.WriteString("/list_cars — list registered vehicles\n")
		b.WriteString("/edit_car — edit or delete a vehicle\n")
		b.WriteString("/service_new — open a service request\n")
		b.WriteString("/add_mechanic <id> — grant the mechanic role\n")
		b.WriteString("/report_month [YYYY-MM] — monthly financial report\n")
		b.WriteString("/cancel — abort the current conversation")
	case domain.RoleMechanic:
		b.WriteString("You are registered as a mechanic. Service requests assigned to you ")
		b.WriteString("will arrive here with Confirm / Reject buttons.")
	default:
		b.WriteString(fmt.Sprintf("You are registered. Your id is %d.\n", u.UserID))
		b.WriteString("An administrator can grant you a role with this id.")
	}
	return r.gw.SendText(ctx, u.ChatID, b.String())
}

func (r *Router) cmdCancel(ctx context.Context, u ports.Update) error {
	active, err := r.engine.Cancel(ctx, u.ChatID)
	if err != nil {
		return err
	}
	if !active {
		return r.gw.SendText(ctx, u.ChatID, "Nothing to cancel.")
	}
	return r.gw.SendText(ctx, u.ChatID, "Cancelled.")
}

func (r *Router) cmdAddMechanic(ctx context.Context, u ports.Update, args string) error {
	targetID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		r.reply(ctx, u.ChatID, "Usage: /add_mechanic <telegram id>")
		return nil
	}

	switch err := r.users.PromoteMechanic(ctx, u.UserID, targetID); {
	case errors.Is(err, domain.ErrForbidden):
		r.reply(ctx, u.ChatID, msgForbidden)
		return nil
	case errors.Is(err, domain.ErrUserNotFound):
		r.reply(ctx, u.ChatID, "No user with that id. They must open the bot with /start first.")
		return nil
	case err != nil:
		return err
	}

	// Best effort: the promotion stands even if the new mechanic is unreachable.
	if err := r.gw.SendText(ctx, targetID, "You have been granted the mechanic role. Service requests will arrive here."); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues("promoted").Inc()
		r.log.Warn().Err(err).Int64("mechanic_id", targetID).Msg("failed to notify new mechanic")
	}
	return r.gw.SendText(ctx, u.ChatID, fmt.Sprintf("User %d is now a mechanic.", targetID))
}

// cmdListCars is open to every registered user; only mutations are admin-only.
func (r *Router) cmdListCars(ctx context.Context, u ports.Update) error {
	vehicles, err := r.fleet.ListVehicles(ctx, 0)
	if err != nil {
		return err
	}
	if len(vehicles) == 0 {
		return r.gw.SendText(ctx, u.ChatID, "No vehicles registered yet. Add one with /add_car.")
	}

	cards := make([]string, 0, len(vehicles))
	for i := range vehicles {
		cards = append(cards, flow.VehicleCard(&vehicles[i]))
	}
	return r.gw.SendText(ctx, u.ChatID, strings.Join(cards, "\n----------\n"))
}

func (r *Router) cmdReportMonth(ctx context.Context, u ports.Update, args string) error {
	if !r.requireAdmin(ctx, u) {
		return nil
	}

	year, month := r.now().UTC().Year(), int(r.now().UTC().Month())
	if args != "" {
		t, err := time.Parse("2006-01", args)
		if err != nil {
			r.reply(ctx, u.ChatID, "Usage: /report_month [YYYY-MM], e.g. /report_month 2026-08")
			return nil
		}
		year, month = t.Year(), int(t.Month())
	}

	rep, err := r.reports.Monthly(ctx, year, month)
	if err != nil {
		return err
	}
	return r.gw.SendText(ctx, u.ChatID, reports.Format(rep))
}

// requireAdmin gates a command on the admin role, replying to the user when
// the gate fails. It returns true when the caller may proceed.
func (r *Router) requireAdmin(ctx context.Context, u ports.Update) bool {
	err := r.users.RequireAdmin(ctx, u.UserID)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrForbidden) {
		r.reply(ctx, u.ChatID, msgForbidden)
		return false
	}
	r.log.Error().Err(err).Int64("user_id", u.UserID).Msg("admin check failed")
	r.reply(ctx, u.ChatID, msgTryAgain)
	return false
}

func (r *Router) handleCallback(ctx context.Context, u ports.Update) error {
	data := u.Callback

	switch {
	case strings.HasPrefix(data, flow.CallbackFieldPrefix):
		if !r.ackAdmin(ctx, u) {
			return nil
		}
		return r.engine.ChooseEditField(ctx, u.ChatID, strings.TrimPrefix(data, flow.CallbackFieldPrefix))

	case data == flow.CallbackDelete:
		if !r.ackAdmin(ctx, u) {
			return nil
		}
		return r.engine.BeginDeleteConfirm(ctx, u.ChatID)

	case data == flow.CallbackDeleteYes, data == flow.CallbackDeleteNo:
		if !r.ackAdmin(ctx, u) {
			return nil
		}
		_ = r.gw.ClearChoices(ctx, u.ChatID, u.MessageID)
		return r.engine.ResolveDelete(ctx, u.ChatID, data == flow.CallbackDeleteYes)

	case strings.HasPrefix(data, flow.CallbackMechPrefix):
		if !r.ackAdmin(ctx, u) {
			return nil
		}
		mechanicID, err := trailingID(data, flow.CallbackMechPrefix)
		if err != nil {
			return err
		}
		_ = r.gw.ClearChoices(ctx, u.ChatID, u.MessageID)
		return r.engine.ChooseMechanic(ctx, u.ChatID, mechanicID)

	case strings.HasPrefix(data, svcConfirmPrefix):
		return r.cbConfirmService(ctx, u, data)

	case strings.HasPrefix(data, svcRejectPrefix):
		return r.cbServiceFlow(ctx, u, data, svcRejectPrefix, domain.StatusRejected, r.engine.BeginReject)

	case strings.HasPrefix(data, svcCompletePrefix):
		return r.cbServiceFlow(ctx, u, data, svcCompletePrefix, domain.StatusDone, r.engine.BeginComplete)
	}

	// Stale button from an older bot version.
	return r.gw.AckCallback(ctx, u.CallbackID, "This button is no longer active.")
}

// ackAdmin acknowledges the button press and checks the admin role, flashing
// a refusal note on failure.
func (r *Router) ackAdmin(ctx context.Context, u ports.Update) bool {
	if err := r.users.RequireAdmin(ctx, u.UserID); err != nil {
		_ = r.gw.AckCallback(ctx, u.CallbackID, "No permission.")
		return false
	}
	_ = r.gw.AckCallback(ctx, u.CallbackID, "")
	return true
}

// cbConfirmService handles the Confirm button on a mechanic's service card.
// On success the buttons are replaced by a single Complete button.
func (r *Router) cbConfirmService(ctx context.Context, u ports.Update, data string) error {
	serviceID, err := trailingID(data, svcConfirmPrefix)
	if err != nil {
		return err
	}

	detail, err := r.maint.Confirm(ctx, serviceID, u.UserID)
	if note, handled := serviceActionRefusal(err); handled {
		return r.gw.AckCallback(ctx, u.CallbackID, note)
	}
	if err != nil {
		return err
	}

	_ = r.gw.AckCallback(ctx, u.CallbackID, "Confirmed.")
	_ = r.gw.ClearChoices(ctx, u.ChatID, u.MessageID)

	rows := [][]ports.Choice{{
		{Label: "Complete", Data: svcPayload(svcCompletePrefix, detail.ID)},
		{Label: "Reject", Data: svcPayload(svcRejectPrefix, detail.ID)},
	}}
	return r.gw.SendChoices(ctx, u.ChatID, fmt.Sprintf(
		"Service request #%d confirmed. Press Complete when the work is done.", detail.ID,
	), rows)
}

// cbServiceFlow handles the Reject and Complete buttons: both start a
// follow-up flow, so eligibility is pre-checked before any prompt is sent.
func (r *Router) cbServiceFlow(
	ctx context.Context,
	u ports.Update,
	data, prefix string,
	next domain.ServiceStatus,
	begin func(ctx context.Context, chatID, serviceID int64) error,
) error {
	serviceID, err := trailingID(data, prefix)
	if err != nil {
		return err
	}

	detail, err := r.maint.Get(ctx, serviceID)
	if errors.Is(err, domain.ErrServiceNotFound) {
		return r.gw.AckCallback(ctx, u.CallbackID, "Request not found.")
	}
	if err != nil {
		return err
	}
	if detail.MechanicID != u.UserID {
		return r.gw.AckCallback(ctx, u.CallbackID, "This is not your request.")
	}
	if !detail.Status.CanTransitionTo(next) {
		return r.gw.AckCallback(ctx, u.CallbackID, "This request has already been closed.")
	}

	_ = r.gw.AckCallback(ctx, u.CallbackID, "")
	_ = r.gw.ClearChoices(ctx, u.ChatID, u.MessageID)
	return begin(ctx, u.ChatID, serviceID)
}

// serviceActionRefusal maps a lifecycle error to the short note flashed on
// the pressed button. handled is false for errors that need real handling.
func serviceActionRefusal(err error) (note string, handled bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, domain.ErrServiceNotFound):
		return "Request not found.", true
	case errors.Is(err, domain.ErrForbidden):
		return "This is not your request.", true
	case errors.Is(err, domain.ErrInvalidTransition):
		return "This request has already been closed.", true
	}
	return "", false
}

// reply sends best-effort feedback; a failed send is logged, not propagated.
func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.gw.SendText(ctx, chatID, text); err != nil {
		r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
	}
}
