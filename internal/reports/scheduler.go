package reports

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/ports"
)

// pushSpec fires at 09:00 UTC on the first day of every month.
const pushSpec = "0 9 1 * *"

// Scheduler pushes the previous month's report to every administrator at the
// start of each month.
type Scheduler struct {
	cron    *cron.Cron
	reports ports.ReportService
	users   ports.UserService
	gw      ports.Gateway
	log     zerolog.Logger
	now     func() time.Time
}

func NewScheduler(reports ports.ReportService, users ports.UserService, gw ports.Gateway, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		reports: reports,
		users:   users,
		gw:      gw,
		log:     log,
		now:     time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(pushSpec, s.pushPreviousMonth); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("spec", pushSpec).Msg("monthly report push scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running push to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// pushPreviousMonth computes the just-finished month and delivers its report
// to all admins. Individual delivery failures are logged and skipped.
func (s *Scheduler) pushPreviousMonth() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := s.now().UTC()
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	rep, err := s.reports.Monthly(ctx, prev.Year(), int(prev.Month()))
	if err != nil {
		s.log.Error().Err(err).Int("year", prev.Year()).Int("month", int(prev.Month())).
			Msg("monthly report computation failed")
		return
	}

	admins, err := s.users.Admins(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list admins for report push")
		return
	}

	text := Format(rep)
	for _, admin := range admins {
		if err := s.gw.SendText(ctx, admin.TelegramID, text); err != nil {
			s.log.Warn().Err(err).Int64("admin_id", admin.TelegramID).Msg("failed to push monthly report")
		}
	}
	s.log.Info().Int("year", rep.Year).Int("month", rep.Month).Int("admins", len(admins)).
		Msg("monthly report pushed")
}
