package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

// ReportService aggregates completed service costs per calendar month.
type ReportService struct {
	repo   ports.ServiceRepository
	logger zerolog.Logger
}

func NewReportService(repo ports.ServiceRepository, logger zerolog.Logger) *ReportService {
	return &ReportService{repo: repo, logger: logger}
}

// Monthly returns the net sum over requests completed (status=done) that were
// created in the given month, and a fixed 10% commission on that sum. Both
// figures are rounded to 2 decimals; a month with no matching requests
// yields zeros.
func (s *ReportService) Monthly(ctx context.Context, year, month int) (*ports.MonthlyReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month out of range: %d", month)
	}

	total, err := s.repo.MonthlyNetTotal(ctx, year, month)
	if err != nil {
		s.logger.Error().Err(err).Int("year", year).Int("month", month).Msg("monthly aggregation failed")
		return nil, err
	}

	net := domain.Round2(total)
	return &ports.MonthlyReport{
		Year:       year,
		Month:      month,
		NetTotal:   net,
		Commission: domain.Round2(net * domain.CommissionRate),
	}, nil
}
