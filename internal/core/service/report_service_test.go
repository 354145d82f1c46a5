package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestReportService_Monthly(t *testing.T) {
	repo := newStubServiceRepo()
	repo.monthlyTotal = 1000
	svc := NewReportService(repo, zerolog.Nop())

	rep, err := svc.Monthly(context.Background(), 2026, 8)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if rep.Year != 2026 || rep.Month != 8 {
		t.Errorf("wrong period: %d-%d", rep.Year, rep.Month)
	}
	if rep.NetTotal != 1000 || rep.Commission != 100 {
		t.Errorf("got net=%v commission=%v, want 1000/100", rep.NetTotal, rep.Commission)
	}
}

func TestReportService_Monthly_EmptyMonth(t *testing.T) {
	svc := NewReportService(newStubServiceRepo(), zerolog.Nop())

	rep, err := svc.Monthly(context.Background(), 2026, 1)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if rep.NetTotal != 0 || rep.Commission != 0 {
		t.Errorf("empty month must yield zeros, got %+v", rep)
	}
}

func TestReportService_Monthly_Rounding(t *testing.T) {
	repo := newStubServiceRepo()
	repo.monthlyTotal = 333.333
	svc := NewReportService(repo, zerolog.Nop())

	rep, err := svc.Monthly(context.Background(), 2026, 2)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if rep.NetTotal != 333.33 || rep.Commission != 33.33 {
		t.Errorf("got net=%v commission=%v, want 333.33/33.33", rep.NetTotal, rep.Commission)
	}
}

func TestReportService_Monthly_MonthOutOfRange(t *testing.T) {
	svc := NewReportService(newStubServiceRepo(), zerolog.Nop())
	for _, m := range []int{0, 13, -1} {
		if _, err := svc.Monthly(context.Background(), 2026, m); err == nil {
			t.Errorf("month %d: expected error", m)
		}
	}
}
