// Package reports renders monthly financial summaries and pushes them to
// administrators on a schedule.
package reports

import (
	"fmt"

	"github.com/fleetops/fleetbot/internal/core/ports"
)

// Format renders a monthly report the way it appears in chat, both on demand
// and in the scheduled push.
func Format(rep *ports.MonthlyReport) string {
	return fmt.Sprintf(
		"Report for %04d-%02d\nCompleted services, NET total: %.2f\nCommission (10%%): %.2f",
		rep.Year, rep.Month, rep.NetTotal, rep.Commission,
	)
}
