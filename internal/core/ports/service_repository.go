package ports

import (
	"context"

	"github.com/fleetops/fleetbot/internal/core/domain"
)

// Completion carries the fields written exactly once when a service request
// is closed. The repository forces status=done in the same write.
type Completion struct {
	FinalMileage int
	CostNet      float64
	Comments     string
}

// ServiceRepository defines persistence operations for service requests.
type ServiceRepository interface {
	// Create inserts a new request with status=pending and assigns its id.
	Create(ctx context.Context, s *domain.ServiceRequest) error
	// FindDetail returns the request joined with its vehicle's plate, VIN and
	// owner company, or ErrServiceNotFound.
	FindDetail(ctx context.Context, id int64) (*domain.ServiceDetail, error)
	// UpdateStatus transitions the request to next. The write only matches
	// documents whose current status permits the transition; when the request
	// exists but is not in an eligible state, ErrInvalidTransition is returned.
	UpdateStatus(ctx context.Context, id int64, next domain.ServiceStatus) error
	// Complete sets the completion fields and status=done under the same
	// eligibility guard as UpdateStatus.
	Complete(ctx context.Context, id int64, c Completion) error
	// MonthlyNetTotal sums cost_net over requests with status=done created in
	// the given year and month. Returns 0 when nothing matches.
	MonthlyNetTotal(ctx context.Context, year int, month int) (float64, error)
}
