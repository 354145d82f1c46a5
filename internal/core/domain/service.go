package domain

import "time"

// ServiceStatus represents the lifecycle state of a service request.
type ServiceStatus string

const (
	StatusPending   ServiceStatus = "pending"
	StatusConfirmed ServiceStatus = "confirmed"
	StatusRejected  ServiceStatus = "rejected"
	StatusDone      ServiceStatus = "done"
)

// validTransitions defines the allowed state machine transitions.
// pending → done is deliberately legal: a mechanic may close work they never
// explicitly confirmed. rejected and done are terminal.
var validTransitions = map[ServiceStatus][]ServiceStatus{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusDone},
	StatusConfirmed: {StatusRejected, StatusDone},
}

// CanTransitionTo reports whether a transition from the current status to next is valid.
func (s ServiceStatus) CanTransitionTo(next ServiceStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s ServiceStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// EligibleSources returns every status from which a transition to next is
// allowed. Repositories use it to guard status writes at the document level.
func EligibleSources(next ServiceStatus) []ServiceStatus {
	var from []ServiceStatus
	for src, targets := range validTransitions {
		for _, t := range targets {
			if t == next {
				from = append(from, src)
			}
		}
	}
	return from
}

// ServiceRequest is one unit of maintenance work on a vehicle. Completion
// fields (FinalMileage, CostNet, Comments) are set exactly once, atomically
// with the transition to done.
type ServiceRequest struct {
	ID           int64         `json:"id" bson:"_id"`
	VehicleID    int64         `json:"vehicle_id" bson:"vehicle_id"`
	MechanicID   int64         `json:"mechanic_id" bson:"mechanic_id"`
	AdminID      int64         `json:"admin_id" bson:"admin_id"`
	Description  string        `json:"description" bson:"description"`
	DesiredAt    string        `json:"desired_at" bson:"desired_at"`
	Status       ServiceStatus `json:"status" bson:"status"`
	FinalMileage *int          `json:"final_mileage,omitempty" bson:"final_mileage,omitempty"`
	CostNet      *float64      `json:"cost_net,omitempty" bson:"cost_net,omitempty"`
	Comments     string        `json:"comments,omitempty" bson:"comments,omitempty"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
}

// ServiceDetail is a service request joined with the identifying columns of
// its vehicle, as shown to mechanics and admins.
type ServiceDetail struct {
	ServiceRequest `bson:",inline"`

	Plate        string `json:"plate" bson:"plate"`
	VIN          string `json:"vin" bson:"vin"`
	OwnerCompany string `json:"owner_company" bson:"owner_company"`
}
