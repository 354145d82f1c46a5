package domain

import "math"

// VATRate is applied to a completed service's net cost for display figures.
const VATRate = 0.23

// CommissionRate is the share of completed net cost retained in monthly reports.
const CommissionRate = 0.10

// Round2 rounds a monetary amount to 2 decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
