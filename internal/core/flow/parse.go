package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetops/fleetbot/internal/core/domain"
)

// OmitSentinel is the literal a user types to leave an optional field empty.
const OmitSentinel = "-"

func parseVIN(raw string) (string, error) {
	vin := strings.ToUpper(strings.TrimSpace(raw))
	if len(vin) < 5 {
		return "", fmt.Errorf("VIN is too short")
	}
	return vin, nil
}

func parseMileage(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("mileage must be a non-negative number")
	}
	return n, nil
}

func parseYear(raw string, now time.Time) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < domain.MinModelYear || n > now.Year()+1 {
		return 0, fmt.Errorf("year must be between %d and %d", domain.MinModelYear, now.Year()+1)
	}
	return n, nil
}

// parseCost accepts a decimal with either comma or period separator.
func parseCost(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("cost must be a non-negative number")
	}
	return f, nil
}

// optionalText trims the input and maps the "-" sentinel to empty.
func optionalText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == OmitSentinel {
		return ""
	}
	return s
}
