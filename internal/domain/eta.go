package domain

import (
	"fmt"
	"strings"
	"time"
)

const etaClockLayout = "3:04 PM"

// ParseETA resolves a driver-entered clock time such as "6:30 PM" against
// the ride's departure date. A clock time at or before the departure clock
// time rolls over to the next day (trips that cross midnight).
func ParseETA(eta string, departure time.Time) (time.Time, error) {
	clock, err := time.Parse(etaClockLayout, strings.ToUpper(strings.TrimSpace(eta)))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: estimated arrival %q is not a clock time like \"6:30 PM\"", ErrValidation, eta)
	}

	arrival := time.Date(departure.Year(), departure.Month(), departure.Day(),
		clock.Hour(), clock.Minute(), 0, 0, departure.Location())
	if !arrival.After(departure) {
		arrival = arrival.Add(24 * time.Hour)
	}
	return arrival, nil
}
