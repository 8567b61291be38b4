// Package market gates polling to exchange trading hours.
package market

import (
	"fmt"
	"time"
)

// Hours describes a weekday trading session in a fixed timezone.
// NSE equity derivatives trade Monday through Friday, 09:00 to 15:30 IST.
type Hours struct {
	loc            *time.Location
	openH, openM   int
	closeH, closeM int
}

// NewHours builds a session gate. open and close are wall-clock times in
// "15:04" form, interpreted in timezone.
func NewHours(timezone, open, close string) (*Hours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	openT, err := time.Parse("15:04", open)
	if err != nil {
		return nil, fmt.Errorf("invalid open time %q: %w", open, err)
	}
	closeT, err := time.Parse("15:04", close)
	if err != nil {
		return nil, fmt.Errorf("invalid close time %q: %w", close, err)
	}
	h := &Hours{
		loc:    loc,
		openH:  openT.Hour(),
		openM:  openT.Minute(),
		closeH: closeT.Hour(),
		closeM: closeT.Minute(),
	}
	if h.minutes(h.closeH, h.closeM) <= h.minutes(h.openH, h.openM) {
		return nil, fmt.Errorf("close %q must be after open %q", close, open)
	}
	return h, nil
}

// IsOpen reports whether t falls within the trading session. Both the open
// and close minute are inclusive.
func (h *Hours) IsOpen(t time.Time) bool {
	local := t.In(h.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	now := h.minutes(local.Hour(), local.Minute())
	return now >= h.minutes(h.openH, h.openM) && now <= h.minutes(h.closeH, h.closeM)
}

// Location returns the session timezone.
func (h *Hours) Location() *time.Location {
	return h.loc
}

func (h *Hours) minutes(hour, min int) int {
	return hour*60 + min
}
