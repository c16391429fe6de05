package schedule

import (
	"fmt"
	"time"
)

// Actions a schedule applies at its start time. At the end time the
// opposite state is applied.
const (
	ActionOn  = "ON"
	ActionOff = "OFF"
)

// Schedule switches one device at fixed local times on selected weekdays.
type Schedule struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	DeviceID  string    `json:"deviceId"`
	Name      string    `json:"name"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Days      []string  `json:"days"`
	Action    string    `json:"action"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// TargetAt returns the relay state the schedule asks for at clock
// ("HH:MM") and whether it asks for anything. When start and end are the
// same minute the start rule applies.
func (s *Schedule) TargetAt(clock string) (on bool, ok bool) {
	switch clock {
	case s.StartTime:
		return s.Action == ActionOn, true
	case s.EndTime:
		return s.Action != ActionOn, true
	}
	return false, false
}

// Validate checks times, action and days.
func (s *Schedule) Validate() error {
	if s.DeviceID == "" || s.OwnerID == "" {
		return fmt.Errorf("%w: owner and device are required", ErrInvalidSchedule)
	}
	for _, t := range []string{s.StartTime, s.EndTime} {
		if _, err := time.Parse(ClockLayout, t); err != nil || len(t) != len(ClockLayout) {
			return fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, t)
		}
	}
	if s.Action != ActionOn && s.Action != ActionOff {
		return fmt.Errorf("%w: action %q", ErrInvalidSchedule, s.Action)
	}
	for _, d := range s.Days {
		if _, ok := ParseDay(d); !ok {
			return fmt.Errorf("%w: day %q", ErrInvalidSchedule, d)
		}
	}
	return nil
}

// ClockLayout is the stored form of start and end times.
const ClockLayout = "15:04"
