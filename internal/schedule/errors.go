package schedule

import "errors"

var (
	// ErrScheduleNotFound is returned when a schedule id does not exist.
	ErrScheduleNotFound = errors.New("schedule: not found")

	// ErrInvalidSchedule is returned for schedules that fail validation.
	ErrInvalidSchedule = errors.New("schedule: invalid schedule")

	// ErrTickInProgress is returned when Tick overlaps a running tick.
	ErrTickInProgress = errors.New("schedule: tick already in progress")
)
