package journey

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the journey or the requested day does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyActive means the group already has a journey running.
	ErrAlreadyActive = errors.New("journey already active")
	// ErrOutOfOrder means a day write would break the group's day sequence.
	ErrOutOfOrder = errors.New("day out of order")
	// ErrMigrationConflict means the database schema cannot be safely upgraded by this binary.
	ErrMigrationConflict = errors.New("migration conflict")
	// ErrInvalidRange means an input lies outside its allowed values.
	ErrInvalidRange = errors.New("invalid range")
)

// NoJourney is the error for a group without a journey.
func NoJourney(group string) error {
	return fmt.Errorf("no active journey for group %q, start one first: %w", group, ErrNotFound)
}

// NoDay is the error for a day without weather.
func NoDay(group string, day int) error {
	return fmt.Errorf("no weather recorded for group %q on day %d: %w", group, day, ErrNotFound)
}

// AlreadyActive is the error for a second journey start.
func AlreadyActive(group string) error {
	return fmt.Errorf("group %q already has a journey, end it before starting another: %w", group, ErrAlreadyActive)
}
