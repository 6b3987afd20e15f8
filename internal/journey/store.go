package journey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/neexbeast/trailweather/internal/weather"
)

// Backend is a storage engine for journeys and their daily weather.
//
// InTx must serialize units of work for the same group (the journey row is
// locked for the duration of fn) while leaving other groups unblocked, and
// must return NoJourney when the group has no journey. If fn returns an
// error nothing it wrote may be committed.
type Backend interface {
	CreateJourney(ctx context.Context, j Journey) error
	DeleteJourney(ctx context.Context, group string) error
	Journey(ctx context.Context, group string) (Journey, error)
	DailyWeather(ctx context.Context, group string, day int) (DailyWeather, error)
	ListDailyWeather(ctx context.Context, group string, from, to int) ([]DailyWeather, error)
	InTx(ctx context.Context, group string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of primitives a backend offers inside a locked unit of work.
type Tx interface {
	Journey(ctx context.Context) (Journey, error)
	DailyWeather(ctx context.Context, day int) (DailyWeather, error)
	PutDailyWeather(ctx context.Context, rec DailyWeather) error
	UpdateJourney(ctx context.Context, j Journey) error
}

// Store enforces journey rules on top of a Backend.
type Store struct {
	backend Backend
}

// NewStore constructs a Store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// StartJourney creates the group's journey at day 1. It fails with
// ErrAlreadyActive if the group already has one.
func (s *Store) StartJourney(ctx context.Context, group string, season weather.Season, province string) (Journey, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return Journey{}, fmt.Errorf("group name is required: %w", ErrInvalidRange)
	}
	if _, err := weather.BaseTemperature(province, season); err != nil {
		return Journey{}, fmt.Errorf("starting journey for group %q: %w: %w", group, ErrInvalidRange, err)
	}

	j := Journey{
		ID:            uuid.New(),
		Group:         group,
		CurrentDay:    1,
		Season:        season,
		Province:      province,
		StageDuration: DefaultStageDuration,
		DisplayMode:   DisplaySimple,
		Cooldowns:     weather.ExpiredCooldowns(),
	}
	if err := s.backend.CreateJourney(ctx, j); err != nil {
		return Journey{}, err
	}
	return s.backend.Journey(ctx, group)
}

// Journey returns the group's journey state.
func (s *Store) Journey(ctx context.Context, group string) (Journey, error) {
	return s.backend.Journey(ctx, group)
}

// EndJourney deletes the journey and all of its days.
func (s *Store) EndJourney(ctx context.Context, group string) error {
	return s.backend.DeleteJourney(ctx, group)
}

// ConfigureStage sets the stage length and display mode.
func (s *Store) ConfigureStage(ctx context.Context, group string, duration int, mode DisplayMode) (Journey, error) {
	if err := ValidateStageDuration(duration); err != nil {
		return Journey{}, err
	}
	if _, err := ParseDisplayMode(string(mode)); err != nil {
		return Journey{}, err
	}

	var out Journey
	err := s.backend.InTx(ctx, group, func(ctx context.Context, tx Tx) error {
		j, err := tx.Journey(ctx)
		if err != nil {
			return err
		}
		j.StageDuration = duration
		j.DisplayMode = mode
		if err := tx.UpdateJourney(ctx, j); err != nil {
			return err
		}
		out = j
		return nil
	})
	return out, err
}

// DailyWeather returns the stored record for one day.
func (s *Store) DailyWeather(ctx context.Context, group string, day int) (DailyWeather, error) {
	return s.backend.DailyWeather(ctx, group, day)
}

// ListDailyWeather returns the stored days in [from, to], ordered by day.
func (s *Store) ListDailyWeather(ctx context.Context, group string, from, to int) ([]DailyWeather, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("day range %d-%d is not a valid range: %w", from, to, ErrInvalidRange)
	}
	return s.backend.ListDailyWeather(ctx, group, from, to)
}

// SaveDailyWeather replaces the record of a day that has already been
// generated. Days the counter has not reached yet can only be written by
// AdvanceDay, so a record and its counter always commit together.
func (s *Store) SaveDailyWeather(ctx context.Context, group string, rec DailyWeather) error {
	return s.InTx(ctx, group, func(ctx context.Context, tx *DayTx) error {
		return tx.SaveDailyWeather(ctx, rec)
	})
}

// AdvanceDay writes the record for the journey's current day and moves the
// counter on in the same transaction.
func (s *Store) AdvanceDay(ctx context.Context, group string, rec DailyWeather) error {
	return s.InTx(ctx, group, func(ctx context.Context, tx *DayTx) error {
		return tx.AdvanceDay(ctx, rec)
	})
}

// Cooldown returns the stored counter for kind.
func (s *Store) Cooldown(ctx context.Context, group string, kind weather.EventKind) (int, error) {
	j, err := s.backend.Journey(ctx, group)
	if err != nil {
		return 0, err
	}
	return j.Cooldowns.Get(kind), nil
}

// IncrementCooldown adds one day to the counter for kind and returns the new value.
func (s *Store) IncrementCooldown(ctx context.Context, group string, kind weather.EventKind) (int, error) {
	var v int
	err := s.InTx(ctx, group, func(ctx context.Context, tx *DayTx) error {
		var err error
		v, err = tx.IncrementCooldown(ctx, kind)
		return err
	})
	return v, err
}

// ResetCooldown sets the counter for kind to zero.
func (s *Store) ResetCooldown(ctx context.Context, group string, kind weather.EventKind) error {
	return s.InTx(ctx, group, func(ctx context.Context, tx *DayTx) error {
		return tx.ResetCooldown(ctx, kind)
	})
}

// InTx runs fn as one unit of work for the group.
func (s *Store) InTx(ctx context.Context, group string, fn func(ctx context.Context, tx *DayTx) error) error {
	return s.backend.InTx(ctx, group, func(ctx context.Context, tx Tx) error {
		return fn(ctx, &DayTx{tx: tx, group: group})
	})
}

// DayTx applies the journey rules inside a unit of work.
type DayTx struct {
	tx    Tx
	group string
}

// Journey returns the locked journey.
func (t *DayTx) Journey(ctx context.Context) (Journey, error) {
	return t.tx.Journey(ctx)
}

// DailyWeather reads a day within the unit of work.
func (t *DayTx) DailyWeather(ctx context.Context, day int) (DailyWeather, error) {
	return t.tx.DailyWeather(ctx, day)
}

// SaveDailyWeather replaces the record of an already generated day.
func (t *DayTx) SaveDailyWeather(ctx context.Context, rec DailyWeather) error {
	j, err := t.tx.Journey(ctx)
	if err != nil {
		return err
	}
	if rec.Day > j.LastDay() {
		return fmt.Errorf("day %d has not been generated for group %q, last day is %d: %w", rec.Day, t.group, j.LastDay(), ErrOutOfOrder)
	}
	if err := t.checkWrite(ctx, j, rec); err != nil {
		return err
	}
	return t.tx.PutDailyWeather(ctx, rec)
}

// AdvanceDay writes the current day's record and increments the day counter.
func (t *DayTx) AdvanceDay(ctx context.Context, rec DailyWeather) error {
	j, err := t.tx.Journey(ctx)
	if err != nil {
		return err
	}
	if rec.Day != j.CurrentDay {
		return fmt.Errorf("group %q is on day %d, cannot advance with day %d: %w", t.group, j.CurrentDay, rec.Day, ErrOutOfOrder)
	}
	if err := t.checkWrite(ctx, j, rec); err != nil {
		return err
	}
	if err := t.tx.PutDailyWeather(ctx, rec); err != nil {
		return err
	}
	j.CurrentDay++
	return t.tx.UpdateJourney(ctx, j)
}

// SetCooldowns stores the counters for every kind at once.
func (t *DayTx) SetCooldowns(ctx context.Context, c weather.Cooldowns) error {
	j, err := t.tx.Journey(ctx)
	if err != nil {
		return err
	}
	j.Cooldowns = c
	return t.tx.UpdateJourney(ctx, j)
}

// IncrementCooldown adds one to the counter for kind.
func (t *DayTx) IncrementCooldown(ctx context.Context, kind weather.EventKind) (int, error) {
	j, err := t.tx.Journey(ctx)
	if err != nil {
		return 0, err
	}
	v := j.Cooldowns.Get(kind) + 1
	j.Cooldowns = j.Cooldowns.With(kind, v)
	if err := t.tx.UpdateJourney(ctx, j); err != nil {
		return 0, err
	}
	return v, nil
}

// ResetCooldown zeroes the counter for kind.
func (t *DayTx) ResetCooldown(ctx context.Context, kind weather.EventKind) error {
	j, err := t.tx.Journey(ctx)
	if err != nil {
		return err
	}
	j.Cooldowns = j.Cooldowns.With(kind, 0)
	return t.tx.UpdateJourney(ctx, j)
}

func (t *DayTx) checkWrite(ctx context.Context, j Journey, rec DailyWeather) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Day > j.CurrentDay {
		return fmt.Errorf("day %d is ahead of group %q, next day is %d: %w", rec.Day, t.group, j.CurrentDay, ErrOutOfOrder)
	}
	if rec.Day == 1 {
		return nil
	}
	if _, err := t.tx.DailyWeather(ctx, rec.Day-1); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("day %d would leave a gap, day %d has no weather: %w", rec.Day, rec.Day-1, ErrOutOfOrder)
		}
		return fmt.Errorf("checking day %d: %w", rec.Day-1, err)
	}
	return nil
}
