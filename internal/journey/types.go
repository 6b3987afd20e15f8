package journey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neexbeast/trailweather/internal/weather"
)

// Stage duration bounds, in days.
const (
	MinStageDuration     = 1
	MaxStageDuration     = 10
	DefaultStageDuration = 3
)

// DisplayMode controls how much detail the front end shows per day.
type DisplayMode string

const (
	DisplaySimple   DisplayMode = "simple"
	DisplayDetailed DisplayMode = "detailed"
)

// ParseDisplayMode validates a display mode. Empty means simple.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch m := DisplayMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return DisplaySimple, nil
	case DisplaySimple, DisplayDetailed:
		return m, nil
	}
	return "", fmt.Errorf("display mode %q must be simple or detailed: %w", s, ErrInvalidRange)
}

// Journey is the per-group journey state. CurrentDay is the next day to be
// generated; a fresh journey starts on day 1 with no weather yet.
type Journey struct {
	ID            uuid.UUID         `json:"id"`
	Group         string            `json:"group"`
	CurrentDay    int               `json:"current_day"`
	Season        weather.Season    `json:"season"`
	Province      string            `json:"province"`
	StageDuration int               `json:"stage_duration"`
	DisplayMode   DisplayMode       `json:"display_mode"`
	Cooldowns     weather.Cooldowns `json:"cooldowns"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// LastDay is the most recent generated day, or 0 before the first advance.
func (j Journey) LastDay() int {
	return j.CurrentDay - 1
}

// DailyWeather is one generated day. It is written once and never re-rolled.
type DailyWeather struct {
	Day                  int                  `json:"day"`
	Wind                 weather.WindTimeline `json:"wind"`
	Condition            weather.Condition    `json:"weather_type"`
	ConditionRoll        int                  `json:"weather_roll"`
	TemperatureBase      int                  `json:"temperature_base"`
	TemperatureActual    int                  `json:"temperature_actual"`
	TemperatureVariation int                  `json:"temperature_variation"`
	TemperatureCategory  weather.Category     `json:"temperature_category"`
	TemperatureRoll      int                  `json:"temperature_roll"`
	ColdFront            weather.EventState   `json:"cold_front"`
	HeatWave             weather.EventState   `json:"heat_wave"`
	Cooldowns            weather.Cooldowns    `json:"cooldowns"`
	// LegacyTotals marks rows whose totals were backfilled from remaining
	// by a schema migration; their totals may understate the real duration.
	LegacyTotals bool `json:"legacy_totals,omitempty"`
}

// Event returns the state of the given kind on this day.
func (d DailyWeather) Event(kind weather.EventKind) weather.EventState {
	if kind == weather.KindHeatWave {
		return d.HeatWave
	}
	return d.ColdFront
}

// EventNote renders the kind's progress, e.g. "day 2 of 3" or "final day".
func (d DailyWeather) EventNote(kind weather.EventKind) string {
	return d.Event(kind).Note()
}

// TemperatureLabel is the displayed temperature text.
func (d DailyWeather) TemperatureLabel() string {
	return d.TemperatureCategory.Label()
}

// Validate checks the record invariants.
func (d DailyWeather) Validate() error {
	if d.Day < 1 {
		return fmt.Errorf("day %d must be at least 1: %w", d.Day, ErrInvalidRange)
	}
	for _, kind := range weather.EventKinds {
		ev := d.Event(kind)
		if ev.Remaining < 0 || ev.Total < 0 {
			return fmt.Errorf("day %d %s counters must not be negative: %w", d.Day, kind, ErrInvalidRange)
		}
		if ev.Remaining > ev.Total {
			return fmt.Errorf("day %d %s remaining %d exceeds total %d: %w", d.Day, kind, ev.Remaining, ev.Total, ErrInvalidRange)
		}
		if ev.Active() && d.Cooldowns.Get(kind) != 0 {
			return fmt.Errorf("day %d %s is active but its cooldown is %d: %w", d.Day, kind, d.Cooldowns.Get(kind), ErrInvalidRange)
		}
	}
	if d.ColdFront.Active() && d.HeatWave.Active() {
		return fmt.Errorf("day %d has both a cold front and a heat wave: %w", d.Day, ErrInvalidRange)
	}
	return nil
}

// StageResult is the outcome of a stage advance. On failure Days holds the
// days that were committed before the failing one.
type StageResult struct {
	Group     string         `json:"group"`
	Requested int            `json:"requested"`
	Days      []DailyWeather `json:"days"`
}

// ValidateStageDuration checks the 1-10 bound.
func ValidateStageDuration(n int) error {
	if n < MinStageDuration || n > MaxStageDuration {
		return fmt.Errorf("stage duration %d must be between %d and %d days: %w", n, MinStageDuration, MaxStageDuration, ErrInvalidRange)
	}
	return nil
}
