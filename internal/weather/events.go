package weather

import "fmt"

// EventKind names a multi-day temperature event.
type EventKind string

const (
	KindColdFront EventKind = "cold_front"
	KindHeatWave  EventKind = "heat_wave"
)

// EventKinds lists the event kinds in resolution order.
var EventKinds = []EventKind{KindColdFront, KindHeatWave}

func (k EventKind) String() string { return string(k) }

const (
	// CooldownThreshold is the number of inactive days a kind needs before it may trigger again.
	CooldownThreshold = 7
	// CooldownSentinel marks a counter as long expired.
	CooldownSentinel = 99
)

// EventSpec describes one event kind.
//
// Trigger values are single d100 results. They must not overlap between kinds,
// and Remap must be a neighbour of Trigger that no other kind uses as a trigger.
type EventSpec struct {
	Kind     EventKind
	Trigger  int
	Remap    int
	Modifier int
	Duration func(Dice) int
}

// ColdFront lasts 1-5 days at -10 and triggers on a natural 1.
var ColdFront = EventSpec{
	Kind:     KindColdFront,
	Trigger:  1,
	Remap:    2,
	Modifier: -10,
	Duration: func(d Dice) int { return d.Roll(5) },
}

// HeatWave lasts 11-20 days at +10 and triggers on a natural 100.
var HeatWave = EventSpec{
	Kind:     KindHeatWave,
	Trigger:  100,
	Remap:    99,
	Modifier: 10,
	Duration: func(d Dice) int { return 10 + d.Roll(10) },
}

// EventState is an event's position on a given day. Total is rolled once,
// when the event starts, and carried unchanged until Remaining reaches zero.
type EventState struct {
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// Active reports whether the event applies on this day.
func (s EventState) Active() bool { return s.Remaining > 0 }

// Day is the 1-based day of the event, or 0 when inactive.
func (s EventState) Day() int {
	if !s.Active() {
		return 0
	}
	return s.Total - s.Remaining + 1
}

// Note renders the event's progress for display.
func (s EventState) Note() string {
	switch {
	case !s.Active():
		return ""
	case s.Total == 1:
		return "single day"
	case s.Remaining == s.Total:
		return fmt.Sprintf("first day of %d", s.Total)
	case s.Remaining == 1:
		return "final day"
	default:
		return fmt.Sprintf("day %d of %d", s.Day(), s.Total)
	}
}

// BlockReason explains why a trigger roll did not start an event.
type BlockReason string

const (
	NotBlocked          BlockReason = ""
	BlockedByOtherEvent BlockReason = "other_event_active"
	BlockedByCooldown   BlockReason = "cooldown"
)

// EventStep is the outcome of resolving one kind for one day.
type EventStep struct {
	State    EventState
	Modifier int
	Started  bool
	Blocked  BlockReason
	// Roll is the value handed on to the daily variation draw. It differs
	// from the raw roll only when a trigger value landed on a running event.
	Roll int
}

// Step resolves the kind for today. prev is yesterday's state, otherActive
// reports whether the other kind is running today and cooldown is the stored
// counter for this kind going into today.
func (e EventSpec) Step(d Dice, roll int, prev EventState, otherActive bool, cooldown int) EventStep {
	if prev.Remaining > 1 {
		if roll == e.Trigger {
			roll = e.Remap
		}
		return EventStep{
			State:    EventState{Remaining: prev.Remaining - 1, Total: prev.Total},
			Modifier: e.Modifier,
			Roll:     roll,
		}
	}

	if roll != e.Trigger {
		return EventStep{Roll: roll}
	}
	if otherActive {
		return EventStep{Blocked: BlockedByOtherEvent, Roll: roll}
	}
	if cooldown < CooldownThreshold {
		return EventStep{Blocked: BlockedByCooldown, Roll: roll}
	}

	total := e.Duration(d)
	return EventStep{
		State:    EventState{Remaining: total, Total: total},
		Modifier: e.Modifier,
		Started:  true,
		Roll:     roll,
	}
}

// Cooldowns holds one counter per event kind.
type Cooldowns struct {
	ColdFront int `json:"cold_front"`
	HeatWave  int `json:"heat_wave"`
}

// ExpiredCooldowns is the state of a journey that has never seen an event.
func ExpiredCooldowns() Cooldowns {
	return Cooldowns{ColdFront: CooldownSentinel, HeatWave: CooldownSentinel}
}

// Get returns the counter for kind.
func (c Cooldowns) Get(kind EventKind) int {
	if kind == KindHeatWave {
		return c.HeatWave
	}
	return c.ColdFront
}

// With returns a copy with the counter for kind replaced.
func (c Cooldowns) With(kind EventKind, v int) Cooldowns {
	if kind == KindHeatWave {
		c.HeatWave = v
	} else {
		c.ColdFront = v
	}
	return c
}

// TemperatureInput is what the day's temperature depends on besides the dice.
type TemperatureInput struct {
	Base      int
	ColdFront EventState
	HeatWave  EventState
	Cooldowns Cooldowns
}

// TemperatureResult is a fully resolved day of temperature.
type TemperatureResult struct {
	Base      int
	Actual    int
	Modifier  int
	Variation int
	Category  Category
	// Roll is the raw d100 result as drawn.
	Roll      int
	ColdFront EventStep
	HeatWave  EventStep
	// DayCooldowns are the counters as they stand on this day: 0 for a kind
	// that is running, otherwise the stored counter.
	DayCooldowns Cooldowns
	// NextCooldowns are the counters to store for tomorrow.
	NextCooldowns Cooldowns
}

// Active reports whether kind is running on this day.
func (r TemperatureResult) Active(kind EventKind) bool {
	if kind == KindHeatWave {
		return r.HeatWave.State.Active()
	}
	return r.ColdFront.State.Active()
}

// RollTemperature draws the day's d100 and resolves it.
func RollTemperature(d Dice, in TemperatureInput) TemperatureResult {
	return ResolveTemperature(d, d.Roll(100), in)
}

// ResolveTemperature applies both event kinds and the daily variation to a
// known roll. The cold front resolves first; the heat wave sees its result.
// The category comes from the final deviation alone, so a cold front on a
// warm day can display as merely cool.
func ResolveTemperature(d Dice, roll int, in TemperatureInput) TemperatureResult {
	cold := ColdFront.Step(d, roll, in.ColdFront, in.HeatWave.Remaining > 1, in.Cooldowns.ColdFront)
	heat := HeatWave.Step(d, cold.Roll, in.HeatWave, cold.State.Active(), in.Cooldowns.HeatWave)

	modifier := cold.Modifier + heat.Modifier
	variation := Variation(heat.Roll)
	actual := in.Base + modifier + variation

	res := TemperatureResult{
		Base:      in.Base,
		Actual:    actual,
		Modifier:  modifier,
		Variation: variation,
		Category:  CategoryFor(actual - in.Base),
		Roll:      roll,
		ColdFront: cold,
		HeatWave:  heat,
	}
	for _, kind := range EventKinds {
		stored := in.Cooldowns.Get(kind)
		if res.Active(kind) {
			res.DayCooldowns = res.DayCooldowns.With(kind, 0)
			res.NextCooldowns = res.NextCooldowns.With(kind, 0)
			continue
		}
		res.DayCooldowns = res.DayCooldowns.With(kind, stored)
		res.NextCooldowns = res.NextCooldowns.With(kind, stored+1)
	}
	return res
}
