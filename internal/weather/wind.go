package weather

import "fmt"

// WindStrength is an ordered wind tier. Steps only ever move one tier at a time.
type WindStrength int

const (
	WindCalm WindStrength = iota
	WindLight
	WindBracing
	WindStrong
	WindVeryStrong
)

var windStrengthNames = [...]string{"calm", "light", "bracing", "strong", "very strong"}

func (s WindStrength) String() string {
	if s < WindCalm || s > WindVeryStrong {
		return fmt.Sprintf("WindStrength(%d)", int(s))
	}
	return windStrengthNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s WindStrength) MarshalText() ([]byte, error) {
	if s < WindCalm || s > WindVeryStrong {
		return nil, fmt.Errorf("invalid wind strength %d", int(s))
	}
	return []byte(windStrengthNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *WindStrength) UnmarshalText(b []byte) error {
	for i, name := range windStrengthNames {
		if name == string(b) {
			*s = WindStrength(i)
			return nil
		}
	}
	return fmt.Errorf("unknown wind strength %q", string(b))
}

// WindDirection is relative to the party's direction of travel.
type WindDirection int

const (
	WindTailwind WindDirection = iota
	WindSidewind
	WindHeadwind
)

var windDirectionNames = [...]string{"tailwind", "sidewind", "headwind"}

func (d WindDirection) String() string {
	if d < WindTailwind || d > WindHeadwind {
		return fmt.Sprintf("WindDirection(%d)", int(d))
	}
	return windDirectionNames[d]
}

// MarshalText implements encoding.TextMarshaler.
func (d WindDirection) MarshalText() ([]byte, error) {
	if d < WindTailwind || d > WindHeadwind {
		return nil, fmt.Errorf("invalid wind direction %d", int(d))
	}
	return []byte(windDirectionNames[d]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *WindDirection) UnmarshalText(b []byte) error {
	for i, name := range windDirectionNames {
		if name == string(b) {
			*d = WindDirection(i)
			return nil
		}
	}
	return fmt.Errorf("unknown wind direction %q", string(b))
}

// TimeOfDay labels the four checkpoints of a wind timeline.
type TimeOfDay string

const (
	Dawn     TimeOfDay = "dawn"
	Midday   TimeOfDay = "midday"
	Dusk     TimeOfDay = "dusk"
	Midnight TimeOfDay = "midnight"
)

var timeline = [4]TimeOfDay{Dawn, Midday, Dusk, Midnight}

// WindEntry is one checkpoint of a day's wind.
type WindEntry struct {
	Time      TimeOfDay     `json:"time"`
	Strength  WindStrength  `json:"strength"`
	Direction WindDirection `json:"direction"`
	Changed   bool          `json:"changed"`
}

// WindTimeline holds dawn, midday, dusk and midnight in that order.
type WindTimeline [4]WindEntry

// Midnight returns the last entry, which seeds the next day's dawn.
func (t WindTimeline) Midnight() WindEntry {
	return t[3]
}

// windChangeSides is the die for the per-entry strength change check; a 1 changes.
const windChangeSides = 10

// RollWindTimeline draws a day of wind. When previous is non-nil, dawn keeps
// its strength so consecutive days join up; direction is always redrawn.
func RollWindTimeline(d Dice, previous *WindEntry) WindTimeline {
	var t WindTimeline

	dawn := WindEntry{Time: Dawn, Direction: rollWindDirection(d)}
	if previous != nil {
		dawn.Strength = previous.Strength
	} else {
		dawn.Strength = rollWindStrength(d)
	}
	t[0] = dawn

	for i := 1; i < len(timeline); i++ {
		prior := t[i-1]
		entry := WindEntry{Time: timeline[i], Strength: prior.Strength}
		if d.Roll(windChangeSides) == 1 {
			entry.Strength = stepWind(d, prior.Strength)
			entry.Changed = true
		}
		entry.Direction = rollWindDirection(d)
		t[i] = entry
	}

	return t
}

func stepWind(d Dice, s WindStrength) WindStrength {
	switch s {
	case WindCalm:
		return WindLight
	case WindVeryStrong:
		return WindStrong
	}
	if d.Roll(2) == 1 {
		return s - 1
	}
	return s + 1
}

func rollWindStrength(d Dice) WindStrength {
	switch r := d.Roll(10); {
	case r <= 2:
		return WindCalm
	case r <= 5:
		return WindLight
	case r <= 7:
		return WindBracing
	case r <= 9:
		return WindStrong
	default:
		return WindVeryStrong
	}
}

func rollWindDirection(d Dice) WindDirection {
	switch r := d.Roll(10); {
	case r <= 3:
		return WindTailwind
	case r <= 7:
		return WindSidewind
	default:
		return WindHeadwind
	}
}
