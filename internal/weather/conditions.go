package weather

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSeason is returned for a season name outside the four seasons.
var ErrUnknownSeason = errors.New("unknown season")

// Season selects the weather-type table and the base temperature column.
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// Seasons lists the seasons in calendar order.
var Seasons = []Season{Spring, Summer, Autumn, Winter}

// ParseSeason normalizes a season name. "fall" is accepted for autumn.
func ParseSeason(s string) (Season, error) {
	switch v := Season(strings.ToLower(strings.TrimSpace(s))); v {
	case Spring, Summer, Autumn, Winter:
		return v, nil
	case "fall":
		return Autumn, nil
	}
	return "", fmt.Errorf("%w %q: expected one of spring, summer, autumn, winter", ErrUnknownSeason, s)
}

// Condition is the day's categorical weather type.
type Condition string

const (
	ConditionFair     Condition = "fair"
	ConditionOvercast Condition = "overcast"
	ConditionDrizzle  Condition = "drizzle"
	ConditionDownpour Condition = "downpour"
	ConditionFog      Condition = "fog"
	ConditionSnow     Condition = "snow"
)

// conditionBand maps a d100 ceiling to a condition; bands are cumulative.
type conditionBand struct {
	upTo      int
	condition Condition
}

// conditionTables hold the cumulative ranges per season; each ends at 100.
var conditionTables = map[Season][]conditionBand{
	Spring: {
		{30, ConditionFair},
		{55, ConditionOvercast},
		{80, ConditionDrizzle},
		{90, ConditionDownpour},
		{98, ConditionFog},
		{100, ConditionSnow},
	},
	Summer: {
		{50, ConditionFair},
		{70, ConditionOvercast},
		{85, ConditionDrizzle},
		{97, ConditionDownpour},
		{100, ConditionFog},
	},
	Autumn: {
		{25, ConditionFair},
		{50, ConditionOvercast},
		{75, ConditionDrizzle},
		{85, ConditionDownpour},
		{97, ConditionFog},
		{100, ConditionSnow},
	},
	Winter: {
		{20, ConditionFair},
		{45, ConditionOvercast},
		{55, ConditionDrizzle},
		{65, ConditionDownpour},
		{80, ConditionFog},
		{100, ConditionSnow},
	},
}

// ConditionFor looks a d100 result up in the season's table.
func ConditionFor(season Season, roll int) (Condition, error) {
	table, ok := conditionTables[season]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownSeason, season)
	}
	if roll < 1 || roll > 100 {
		return "", fmt.Errorf("weather roll %d outside 1-100", roll)
	}
	for _, band := range table {
		if roll <= band.upTo {
			return band.condition, nil
		}
	}
	return "", fmt.Errorf("weather table for %s does not cover roll %d", season, roll)
}

// RollCondition draws the day's weather type and returns it with the raw roll.
func RollCondition(d Dice, season Season) (Condition, int, error) {
	if _, ok := conditionTables[season]; !ok {
		return "", 0, fmt.Errorf("%w %q", ErrUnknownSeason, season)
	}
	roll := d.Roll(100)
	c, err := ConditionFor(season, roll)
	if err != nil {
		return "", roll, err
	}
	return c, roll, nil
}
