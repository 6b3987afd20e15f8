package weather

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownProvince is returned for a province missing from the base table.
var ErrUnknownProvince = errors.New("unknown province")

// baseTemperatures is the province × season table in °C: spring, summer, autumn, winter.
var baseTemperatures = map[string][4]int{
	"averland":       {14, 23, 13, 3},
	"border_princes": {17, 27, 16, 7},
	"hochland":       {10, 18, 9, -3},
	"kislev":         {6, 17, 5, -12},
	"middenland":     {10, 19, 9, -2},
	"nordland":       {9, 18, 9, -2},
	"ostermark":      {9, 19, 8, -5},
	"ostland":        {8, 18, 7, -5},
	"reikland":       {12, 21, 11, 2},
	"stirland":       {13, 22, 12, 1},
	"sylvania":       {10, 19, 8, -3},
	"talabecland":    {11, 20, 10, 0},
	"the_moot":       {15, 24, 14, 4},
	"westerland":     {12, 20, 12, 4},
	"wissenland":     {13, 22, 12, 2},
}

// Provinces returns the known province keys sorted alphabetically.
func Provinces() []string {
	out := make([]string, 0, len(baseTemperatures))
	for p := range baseTemperatures {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// NormalizeProvince lower-cases the name and joins words with underscores.
func NormalizeProvince(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	return strings.Join(strings.FieldsFunc(p, func(r rune) bool { return r == ' ' || r == '-' || r == '_' }), "_")
}

// ParseProvince validates and normalizes a province name.
func ParseProvince(p string) (string, error) {
	key := NormalizeProvince(p)
	if _, ok := baseTemperatures[key]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownProvince, p)
	}
	return key, nil
}

// BaseTemperature looks up the province's seasonal baseline.
func BaseTemperature(province string, season Season) (int, error) {
	row, ok := baseTemperatures[province]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownProvince, province)
	}
	for i, s := range Seasons {
		if s == season {
			return row[i], nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownSeason, season)
}

// variationBand maps a d100 ceiling to a daily offset.
type variationBand struct {
	upTo   int
	offset int
}

var variationBands = []variationBand{
	{5, -5},
	{10, -4},
	{20, -3},
	{30, -2},
	{40, -1},
	{60, 0},
	{70, 1},
	{80, 2},
	{90, 3},
	{95, 4},
	{100, 5},
}

// Variation maps a d100 roll to the day's small temperature offset.
// Rolls outside 1-100 are clamped.
func Variation(roll int) int {
	for _, band := range variationBands {
		if roll <= band.upTo {
			return band.offset
		}
	}
	return variationBands[len(variationBands)-1].offset
}

// Category is the displayed temperature bucket.
type Category string

const (
	CategoryExtremelyLow  Category = "extremely_low"
	CategoryVeryLow       Category = "very_low"
	CategoryLow           Category = "low"
	CategorySlightlyLow   Category = "slightly_low"
	CategoryAverage       Category = "average"
	CategorySlightlyHigh  Category = "slightly_high"
	CategoryHigh          Category = "high"
	CategoryVeryHigh      Category = "very_high"
	CategoryExtremelyHigh Category = "extremely_high"
)

var categoryLabels = map[Category]string{
	CategoryExtremelyLow:  "extremely cold",
	CategoryVeryLow:       "very cold",
	CategoryLow:           "cold",
	CategorySlightlyLow:   "cool",
	CategoryAverage:       "comfortable",
	CategorySlightlyHigh:  "warm",
	CategoryHigh:          "hot",
	CategoryVeryHigh:      "very hot",
	CategoryExtremelyHigh: "extremely hot",
}

// Label is the player-facing text for the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// CategoryFor buckets a deviation from the base temperature. The thresholds
// are symmetric: 2, 5, 9 and 14 degrees either side.
func CategoryFor(deviation int) Category {
	abs := deviation
	if abs < 0 {
		abs = -abs
	}
	var level int
	switch {
	case abs <= 2:
		return CategoryAverage
	case abs <= 5:
		level = 1
	case abs <= 9:
		level = 2
	case abs <= 14:
		level = 3
	default:
		level = 4
	}
	if deviation < 0 {
		return [...]Category{CategorySlightlyLow, CategoryLow, CategoryVeryLow, CategoryExtremelyLow}[level-1]
	}
	return [...]Category{CategorySlightlyHigh, CategoryHigh, CategoryVeryHigh, CategoryExtremelyHigh}[level-1]
}
