package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/neexbeast/trailweather/internal/journey"
)

// JourneyService defines the journey operations needed by handlers.
type JourneyService interface {
	StartJourney(ctx context.Context, group, season, province string) (journey.Journey, error)
	Journey(ctx context.Context, group string) (journey.Journey, error)
	EndJourney(ctx context.Context, group string) (journey.Journey, error)
	ConfigureStage(ctx context.Context, group string, duration int, mode string) (journey.Journey, error)
	AdvanceDay(ctx context.Context, group string) (journey.DailyWeather, error)
	AdvanceStage(ctx context.Context, group string, days int) (journey.StageResult, error)
	DailyWeather(ctx context.Context, group string, day int) (journey.DailyWeather, error)
	ListDailyWeather(ctx context.Context, group string, from, to int) ([]journey.DailyWeather, error)
}

// WeatherCache defines the cache operations needed by handlers.
type WeatherCache interface {
	Get(ctx context.Context, journeyID uuid.UUID, day int) (*journey.DailyWeather, error)
	GetRange(ctx context.Context, journeyID uuid.UUID, from, to int) ([]*journey.DailyWeather, error)
	Set(ctx context.Context, journeyID uuid.UUID, recs ...journey.DailyWeather) error
	Drop(ctx context.Context, journeyID uuid.UUID) error
}

// NoCache is a WeatherCache that never holds anything. It stands in when
// Redis is not configured.
type NoCache struct{}

func (NoCache) Get(context.Context, uuid.UUID, int) (*journey.DailyWeather, error) { return nil, nil }
func (NoCache) GetRange(_ context.Context, _ uuid.UUID, from, to int) ([]*journey.DailyWeather, error) {
	if to < from {
		return nil, nil
	}
	return make([]*journey.DailyWeather, to-from+1), nil
}
func (NoCache) Set(context.Context, uuid.UUID, ...journey.DailyWeather) error { return nil }
func (NoCache) Drop(context.Context, uuid.UUID) error                         { return nil }
