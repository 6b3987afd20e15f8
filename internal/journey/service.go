package journey

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neexbeast/trailweather/internal/weather"
)

// Service generates days for journeys and persists them through a Store.
type Service struct {
	store *Store
	dice  weather.Dice
	log   *slog.Logger
}

// NewService constructs a Service.
func NewService(store *Store, dice weather.Dice, log *slog.Logger) *Service {
	return &Service{store: store, dice: dice, log: log}
}

// StartJourney validates the season and province names and starts a journey.
func (s *Service) StartJourney(ctx context.Context, group, season, province string) (Journey, error) {
	se, err := weather.ParseSeason(season)
	if err != nil {
		return Journey{}, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	p, err := weather.ParseProvince(province)
	if err != nil {
		return Journey{}, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}

	j, err := s.store.StartJourney(ctx, group, se, p)
	if err != nil {
		return Journey{}, err
	}
	s.log.Info("journey started", "group", j.Group, "journey_id", j.ID, "season", j.Season, "province", j.Province)
	return j, nil
}

// Journey returns the group's journey.
func (s *Service) Journey(ctx context.Context, group string) (Journey, error) {
	return s.store.Journey(ctx, group)
}

// EndJourney deletes the journey and returns its final state.
func (s *Service) EndJourney(ctx context.Context, group string) (Journey, error) {
	j, err := s.store.Journey(ctx, group)
	if err != nil {
		return Journey{}, err
	}
	if err := s.store.EndJourney(ctx, group); err != nil {
		return Journey{}, err
	}
	s.log.Info("journey ended", "group", group, "journey_id", j.ID, "days", j.LastDay())
	return j, nil
}

// ConfigureStage changes the stage length and display mode.
func (s *Service) ConfigureStage(ctx context.Context, group string, duration int, mode string) (Journey, error) {
	m, err := ParseDisplayMode(mode)
	if err != nil {
		return Journey{}, err
	}
	return s.store.ConfigureStage(ctx, group, duration, m)
}

// DailyWeather returns a stored day.
func (s *Service) DailyWeather(ctx context.Context, group string, day int) (DailyWeather, error) {
	return s.store.DailyWeather(ctx, group, day)
}

// ListDailyWeather returns the stored days in [from, to].
func (s *Service) ListDailyWeather(ctx context.Context, group string, from, to int) ([]DailyWeather, error) {
	return s.store.ListDailyWeather(ctx, group, from, to)
}

// AdvanceDay generates the group's next day. Reading the previous day,
// generating, writing the record, the cooldowns and the day counter all
// happen in one unit of work; any failure leaves no trace of the day.
func (s *Service) AdvanceDay(ctx context.Context, group string) (DailyWeather, error) {
	var rec DailyWeather
	err := s.store.InTx(ctx, group, func(ctx context.Context, tx *DayTx) error {
		j, err := tx.Journey(ctx)
		if err != nil {
			return err
		}

		r, temp, err := s.generate(ctx, tx, j)
		if err != nil {
			return err
		}
		if err := tx.AdvanceDay(ctx, r); err != nil {
			return err
		}
		if err := tx.SetCooldowns(ctx, temp.NextCooldowns); err != nil {
			return fmt.Errorf("storing cooldowns: %w", err)
		}

		rec = r
		return nil
	})
	if err != nil {
		return DailyWeather{}, fmt.Errorf("advancing day for group %q: %w", group, err)
	}

	s.log.Info("day generated",
		"group", group,
		"day", rec.Day,
		"weather", rec.Condition,
		"temperature", rec.TemperatureActual,
		"category", rec.TemperatureCategory,
	)
	return rec, nil
}

// AdvanceStage generates days one at a time. days of 0 uses the journey's
// stage duration. If a day fails the stage stops there: the result holds the
// days already committed and the error says which day failed.
func (s *Service) AdvanceStage(ctx context.Context, group string, days int) (StageResult, error) {
	if days == 0 {
		j, err := s.store.Journey(ctx, group)
		if err != nil {
			return StageResult{Group: group}, err
		}
		days = j.StageDuration
	}
	if err := ValidateStageDuration(days); err != nil {
		return StageResult{Group: group}, err
	}

	res := StageResult{Group: group, Requested: days, Days: make([]DailyWeather, 0, days)}
	for i := 0; i < days; i++ {
		rec, err := s.AdvanceDay(ctx, group)
		if err != nil {
			s.log.Warn("stage stopped early", "group", group, "completed", len(res.Days), "requested", days, "err", err)
			return res, fmt.Errorf("stage stopped after %d of %d days: %w", len(res.Days), days, err)
		}
		res.Days = append(res.Days, rec)
	}
	return res, nil
}

func (s *Service) generate(ctx context.Context, tx *DayTx, j Journey) (DailyWeather, weather.TemperatureResult, error) {
	day := j.CurrentDay

	var prev *DailyWeather
	if day > 1 {
		p, err := tx.DailyWeather(ctx, day-1)
		if err != nil {
			return DailyWeather{}, weather.TemperatureResult{}, fmt.Errorf("reading day %d: %w", day-1, err)
		}
		prev = &p
	}

	base, err := weather.BaseTemperature(j.Province, j.Season)
	if err != nil {
		return DailyWeather{}, weather.TemperatureResult{}, fmt.Errorf("looking up base temperature: %w", err)
	}

	var midnight *weather.WindEntry
	if prev != nil {
		m := prev.Wind.Midnight()
		midnight = &m
	}
	wind := weather.RollWindTimeline(s.dice, midnight)

	condition, conditionRoll, err := weather.RollCondition(s.dice, j.Season)
	if err != nil {
		return DailyWeather{}, weather.TemperatureResult{}, fmt.Errorf("rolling weather type: %w", err)
	}

	in := weather.TemperatureInput{Base: base, Cooldowns: j.Cooldowns}
	if prev != nil {
		in.ColdFront = prev.ColdFront
		in.HeatWave = prev.HeatWave
	}
	temp := weather.RollTemperature(s.dice, in)

	for _, step := range []struct {
		kind weather.EventKind
		step weather.EventStep
	}{{weather.KindColdFront, temp.ColdFront}, {weather.KindHeatWave, temp.HeatWave}} {
		switch {
		case step.step.Started:
			s.log.Info("event started", "group", j.Group, "day", day, "kind", step.kind, "days", step.step.State.Total)
		case step.step.Blocked != weather.NotBlocked:
			s.log.Debug("event trigger blocked", "group", j.Group, "day", day, "kind", step.kind, "reason", step.step.Blocked)
		}
	}

	return DailyWeather{
		Day:                  day,
		Wind:                 wind,
		Condition:            condition,
		ConditionRoll:        conditionRoll,
		TemperatureBase:      base,
		TemperatureActual:    temp.Actual,
		TemperatureVariation: temp.Variation,
		TemperatureCategory:  temp.Category,
		TemperatureRoll:      temp.Roll,
		ColdFront:            temp.ColdFront.State,
		HeatWave:             temp.HeatWave.State,
		Cooldowns:            temp.DayCooldowns,
	}, temp, nil
}
