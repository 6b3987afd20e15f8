package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/neexbeast/trailweather/internal/journey"
	"github.com/neexbeast/trailweather/internal/weather"
)

// Store is a journey.Backend on SQLite. SQLite admits one writer at a time,
// so units of work for different groups queue behind each other briefly;
// the Postgres backend is the one to use when groups must never contend.
type Store struct {
	db *sqlx.DB
}

var _ journey.Backend = (*Store)(nil)

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type journeyRow struct {
	GroupID           string `db:"group_id"`
	JourneyID         string `db:"journey_id"`
	CurrentDay        int    `db:"current_day"`
	Season            string `db:"season"`
	Province          string `db:"province"`
	StageDuration     int    `db:"stage_duration"`
	DisplayMode       string `db:"display_mode"`
	CooldownColdFront int    `db:"cooldown_cold_front"`
	CooldownHeatWave  int    `db:"cooldown_heat_wave"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

func (r journeyRow) journey() (journey.Journey, error) {
	id, err := uuid.Parse(r.JourneyID)
	if err != nil {
		return journey.Journey{}, fmt.Errorf("parsing journey id for group %s: %w", r.GroupID, err)
	}
	return journey.Journey{
		ID:            id,
		Group:         r.GroupID,
		CurrentDay:    r.CurrentDay,
		Season:        weather.Season(r.Season),
		Province:      r.Province,
		StageDuration: r.StageDuration,
		DisplayMode:   journey.DisplayMode(r.DisplayMode),
		Cooldowns:     weather.Cooldowns{ColdFront: r.CooldownColdFront, HeatWave: r.CooldownHeatWave},
		CreatedAt:     time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:     time.UnixMilli(r.UpdatedAt).UTC(),
	}, nil
}

const journeyColumns = `group_id, journey_id, current_day, season, province, stage_duration,
	display_mode, cooldown_cold_front, cooldown_heat_wave, created_at, updated_at`

type dailyRow struct {
	Day                  int    `db:"day"`
	WindTimeline         string `db:"wind_timeline"`
	WeatherType          string `db:"weather_type"`
	WeatherRoll          int    `db:"weather_roll"`
	TemperatureBase      int    `db:"temperature_base"`
	TemperatureActual    int    `db:"temperature_actual"`
	TemperatureVariation int    `db:"temperature_variation"`
	TemperatureCategory  string `db:"temperature_category"`
	TemperatureRoll      int    `db:"temperature_roll"`
	ColdFrontRemaining   int    `db:"cold_front_remaining"`
	ColdFrontTotal       int    `db:"cold_front_total"`
	HeatWaveRemaining    int    `db:"heat_wave_remaining"`
	HeatWaveTotal        int    `db:"heat_wave_total"`
	CooldownColdFront    int    `db:"cooldown_cold_front"`
	CooldownHeatWave     int    `db:"cooldown_heat_wave"`
	LegacyTotals         bool   `db:"legacy_totals"`
}

func (r dailyRow) record() (journey.DailyWeather, error) {
	var wind weather.WindTimeline
	if err := json.Unmarshal([]byte(r.WindTimeline), &wind); err != nil {
		return journey.DailyWeather{}, fmt.Errorf("unmarshaling wind timeline for day %d: %w", r.Day, err)
	}
	return journey.DailyWeather{
		Day:                  r.Day,
		Wind:                 wind,
		Condition:            weather.Condition(r.WeatherType),
		ConditionRoll:        r.WeatherRoll,
		TemperatureBase:      r.TemperatureBase,
		TemperatureActual:    r.TemperatureActual,
		TemperatureVariation: r.TemperatureVariation,
		TemperatureCategory:  weather.Category(r.TemperatureCategory),
		TemperatureRoll:      r.TemperatureRoll,
		ColdFront:            weather.EventState{Remaining: r.ColdFrontRemaining, Total: r.ColdFrontTotal},
		HeatWave:             weather.EventState{Remaining: r.HeatWaveRemaining, Total: r.HeatWaveTotal},
		Cooldowns:            weather.Cooldowns{ColdFront: r.CooldownColdFront, HeatWave: r.CooldownHeatWave},
		LegacyTotals:         r.LegacyTotals,
	}, nil
}

const dailyColumns = `day, wind_timeline, weather_type, weather_roll, temperature_base,
	temperature_actual, temperature_variation, temperature_category, temperature_roll,
	cold_front_remaining, cold_front_total, heat_wave_remaining, heat_wave_total,
	cooldown_cold_front, cooldown_heat_wave, legacy_totals`

// CreateJourney inserts a new journey row.
func (s *Store) CreateJourney(ctx context.Context, j journey.Journey) error {
	now := time.Now().UTC().UnixMilli()
	const q = `
		INSERT INTO journeys (` + journeyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, q,
		j.Group, j.ID.String(), j.CurrentDay, string(j.Season), j.Province, j.StageDuration,
		string(j.DisplayMode), j.Cooldowns.ColdFront, j.Cooldowns.HeatWave, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting journey for group %s: %w", j.Group, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting journey for group %s: %w", j.Group, err)
	}
	if n == 0 {
		return journey.AlreadyActive(j.Group)
	}
	return nil
}

// DeleteJourney removes the journey; its days go with it.
func (s *Store) DeleteJourney(ctx context.Context, group string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journeys WHERE group_id = ?`, group)
	if err != nil {
		return fmt.Errorf("deleting journey for group %s: %w", group, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting journey for group %s: %w", group, err)
	}
	if n == 0 {
		return journey.NoJourney(group)
	}
	return nil
}

// Journey loads the group's journey.
func (s *Store) Journey(ctx context.Context, group string) (journey.Journey, error) {
	return getJourney(ctx, s.db, group)
}

// DailyWeather loads one day.
func (s *Store) DailyWeather(ctx context.Context, group string, day int) (journey.DailyWeather, error) {
	rec, err := getDaily(ctx, s.db, group, day)
	if errors.Is(err, journey.ErrNotFound) {
		if _, jerr := getJourney(ctx, s.db, group); jerr != nil {
			return journey.DailyWeather{}, jerr
		}
	}
	return rec, err
}

// ListDailyWeather loads the days in [from, to] ordered by day.
func (s *Store) ListDailyWeather(ctx context.Context, group string, from, to int) ([]journey.DailyWeather, error) {
	if _, err := getJourney(ctx, s.db, group); err != nil {
		return nil, err
	}

	var rows []dailyRow
	q := `SELECT ` + dailyColumns + ` FROM daily_weather WHERE group_id = ? AND day BETWEEN ? AND ? ORDER BY day`
	if err := s.db.SelectContext(ctx, &rows, q, group, from, to); err != nil {
		return nil, fmt.Errorf("querying days %d-%d for group %s: %w", from, to, group, err)
	}

	out := make([]journey.DailyWeather, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// InTx runs fn inside an immediate transaction, which holds the database
// write lock until commit.
func (s *Store) InTx(ctx context.Context, group string, fn func(ctx context.Context, tx journey.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if _, err := getJourney(ctx, tx, group); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := fn(ctx, &storeTx{tx: tx, group: group}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type storeTx struct {
	tx    *sqlx.Tx
	group string
}

func (t *storeTx) Journey(ctx context.Context) (journey.Journey, error) {
	return getJourney(ctx, t.tx, t.group)
}

func (t *storeTx) DailyWeather(ctx context.Context, day int) (journey.DailyWeather, error) {
	return getDaily(ctx, t.tx, t.group, day)
}

func (t *storeTx) PutDailyWeather(ctx context.Context, rec journey.DailyWeather) error {
	wind, err := json.Marshal(rec.Wind)
	if err != nil {
		return fmt.Errorf("marshaling wind timeline for day %d: %w", rec.Day, err)
	}

	const q = `
		INSERT INTO daily_weather (group_id, ` + dailyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, day) DO UPDATE
		SET wind_timeline         = excluded.wind_timeline,
		    weather_type          = excluded.weather_type,
		    weather_roll          = excluded.weather_roll,
		    temperature_base      = excluded.temperature_base,
		    temperature_actual    = excluded.temperature_actual,
		    temperature_variation = excluded.temperature_variation,
		    temperature_category  = excluded.temperature_category,
		    temperature_roll      = excluded.temperature_roll,
		    cold_front_remaining  = excluded.cold_front_remaining,
		    cold_front_total      = excluded.cold_front_total,
		    heat_wave_remaining   = excluded.heat_wave_remaining,
		    heat_wave_total       = excluded.heat_wave_total,
		    cooldown_cold_front   = excluded.cooldown_cold_front,
		    cooldown_heat_wave    = excluded.cooldown_heat_wave,
		    legacy_totals         = excluded.legacy_totals
	`
	if _, err := t.tx.ExecContext(ctx, q,
		t.group, rec.Day, string(wind), string(rec.Condition), rec.ConditionRoll, rec.TemperatureBase,
		rec.TemperatureActual, rec.TemperatureVariation, string(rec.TemperatureCategory), rec.TemperatureRoll,
		rec.ColdFront.Remaining, rec.ColdFront.Total, rec.HeatWave.Remaining, rec.HeatWave.Total,
		rec.Cooldowns.ColdFront, rec.Cooldowns.HeatWave, rec.LegacyTotals,
	); err != nil {
		return fmt.Errorf("upserting day %d for group %s: %w", rec.Day, t.group, err)
	}
	return nil
}

func (t *storeTx) UpdateJourney(ctx context.Context, j journey.Journey) error {
	const q = `
		UPDATE journeys
		SET current_day = ?, stage_duration = ?, display_mode = ?,
		    cooldown_cold_front = ?, cooldown_heat_wave = ?, updated_at = ?
		WHERE group_id = ?
	`
	if _, err := t.tx.ExecContext(ctx, q,
		j.CurrentDay, j.StageDuration, string(j.DisplayMode),
		j.Cooldowns.ColdFront, j.Cooldowns.HeatWave, time.Now().UTC().UnixMilli(), t.group,
	); err != nil {
		return fmt.Errorf("updating journey for group %s: %w", t.group, err)
	}
	return nil
}

func getJourney(ctx context.Context, q sqlx.QueryerContext, group string) (journey.Journey, error) {
	var row journeyRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+journeyColumns+` FROM journeys WHERE group_id = ?`, group)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return journey.Journey{}, journey.NoJourney(group)
		}
		return journey.Journey{}, fmt.Errorf("querying journey for group %s: %w", group, err)
	}
	return row.journey()
}

func getDaily(ctx context.Context, q sqlx.QueryerContext, group string, day int) (journey.DailyWeather, error) {
	var row dailyRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT `+dailyColumns+` FROM daily_weather WHERE group_id = ? AND day = ?`, group, day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return journey.DailyWeather{}, journey.NoDay(group, day)
		}
		return journey.DailyWeather{}, fmt.Errorf("querying day %d for group %s: %w", day, group, err)
	}
	return row.record()
}
