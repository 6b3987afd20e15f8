package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/trailweather/internal/journey"
	"github.com/neexbeast/trailweather/internal/weather"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Querier abstracts the subset of pgxpool.Pool and pgx.Tx used by Repository.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pool is a Querier that can also start transactions.
// This allows injection of a mock in tests.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository is a journey.Backend on Postgres. Units of work lock the
// group's journey row, so different groups never wait on each other.
type Repository struct {
	pool Pool
}

var _ journey.Backend = (*Repository)(nil)

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewRepositoryWithPool constructs a Repository with a custom Pool (for tests).
func NewRepositoryWithPool(p Pool) *Repository {
	return &Repository{pool: p}
}

const journeyColumns = `group_id, journey_id, current_day, season, province, stage_duration,
	display_mode, cooldown_cold_front, cooldown_heat_wave, created_at, updated_at`

const dailyColumns = `day, wind_timeline, weather_type, weather_roll, temperature_base,
	temperature_actual, temperature_variation, temperature_category, temperature_roll,
	cold_front_remaining, cold_front_total, heat_wave_remaining, heat_wave_total,
	cooldown_cold_front, cooldown_heat_wave, legacy_totals`

// CreateJourney inserts a new journey row.
func (r *Repository) CreateJourney(ctx context.Context, j journey.Journey) error {
	const q = `
		INSERT INTO journeys (group_id, journey_id, current_day, season, province, stage_duration,
			display_mode, cooldown_cold_front, cooldown_heat_wave)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (group_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, q,
		j.Group, j.ID, j.CurrentDay, string(j.Season), j.Province, j.StageDuration,
		string(j.DisplayMode), j.Cooldowns.ColdFront, j.Cooldowns.HeatWave,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return journey.AlreadyActive(j.Group)
		}
		return fmt.Errorf("inserting journey for group %s: %w", j.Group, err)
	}
	if tag.RowsAffected() == 0 {
		return journey.AlreadyActive(j.Group)
	}

	return nil
}

// DeleteJourney removes the journey; its days go with it.
func (r *Repository) DeleteJourney(ctx context.Context, group string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM journeys WHERE group_id = $1`, group)
	if err != nil {
		return fmt.Errorf("deleting journey for group %s: %w", group, err)
	}
	if tag.RowsAffected() == 0 {
		return journey.NoJourney(group)
	}
	return nil
}

// Journey loads the group's journey.
func (r *Repository) Journey(ctx context.Context, group string) (journey.Journey, error) {
	return getJourney(ctx, r.pool, group, false)
}

// DailyWeather loads one day. A missing day on a missing journey reports the journey.
func (r *Repository) DailyWeather(ctx context.Context, group string, day int) (journey.DailyWeather, error) {
	rec, err := getDaily(ctx, r.pool, group, day)
	if errors.Is(err, journey.ErrNotFound) {
		if _, jerr := getJourney(ctx, r.pool, group, false); jerr != nil {
			return journey.DailyWeather{}, jerr
		}
	}
	return rec, err
}

// ListDailyWeather loads the days in [from, to] ordered by day.
func (r *Repository) ListDailyWeather(ctx context.Context, group string, from, to int) ([]journey.DailyWeather, error) {
	if _, err := getJourney(ctx, r.pool, group, false); err != nil {
		return nil, err
	}

	q := `SELECT ` + dailyColumns + ` FROM daily_weather WHERE group_id = $1 AND day BETWEEN $2 AND $3 ORDER BY day`
	rows, err := r.pool.Query(ctx, q, group, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying days %d-%d for group %s: %w", from, to, group, err)
	}
	defer rows.Close()

	var results []journey.DailyWeather
	for rows.Next() {
		rec, err := scanDaily(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning day row: %w", err)
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating day rows: %w", err)
	}

	return results, nil
}

// InTx runs fn in a transaction holding the group's journey row lock.
func (r *Repository) InTx(ctx context.Context, group string, fn func(ctx context.Context, tx journey.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if _, err := getJourney(ctx, tx, group, true); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := fn(ctx, &repoTx{q: tx, group: group}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `SELECT 1`)
	return err
}

type repoTx struct {
	q     Querier
	group string
}

func (t *repoTx) Journey(ctx context.Context) (journey.Journey, error) {
	return getJourney(ctx, t.q, t.group, false)
}

func (t *repoTx) DailyWeather(ctx context.Context, day int) (journey.DailyWeather, error) {
	return getDaily(ctx, t.q, t.group, day)
}

func (t *repoTx) PutDailyWeather(ctx context.Context, rec journey.DailyWeather) error {
	windJSON, err := json.Marshal(rec.Wind)
	if err != nil {
		return fmt.Errorf("marshaling wind timeline for day %d: %w", rec.Day, err)
	}

	const q = `
		INSERT INTO daily_weather (group_id, ` + dailyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (group_id, day) DO UPDATE
		SET wind_timeline         = EXCLUDED.wind_timeline,
		    weather_type          = EXCLUDED.weather_type,
		    weather_roll          = EXCLUDED.weather_roll,
		    temperature_base      = EXCLUDED.temperature_base,
		    temperature_actual    = EXCLUDED.temperature_actual,
		    temperature_variation = EXCLUDED.temperature_variation,
		    temperature_category  = EXCLUDED.temperature_category,
		    temperature_roll      = EXCLUDED.temperature_roll,
		    cold_front_remaining  = EXCLUDED.cold_front_remaining,
		    cold_front_total      = EXCLUDED.cold_front_total,
		    heat_wave_remaining   = EXCLUDED.heat_wave_remaining,
		    heat_wave_total       = EXCLUDED.heat_wave_total,
		    cooldown_cold_front   = EXCLUDED.cooldown_cold_front,
		    cooldown_heat_wave    = EXCLUDED.cooldown_heat_wave,
		    legacy_totals         = EXCLUDED.legacy_totals
	`

	if _, err := t.q.Exec(ctx, q,
		t.group, rec.Day, windJSON, string(rec.Condition), rec.ConditionRoll, rec.TemperatureBase,
		rec.TemperatureActual, rec.TemperatureVariation, string(rec.TemperatureCategory), rec.TemperatureRoll,
		rec.ColdFront.Remaining, rec.ColdFront.Total, rec.HeatWave.Remaining, rec.HeatWave.Total,
		rec.Cooldowns.ColdFront, rec.Cooldowns.HeatWave, rec.LegacyTotals,
	); err != nil {
		return fmt.Errorf("upserting day %d for group %s: %w", rec.Day, t.group, err)
	}

	return nil
}

func (t *repoTx) UpdateJourney(ctx context.Context, j journey.Journey) error {
	const q = `
		UPDATE journeys
		SET current_day = $1, stage_duration = $2, display_mode = $3,
		    cooldown_cold_front = $4, cooldown_heat_wave = $5, updated_at = NOW()
		WHERE group_id = $6
	`
	if _, err := t.q.Exec(ctx, q,
		j.CurrentDay, j.StageDuration, string(j.DisplayMode),
		j.Cooldowns.ColdFront, j.Cooldowns.HeatWave, t.group,
	); err != nil {
		return fmt.Errorf("updating journey for group %s: %w", t.group, err)
	}
	return nil
}

func getJourney(ctx context.Context, q Querier, group string, lock bool) (journey.Journey, error) {
	sql := `SELECT ` + journeyColumns + ` FROM journeys WHERE group_id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}

	var (
		j      journey.Journey
		season string
		mode   string
	)
	err := q.QueryRow(ctx, sql, group).Scan(
		&j.Group,
		&j.ID,
		&j.CurrentDay,
		&season,
		&j.Province,
		&j.StageDuration,
		&mode,
		&j.Cooldowns.ColdFront,
		&j.Cooldowns.HeatWave,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return journey.Journey{}, journey.NoJourney(group)
		}
		return journey.Journey{}, fmt.Errorf("querying journey for group %s: %w", group, err)
	}

	j.Season = weather.Season(season)
	j.DisplayMode = journey.DisplayMode(mode)
	return j, nil
}

func getDaily(ctx context.Context, q Querier, group string, day int) (journey.DailyWeather, error) {
	row := q.QueryRow(ctx,
		`SELECT `+dailyColumns+` FROM daily_weather WHERE group_id = $1 AND day = $2`, group, day)
	rec, err := scanDaily(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return journey.DailyWeather{}, journey.NoDay(group, day)
		}
		return journey.DailyWeather{}, fmt.Errorf("querying day %d for group %s: %w", day, group, err)
	}
	return rec, nil
}

func scanDaily(row pgx.Row) (journey.DailyWeather, error) {
	var (
		rec       journey.DailyWeather
		windJSON  []byte
		condition string
		category  string
	)
	if err := row.Scan(
		&rec.Day,
		&windJSON,
		&condition,
		&rec.ConditionRoll,
		&rec.TemperatureBase,
		&rec.TemperatureActual,
		&rec.TemperatureVariation,
		&category,
		&rec.TemperatureRoll,
		&rec.ColdFront.Remaining,
		&rec.ColdFront.Total,
		&rec.HeatWave.Remaining,
		&rec.HeatWave.Total,
		&rec.Cooldowns.ColdFront,
		&rec.Cooldowns.HeatWave,
		&rec.LegacyTotals,
	); err != nil {
		return journey.DailyWeather{}, err
	}

	if err := json.Unmarshal(windJSON, &rec.Wind); err != nil {
		return journey.DailyWeather{}, fmt.Errorf("unmarshaling wind timeline for day %d: %w", rec.Day, err)
	}

	rec.Condition = weather.Condition(condition)
	rec.TemperatureCategory = weather.Category(category)
	return rec, nil
}
