package sqlitestore_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/trailweather/internal/journey"
	"github.com/neexbeast/trailweather/internal/sqlitestore"
	"github.com/neexbeast/trailweather/internal/weather"
)

func openStore(t *testing.T) (*sqlitestore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journeys.db")
	s, err := sqlitestore.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func newStore(t *testing.T) *journey.Store {
	t.Helper()
	s, _ := openStore(t)
	return journey.NewStore(s)
}

func sampleDay(day int) journey.DailyWeather {
	return journey.DailyWeather{
		Day: day,
		Wind: weather.WindTimeline{
			{Time: weather.Dawn, Strength: weather.WindLight, Direction: weather.WindTailwind},
			{Time: weather.Midday, Strength: weather.WindBracing, Direction: weather.WindSidewind, Changed: true},
			{Time: weather.Dusk, Strength: weather.WindBracing, Direction: weather.WindHeadwind},
			{Time: weather.Midnight, Strength: weather.WindLight, Direction: weather.WindTailwind, Changed: true},
		},
		Condition:            weather.ConditionDrizzle,
		ConditionRoll:        77,
		TemperatureBase:      21,
		TemperatureActual:    16,
		TemperatureVariation: 5,
		TemperatureCategory:  weather.CategorySlightlyLow,
		TemperatureRoll:      98,
		ColdFront:            weather.EventState{Remaining: 2, Total: 3},
		Cooldowns:            weather.Cooldowns{ColdFront: 0, HeatWave: 12},
	}
}

func TestStartJourney(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	j, err := s.StartJourney(ctx, "party-1", weather.Summer, "reikland")
	require.NoError(t, err)
	assert.Equal(t, "party-1", j.Group)
	assert.Equal(t, 1, j.CurrentDay)
	assert.Equal(t, weather.Summer, j.Season)
	assert.Equal(t, journey.DefaultStageDuration, j.StageDuration)
	assert.Equal(t, journey.DisplaySimple, j.DisplayMode)
	assert.Equal(t, weather.ExpiredCooldowns(), j.Cooldowns)
	assert.False(t, j.CreatedAt.IsZero())

	_, err = s.StartJourney(ctx, "party-1", weather.Winter, "ostland")
	require.ErrorIs(t, err, journey.ErrAlreadyActive)
	assert.Contains(t, err.Error(), "end it before starting another")
}

func TestStartJourney_InvalidInput(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.StartJourney(ctx, "party", weather.Summer, "lustria")
	require.ErrorIs(t, err, journey.ErrInvalidRange)

	_, err = s.StartJourney(ctx, "  ", weather.Summer, "reikland")
	require.ErrorIs(t, err, journey.ErrInvalidRange)
}

func TestJourney_NotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.Journey(context.Background(), "ghost")
	require.ErrorIs(t, err, journey.ErrNotFound)
	assert.Contains(t, err.Error(), "start one first")
}

func TestSaveAndGetDailyWeather_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Summer, "reikland")
	require.NoError(t, err)

	for day := 1; day <= 5; day++ {
		rec := sampleDay(day)
		rec.ColdFront = weather.EventState{}
		rec.Cooldowns = weather.Cooldowns{ColdFront: 20 + day, HeatWave: 20 + day}
		require.NoError(t, s.AdvanceDay(ctx, "g", rec))
	}

	want := sampleDay(5)
	require.NoError(t, s.SaveDailyWeather(ctx, "g", want))

	got, err := s.DailyWeather(ctx, "g", 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	j, err := s.Journey(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 6, j.CurrentDay, "saving a generated day leaves the counter alone")
}

func TestSaveDailyWeather_OutOfOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Spring, "nordland")
	require.NoError(t, err)

	err = s.SaveDailyWeather(ctx, "g", sampleDay(2))
	require.ErrorIs(t, err, journey.ErrOutOfOrder)

	require.NoError(t, s.AdvanceDay(ctx, "g", sampleDay(1)))
	require.NoError(t, s.SaveDailyWeather(ctx, "g", sampleDay(1)))

	// Day 2 is next but has not been generated.
	err = s.SaveDailyWeather(ctx, "g", sampleDay(2))
	require.ErrorIs(t, err, journey.ErrOutOfOrder)
}

func TestSaveDailyWeather_CannotPreemptAdvance(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Summer, "reikland")
	require.NoError(t, err)

	err = s.SaveDailyWeather(ctx, "g", sampleDay(1))
	require.ErrorIs(t, err, journey.ErrOutOfOrder)
	assert.Contains(t, err.Error(), "has not been generated")

	_, err = s.DailyWeather(ctx, "g", 1)
	require.ErrorIs(t, err, journey.ErrNotFound)
	j, err := s.Journey(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 1, j.CurrentDay)

	generated := sampleDay(1)
	generated.Condition = weather.ConditionFair
	generated.ConditionRoll = 3
	require.NoError(t, s.AdvanceDay(ctx, "g", generated))

	got, err := s.DailyWeather(ctx, "g", 1)
	require.NoError(t, err)
	assert.Equal(t, generated, got)
}

func TestSaveDailyWeather_RejectsInvalidRecord(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Spring, "nordland")
	require.NoError(t, err)
	require.NoError(t, s.AdvanceDay(ctx, "g", sampleDay(1)))

	rec := sampleDay(1)
	rec.HeatWave = weather.EventState{Remaining: 4, Total: 12}
	require.ErrorIs(t, s.SaveDailyWeather(ctx, "g", rec), journey.ErrInvalidRange)

	rec = sampleDay(1)
	rec.ColdFront = weather.EventState{Remaining: 4, Total: 3}
	require.ErrorIs(t, s.SaveDailyWeather(ctx, "g", rec), journey.ErrInvalidRange)
}

func TestDailyWeather_NotFound(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.DailyWeather(ctx, "ghost", 1)
	require.ErrorIs(t, err, journey.ErrNotFound)
	assert.Contains(t, err.Error(), "start one first")

	_, err = s.StartJourney(ctx, "g", weather.Spring, "nordland")
	require.NoError(t, err)
	_, err = s.DailyWeather(ctx, "g", 3)
	require.ErrorIs(t, err, journey.ErrNotFound)
	assert.Contains(t, err.Error(), "day 3")
}

func TestAdvanceDay_MovesCounter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Autumn, "stirland")
	require.NoError(t, err)

	rec := sampleDay(1)
	require.NoError(t, s.AdvanceDay(ctx, "g", rec))

	j, err := s.Journey(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 2, j.CurrentDay)

	err = s.AdvanceDay(ctx, "g", sampleDay(1))
	require.ErrorIs(t, err, journey.ErrOutOfOrder)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Autumn, "stirland")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InTx(ctx, "g", func(ctx context.Context, tx *journey.DayTx) error {
		require.NoError(t, tx.AdvanceDay(ctx, sampleDay(1)))
		require.NoError(t, tx.ResetCooldown(ctx, weather.KindColdFront))
		return boom
	})
	require.ErrorIs(t, err, boom)

	j, err := s.Journey(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 1, j.CurrentDay)
	assert.Equal(t, weather.CooldownSentinel, j.Cooldowns.ColdFront)
	_, err = s.DailyWeather(ctx, "g", 1)
	require.ErrorIs(t, err, journey.ErrNotFound)
}

func TestInTx_NoJourney(t *testing.T) {
	s := newStore(t)

	err := s.InTx(context.Background(), "ghost", func(context.Context, *journey.DayTx) error {
		t.Fatal("fn must not run without a journey")
		return nil
	})
	require.ErrorIs(t, err, journey.ErrNotFound)
}

func TestCooldownAccessors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Winter, "kislev")
	require.NoError(t, err)

	require.NoError(t, s.ResetCooldown(ctx, "g", weather.KindHeatWave))
	v, err := s.IncrementCooldown(ctx, "g", weather.KindHeatWave)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = s.Cooldown(ctx, "g", weather.KindHeatWave)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = s.Cooldown(ctx, "g", weather.KindColdFront)
	require.NoError(t, err)
	assert.Equal(t, weather.CooldownSentinel, v)
}

func TestConfigureStage(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Winter, "kislev")
	require.NoError(t, err)

	j, err := s.ConfigureStage(ctx, "g", 7, journey.DisplayDetailed)
	require.NoError(t, err)
	assert.Equal(t, 7, j.StageDuration)

	j, err = s.Journey(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 7, j.StageDuration)
	assert.Equal(t, journey.DisplayDetailed, j.DisplayMode)

	_, err = s.ConfigureStage(ctx, "g", 11, journey.DisplaySimple)
	require.ErrorIs(t, err, journey.ErrInvalidRange)
	_, err = s.ConfigureStage(ctx, "g", 0, journey.DisplaySimple)
	require.ErrorIs(t, err, journey.ErrInvalidRange)
}

func TestEndJourney_Cascades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Summer, "averland")
	require.NoError(t, err)
	require.NoError(t, s.AdvanceDay(ctx, "g", sampleDay(1)))

	require.NoError(t, s.EndJourney(ctx, "g"))

	_, err = s.Journey(ctx, "g")
	require.ErrorIs(t, err, journey.ErrNotFound)
	require.ErrorIs(t, s.EndJourney(ctx, "g"), journey.ErrNotFound)

	// A new journey for the group starts clean.
	_, err = s.StartJourney(ctx, "g", weather.Summer, "averland")
	require.NoError(t, err)
	_, err = s.DailyWeather(ctx, "g", 1)
	require.ErrorIs(t, err, journey.ErrNotFound)
}

func TestListDailyWeather(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.StartJourney(ctx, "g", weather.Summer, "averland")
	require.NoError(t, err)
	for day := 1; day <= 5; day++ {
		require.NoError(t, s.AdvanceDay(ctx, "g", sampleDay(day)))
	}

	days, err := s.ListDailyWeather(ctx, "g", 2, 4)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, 2, days[0].Day)
	assert.Equal(t, 4, days[2].Day)

	_, err = s.ListDailyWeather(ctx, "g", 4, 2)
	require.ErrorIs(t, err, journey.ErrInvalidRange)

	_, err = s.ListDailyWeather(ctx, "ghost", 1, 2)
	require.ErrorIs(t, err, journey.ErrNotFound)
}

func TestGroupsAreIndependent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	groups := []string{"a", "b", "c", "d"}
	for _, g := range groups {
		_, err := s.StartJourney(ctx, g, weather.Spring, "reikland")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(groups)*5)
	for _, g := range groups {
		wg.Add(1)
		go func(g string) {
			defer wg.Done()
			for day := 1; day <= 5; day++ {
				if err := s.AdvanceDay(ctx, g, sampleDay(day)); err != nil {
					errs <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, g := range groups {
		j, err := s.Journey(ctx, g)
		require.NoError(t, err)
		assert.Equal(t, 6, j.CurrentDay, g)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	s, path := openStore(t)
	require.NoError(t, s.Close())

	again, err := sqlitestore.Open(context.Background(), path)
	require.NoError(t, err)
	defer again.Close()

	db := sqlx.MustOpen("sqlite", path)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 4, n)
}

func TestOpen_UnknownMigrationConflicts(t *testing.T) {
	s, path := openStore(t)
	require.NoError(t, s.Close())

	db := sqlx.MustOpen("sqlite", path)
	_, err := db.Exec(`INSERT INTO schema_migrations (name, checksum, applied_at) VALUES ('999_future.sql', 'x', 0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = sqlitestore.Open(context.Background(), path)
	require.ErrorIs(t, err, journey.ErrMigrationConflict)
}

// TestOpen_UpgradesLegacyLayout builds a database the way the first schema
// left it, with no ledger, no totals and no cooldowns, and opens it.
func TestOpen_UpgradesLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db := sqlx.MustOpen("sqlite", path)
	db.MustExec(`
		CREATE TABLE journeys (
			group_id TEXT PRIMARY KEY, journey_id TEXT NOT NULL UNIQUE,
			current_day INTEGER NOT NULL DEFAULT 1, season TEXT NOT NULL, province TEXT NOT NULL,
			stage_duration INTEGER NOT NULL DEFAULT 3, display_mode TEXT NOT NULL DEFAULT 'simple',
			created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL)`)
	db.MustExec(`
		CREATE TABLE daily_weather (
			group_id TEXT NOT NULL REFERENCES journeys (group_id) ON DELETE CASCADE,
			day INTEGER NOT NULL, wind_timeline TEXT NOT NULL, weather_type TEXT NOT NULL,
			weather_roll INTEGER NOT NULL, temperature_actual INTEGER NOT NULL,
			temperature_category TEXT NOT NULL, temperature_roll INTEGER NOT NULL,
			cold_front_remaining INTEGER NOT NULL DEFAULT 0, heat_wave_remaining INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (group_id, day))`)
	db.MustExec(`INSERT INTO journeys (group_id, journey_id, current_day, season, province, created_at, updated_at)
		VALUES ('old', '6f1c2a9e-4a53-4a4e-9f0e-3e0c1d8d2b11', 3, 'summer', 'reikland', 0, 0)`)
	wind := `[{"time":"dawn","strength":"calm","direction":"tailwind","changed":false},` +
		`{"time":"midday","strength":"calm","direction":"tailwind","changed":false},` +
		`{"time":"dusk","strength":"calm","direction":"tailwind","changed":false},` +
		`{"time":"midnight","strength":"calm","direction":"tailwind","changed":false}]`
	db.MustExec(`INSERT INTO daily_weather VALUES ('old', 1, ?, 'fair', 10, 11, 'very_low', 1, 3, 0)`, wind)
	db.MustExec(`INSERT INTO daily_weather VALUES ('old', 2, ?, 'fair', 10, 21, 'average', 50, 0, 0)`, wind)
	require.NoError(t, db.Close())

	st, err := sqlitestore.Open(context.Background(), path)
	require.NoError(t, err)
	defer st.Close()
	s := journey.NewStore(st)
	ctx := context.Background()

	j, err := s.Journey(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, weather.ExpiredCooldowns(), j.Cooldowns)

	day1, err := s.DailyWeather(ctx, "old", 1)
	require.NoError(t, err)
	assert.Equal(t, weather.EventState{Remaining: 3, Total: 3}, day1.ColdFront)
	assert.True(t, day1.LegacyTotals)
	assert.Zero(t, day1.Cooldowns.ColdFront, "an active event has no cooldown")
	assert.Equal(t, weather.CooldownSentinel, day1.Cooldowns.HeatWave)

	day2, err := s.DailyWeather(ctx, "old", 2)
	require.NoError(t, err)
	assert.Equal(t, weather.EventState{}, day2.ColdFront)
	assert.False(t, day2.LegacyTotals)

	// Reopening the upgraded file is a no-op.
	require.NoError(t, st.Close())
	st2, err := sqlitestore.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, st2.Close())
}
