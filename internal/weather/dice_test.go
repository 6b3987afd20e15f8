package weather_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/trailweather/internal/weather"
)

func TestSeededDice_Reproducible(t *testing.T) {
	a, b := weather.NewDice(7), weather.NewDice(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Roll(100), b.Roll(100))
	}
}

func TestSeededDice_Range(t *testing.T) {
	d := weather.NewDice(1)
	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		v := d.Roll(10)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 10)
		seen[v] = true
	}
	assert.Len(t, seen, 10, "every face should come up")
	assert.Equal(t, 1, d.Roll(0))
}

func TestNewSeed(t *testing.T) {
	a, err := weather.NewSeed()
	require.NoError(t, err)
	b, err := weather.NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
