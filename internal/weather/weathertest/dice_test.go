package weathertest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/trailweather/internal/weather"
	"github.com/neexbeast/trailweather/internal/weather/weathertest"
)

func TestScriptedDice_QueuesPerDie(t *testing.T) {
	d := weathertest.NewScriptedDice(nil).Queue(100, 1, 100).Queue(5, 3)

	assert.Equal(t, 3, d.Roll(5))
	assert.Equal(t, 1, d.Roll(100))
	assert.Equal(t, 1, d.Remaining(100))
	assert.Equal(t, 100, d.Roll(100))
	assert.Zero(t, d.Remaining(100))
}

func TestScriptedDice_Fallback(t *testing.T) {
	d := weathertest.NewScriptedDice(weather.NewDice(3))
	v := d.Roll(10)
	assert.True(t, v >= 1 && v <= 10)

	empty := weathertest.NewScriptedDice(nil)
	assert.Panics(t, func() { empty.Roll(6) })
}
