// Package weathertest provides dice with scripted results for tests.
package weathertest

import (
	"fmt"
	"sync"

	"github.com/neexbeast/trailweather/internal/weather"
)

var _ weather.Dice = (*ScriptedDice)(nil)

// ScriptedDice replays queued values per die size and falls back to another
// Dice once a queue is empty. Without a fallback an empty queue panics.
type ScriptedDice struct {
	mu       sync.Mutex
	queues   map[int][]int
	fallback weather.Dice
}

// NewScriptedDice returns scripted dice. fallback may be nil.
func NewScriptedDice(fallback weather.Dice) *ScriptedDice {
	return &ScriptedDice{queues: make(map[int][]int), fallback: fallback}
}

// Queue appends values to be returned by future Roll(sides) calls, in order.
func (s *ScriptedDice) Queue(sides int, values ...int) *ScriptedDice {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[sides] = append(s.queues[sides], values...)
	return s
}

// Remaining reports how many scripted values are left for the die size.
func (s *ScriptedDice) Remaining(sides int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[sides])
}

// Roll implements weather.Dice.
func (s *ScriptedDice) Roll(sides int) int {
	s.mu.Lock()
	q := s.queues[sides]
	if len(q) > 0 {
		v := q[0]
		s.queues[sides] = q[1:]
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()

	if s.fallback == nil {
		panic(fmt.Sprintf("scripted dice: no d%d roll queued", sides))
	}
	return s.fallback.Roll(sides)
}
