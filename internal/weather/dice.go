package weather

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// Dice is the uniform integer source every table draw goes through.
type Dice interface {
	// Roll returns a value in [1, sides].
	Roll(sides int) int
}

// SeededDice is a Dice backed by a PCG generator. It is safe for concurrent use.
type SeededDice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDice returns dice that produce the same sequence for the same seed.
func NewDice(seed int64) *SeededDice {
	// #nosec G404 -- table draws need reproducibility, not secrecy.
	return &SeededDice{rng: rand.New(rand.NewPCG(seedWord(seed, "a"), seedWord(seed, "b")))}
}

// NewSeed generates a seed from crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("reading random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Roll returns a value in [1, sides]. Sides below 1 are treated as 1.
func (d *SeededDice) Roll(sides int) int {
	if sides < 1 {
		sides = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.IntN(sides) + 1
}

func seedWord(seed int64, salt string) uint64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%s", seed, salt)
	return h.Sum64()
}
