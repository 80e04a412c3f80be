// -- internal/humanoid/humanoid.go --
// Package humanoid perturbs the timing and geometry of synthetic gestures so that
// consecutive inputs are never bit-identical or perfectly periodic. Randomization is
// additive: a tap still lands within a few pixels of its calibrated target.
package humanoid

import (
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"github.com/xkilldash9x/bidrunner/internal/config"
)

// Duration variation presets.
const (
	tapVariation   = 0.10
	tapFloor       = 50 * time.Millisecond
	swipeVariation = 0.15
	swipeFloor     = 100 * time.Millisecond
	loopVariation  = 0.20
	loopFloor      = 100 * time.Millisecond

	minPathPoints = 2
)

// Humanoid is the randomization engine for one session. It is safe for concurrent use.
type Humanoid struct {
	cfg config.RandomizationConfig

	mu  sync.Mutex
	rng *rand.Rand

	// Tap drift is sampled from smooth noise so successive taps wander instead of
	// jumping independently.
	noiseX    *perlin.Perlin
	noiseY    *perlin.Perlin
	noiseTime float64
}

// New creates a Humanoid for cfg. A nil rng seeds a new source from the clock;
// tests pass a seeded source for reproducible output.
func New(cfg config.RandomizationConfig, rng *rand.Rand) *Humanoid {
	seed := time.Now().UnixNano()
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	} else {
		seed = rng.Int63()
	}

	// Standard Perlin parameters.
	alpha, beta, n := 2.0, 2.0, int32(3)

	return &Humanoid{
		cfg:    cfg,
		rng:    rng,
		noiseX: perlin.NewPerlin(alpha, beta, n, seed),
		noiseY: perlin.NewPerlin(alpha, beta, n, seed+1),
	}
}

// Config returns the randomization profile the engine was built with.
func (h *Humanoid) Config() config.RandomizationConfig {
	return h.cfg
}

func (h *Humanoid) float64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

// uniform returns a value in [lo, hi].
func (h *Humanoid) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + h.float64()*(hi-lo)
}
