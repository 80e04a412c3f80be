// Filename: internal/humanoid/humanoid_test.go
package humanoid

import (
	"context"
	"image"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bidrunner/internal/config"
)

// distToSegment is the distance from p to the segment a-b.
func distToSegment(p, a, b Vector2D) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Sub(a).Mag()
	}
	ap := p.Sub(a)
	t := math.Max(0, math.Min(1, (ap.X*ab.X+ap.Y*ab.Y)/lenSq))
	return p.Sub(a.Lerp(b, t)).Mag()
}

func newTestHumanoid(mutate func(c *config.RandomizationConfig)) *Humanoid {
	cfg := config.DefaultRandomizationConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, rand.New(rand.NewSource(42)))
}

// -- Timing --

func TestJitterDelayStaysInRange(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) {
		c.MinDelay = 50 * time.Millisecond
		c.MaxDelay = 75 * time.Millisecond
	})
	seen := map[time.Duration]bool{}
	for i := 0; i < 2000; i++ {
		d := h.JitterDelay()
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
		require.LessOrEqual(t, d, 75*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 100, "delays should not repeat periodically")
}

func TestJitterDelayDegenerateRange(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) {
		c.MinDelay = 90 * time.Millisecond
		c.MaxDelay = 90 * time.Millisecond
	})
	assert.Equal(t, 90*time.Millisecond, h.JitterDelay())
}

func TestJitterDurationFloorAndMean(t *testing.T) {
	h := newTestHumanoid(nil)

	const n = 5000
	base := 400 * time.Millisecond
	var sum time.Duration
	for i := 0; i < n; i++ {
		d := h.JitterDuration(base, 0.2, 100*time.Millisecond)
		require.GreaterOrEqual(t, d, 320*time.Millisecond)
		require.LessOrEqual(t, d, 480*time.Millisecond)
		sum += d
	}
	mean := sum / n
	assert.InDelta(t, float64(base), float64(mean), float64(5*time.Millisecond), "expected value is the base")

	for i := 0; i < 200; i++ {
		require.GreaterOrEqual(t, h.JitterDuration(20*time.Millisecond, 0.5, 50*time.Millisecond), 50*time.Millisecond)
	}
}

func TestPresetDurations(t *testing.T) {
	h := newTestHumanoid(nil)
	for i := 0; i < 500; i++ {
		tap := h.TapDuration(100 * time.Millisecond)
		require.True(t, tap >= 90*time.Millisecond && tap <= 110*time.Millisecond, "tap %v", tap)

		swipe := h.SwipeDuration(400 * time.Millisecond)
		require.True(t, swipe >= 340*time.Millisecond && swipe <= 460*time.Millisecond, "swipe %v", swipe)

		loop := h.LoopDelay(500 * time.Millisecond)
		require.True(t, loop >= 400*time.Millisecond && loop <= 600*time.Millisecond, "loop %v", loop)
	}
	assert.Equal(t, tapFloor, h.TapDuration(0))
	assert.Equal(t, swipeFloor, h.SwipeDuration(10*time.Millisecond))
	assert.Equal(t, loopFloor, h.LoopDelay(0))
}

// -- Paths --

func TestJitterPathLinearWhenDisabled(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) {
		c.PathRandomizationEnabled = false
		c.PathPoints = 5
	})
	path := h.JitterPath(image.Pt(0, 0), image.Pt(100, 200))
	assert.Equal(t, []image.Point{
		{0, 0}, {25, 50}, {50, 100}, {75, 150}, {100, 200},
	}, path)
}

func TestJitterPathBezierStaysNearSegment(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) {
		c.PathJitterPixels = 15
		c.PathPoints = 30
	})
	start, end := image.Pt(540, 1900), image.Pt(540, 600)

	for run := 0; run < 50; run++ {
		path := h.JitterPath(start, end)
		require.Len(t, path, 30)
		assert.Equal(t, start, path[0])
		assert.Equal(t, end, path[len(path)-1])
		for _, p := range path {
			d := distToSegment(FromPoint(p), FromPoint(start), FromPoint(end))
			// Half a pixel of rounding on each axis.
			require.LessOrEqual(t, d, 15+0.71, "point %v strays %.2fpx", p, d)
		}
	}
}

func TestJitterPathVaries(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) { c.PathJitterPixels = 40 })
	a := h.JitterPath(image.Pt(0, 0), image.Pt(0, 1000))
	b := h.JitterPath(image.Pt(0, 0), image.Pt(0, 1000))
	assert.NotEqual(t, a, b)
}

func TestJitterPathMinimumPoints(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) { c.PathPoints = 0 })
	path := h.JitterPath(image.Pt(1, 1), image.Pt(9, 9))
	assert.Equal(t, []image.Point{{1, 1}, {9, 9}}, path)
}

func TestJitterSwipe(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) { c.SwipeDistanceJitterPercent = 10 })
	start, end := image.Pt(500, 1800), image.Pt(500, 800)

	for i := 0; i < 500; i++ {
		s, e := h.JitterSwipe(start, end)
		require.Equal(t, start, s)
		require.Equal(t, 500, e.X, "direction is preserved")
		length := s.Y - e.Y
		require.True(t, length >= 900 && length <= 1100, "length %d", length)
	}

	off := newTestHumanoid(func(c *config.RandomizationConfig) { c.SwipeDistanceJitterPercent = 0 })
	s, e := off.JitterSwipe(start, end)
	assert.Equal(t, start, s)
	assert.Equal(t, end, e)
}

func TestJitterTap(t *testing.T) {
	h := newTestHumanoid(func(c *config.RandomizationConfig) { c.TapJitterPixels = 4 })
	target := image.Pt(300, 700)
	for i := 0; i < 500; i++ {
		p := h.JitterTap(target)
		require.LessOrEqual(t, FromPoint(p).Sub(FromPoint(target)).Mag(), 4.0)
	}

	still := newTestHumanoid(func(c *config.RandomizationConfig) { c.TapJitterPixels = 0 })
	assert.Equal(t, target, still.JitterTap(target))
}

func TestSeededOutputIsReproducible(t *testing.T) {
	a := newTestHumanoid(nil)
	b := newTestHumanoid(nil)
	for i := 0; i < 20; i++ {
		require.Equal(t, a.JitterDelay(), b.JitterDelay())
		require.Equal(t, a.JitterPath(image.Pt(0, 0), image.Pt(300, 300)), b.JitterPath(image.Pt(0, 0), image.Pt(300, 300)))
		require.Equal(t, a.JitterTap(image.Pt(50, 50)), b.JitterTap(image.Pt(50, 50)))
	}
}

func TestConcurrentUse(t *testing.T) {
	h := newTestHumanoid(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h.JitterDelay()
				h.JitterTap(image.Pt(10, 10))
				h.JitterPath(image.Pt(0, 0), image.Pt(100, 0))
			}
		}()
	}
	wg.Wait()
}

// -- Sleeper --

func TestContextSleeper(t *testing.T) {
	var s ContextSleeper
	require.NoError(t, s.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, s.Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.ErrorIs(t, s.Sleep(ctx, 0), context.Canceled)
}

func TestVectorHelpers(t *testing.T) {
	v := Vector2D{X: 3, Y: 4}
	assert.Equal(t, 5.0, v.Mag())
	limited := v.Limit(1)
	assert.InDelta(t, 0.6, limited.X, 1e-9)
	assert.InDelta(t, 0.8, limited.Y, 1e-9)
	assert.Equal(t, v, v.Limit(10))
	assert.Equal(t, image.Pt(2, -3), Vector2D{X: 1.6, Y: -2.5}.Point())
	assert.Equal(t, Vector2D{X: 5, Y: 2}, Vector2D{X: 0, Y: 4}.Lerp(Vector2D{X: 10}, 0.5))
}
