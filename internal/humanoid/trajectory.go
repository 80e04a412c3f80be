package humanoid

import (
	"image"
	"math"
)

// JitterPath returns PathPoints samples from start to end. With path randomization
// enabled the samples follow a cubic Bezier whose control points sit within
// PathJitterPixels of the midpoint; otherwise they are evenly spaced on the segment.
// The first and last samples are always exactly start and end.
func (h *Humanoid) JitterPath(start, end image.Point) []image.Point {
	n := max(h.cfg.PathPoints, minPathPoints)
	p0, p3 := FromPoint(start), FromPoint(end)

	if !h.cfg.PathRandomizationEnabled || h.cfg.PathJitterPixels <= 0 {
		return sample(n, func(t float64) Vector2D { return p0.Lerp(p3, t) }, start, end)
	}

	mid := p0.Lerp(p3, 0.5)
	p1 := mid.Add(h.discOffset(h.cfg.PathJitterPixels))
	p2 := mid.Add(h.discOffset(h.cfg.PathJitterPixels))

	return sample(n, func(t float64) Vector2D { return cubicBezier(p0, p1, p2, p3, t) }, start, end)
}

func sample(n int, at func(t float64) Vector2D, start, end image.Point) []image.Point {
	path := make([]image.Point, n)
	for i := range path {
		path[i] = at(float64(i) / float64(n-1)).Point()
	}
	path[0], path[n-1] = start, end
	return path
}

func cubicBezier(p0, p1, p2, p3 Vector2D, t float64) Vector2D {
	omt := 1.0 - t
	omt2 := omt * omt
	omt3 := omt2 * omt
	t2 := t * t
	t3 := t2 * t
	return p0.Mul(omt3).Add(p1.Mul(3 * omt2 * t)).Add(p2.Mul(3 * omt * t2)).Add(p3.Mul(t3))
}

// discOffset draws a random displacement of length at most radius.
func (h *Humanoid) discOffset(radius float64) Vector2D {
	h.mu.Lock()
	angle := h.rng.Float64() * 2 * math.Pi
	r := h.rng.Float64() * radius
	h.mu.Unlock()
	return Vector2D{X: math.Cos(angle) * r, Y: math.Sin(angle) * r}
}

// JitterSwipe keeps the swipe start and stretches or shortens the swipe vector by up
// to SwipeDistanceJitterPercent.
func (h *Humanoid) JitterSwipe(start, end image.Point) (image.Point, image.Point) {
	pct := h.cfg.SwipeDistanceJitterPercent / 100
	if pct <= 0 {
		return start, end
	}
	factor := 1 + h.uniform(-pct, pct)
	s := FromPoint(start)
	return start, s.Add(FromPoint(end).Sub(s).Mul(factor)).Point()
}

// JitterTap displaces a tap by at most TapJitterPixels. The displacement drifts
// smoothly from one tap to the next.
func (h *Humanoid) JitterTap(p image.Point) image.Point {
	radius := h.cfg.TapJitterPixels
	if radius <= 0 {
		return p
	}

	h.mu.Lock()
	// Perlin noise is zero on integer lattice points; keep the step fractional.
	h.noiseTime += 0.37 + h.rng.Float64()*0.2
	t := h.noiseTime
	h.mu.Unlock()

	drift := Vector2D{
		X: clampUnit(h.noiseX.Noise1D(t)) * radius,
		Y: clampUnit(h.noiseY.Noise1D(t)) * radius,
	}
	drift = drift.Limit(radius)
	// Truncating toward zero keeps the pixel offset inside the radius.
	return p.Add(image.Pt(int(math.Trunc(drift.X)), int(math.Trunc(drift.Y))))
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
