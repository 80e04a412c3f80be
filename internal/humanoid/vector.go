// internal/humanoid/vector.go
package humanoid

import (
	"image"
	"math"
)

// Vector2D is a point or displacement in screen pixels.
type Vector2D struct {
	X, Y float64
}

// FromPoint converts an integer screen point.
func FromPoint(p image.Point) Vector2D {
	return Vector2D{X: float64(p.X), Y: float64(p.Y)}
}

// Point rounds v to the nearest pixel.
func (v Vector2D) Point() image.Point {
	return image.Pt(int(math.Round(v.X)), int(math.Round(v.Y)))
}

// Add returns v + other.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns v - other.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mul scales v.
func (v Vector2D) Mul(scalar float64) Vector2D {
	return Vector2D{X: v.X * scalar, Y: v.Y * scalar}
}

// Mag is the length of v.
func (v Vector2D) Mag() float64 {
	return math.Hypot(v.X, v.Y)
}

// Limit truncates v to at most max in length.
func (v Vector2D) Limit(max float64) Vector2D {
	mag := v.Mag()
	if mag > max && mag > 0 {
		return v.Mul(max / mag)
	}
	return v
}

// Lerp interpolates between v (t=0) and other (t=1).
func (v Vector2D) Lerp(other Vector2D, t float64) Vector2D {
	return v.Add(other.Sub(v).Mul(t))
}
