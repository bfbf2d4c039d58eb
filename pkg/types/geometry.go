package types

import "math"

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by dx, dy.
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// BottomCenter returns the midpoint of the bottom edge of r.
func (r Rect) BottomCenter() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height}
}

// Contains reports whether p lies inside r grown by tolerance on every side.
func (r Rect) Contains(p Point, tolerance float64) bool {
	return p.X >= r.X-tolerance && p.X <= r.X+r.Width+tolerance &&
		p.Y >= r.Y-tolerance && p.Y <= r.Y+r.Height+tolerance
}
