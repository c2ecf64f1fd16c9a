// Package geom provides the floating point vector, rectangle and transform
// types used to describe input coordinates.
package geom

import (
	"fmt"
	"math"
)

// fuzzEpsilon is the relative tolerance used by Vec2.Eq.
const fuzzEpsilon = 1e-12

// Vec2 is a 2D float vector. It is used both for positions and for
// quantities like velocity and ellipse diameters.
type Vec2 struct {
	X, Y float64
}

// V is shorthand for Vec2{X: x, Y: y}.
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Mul returns v scaled by s.
func (v Vec2) Mul(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Div returns v divided by s.
func (v Vec2) Div(s float64) Vec2 {
	return Vec2{X: v.X / s, Y: v.Y / s}
}

// Length returns the euclidean length of v.
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// IsNull reports whether both components are (fuzzily) zero.
func (v Vec2) IsNull() bool {
	return fuzzyIsNull(v.X) && fuzzyIsNull(v.Y)
}

// Eq compares two vectors with a small relative tolerance, so positions
// that went through a transform round trip still compare equal.
func (v Vec2) Eq(o Vec2) bool {
	return fuzzyEq(v.X, o.X) && fuzzyEq(v.Y, o.Y)
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%g,%g)", v.X, v.Y)
}

func fuzzyIsNull(a float64) bool {
	return math.Abs(a) <= fuzzEpsilon
}

func fuzzyEq(a, b float64) bool {
	if fuzzyIsNull(a - b) {
		return true
	}
	return math.Abs(a-b) <= fuzzEpsilon*math.Max(math.Abs(a), math.Abs(b))
}

// Rect is an axis aligned rectangle. Max is exclusive for Contains.
type Rect struct {
	Min, Max Vec2
}

// R builds a rectangle from its top-left corner and size.
func R(x, y, w, h float64) Rect {
	return Rect{Min: V(x, y), Max: V(x+w, y+h)}
}

// RectFromCenter builds a rectangle of the given size centered on c.
func RectFromCenter(c, size Vec2) Rect {
	half := size.Mul(0.5)
	return Rect{Min: c.Sub(half), Max: c.Add(half)}
}

// Size returns the width and height of r.
func (r Rect) Size() Vec2 {
	return r.Max.Sub(r.Min)
}

// Center returns the midpoint of r.
func (r Rect) Center() Vec2 {
	return r.Min.Add(r.Max).Mul(0.5)
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Translate returns r moved by d.
func (r Rect) Translate(d Vec2) Rect {
	return Rect{Min: r.Min.Add(d), Max: r.Max.Add(d)}
}

// Union returns the smallest rectangle containing r and o. Empty rectangles
// are ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		Min: Vec2{min(r.Min.X, o.Min.X), min(r.Min.Y, o.Min.Y)},
		Max: Vec2{max(r.Max.X, o.Max.X), max(r.Max.Y, o.Max.Y)},
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%v-%v]", r.Min, r.Max)
}
