package geom

import "golang.org/x/image/math/f64"

// Transform is a 2D affine transform. The zero value is not usable; start
// from Identity.
//
// The underlying matrix is laid out as f64.Aff3:
//
//	x' = m[0]*x + m[1]*y + m[2]
//	y' = m[3]*x + m[4]*y + m[5]
type Transform struct {
	m f64.Aff3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{m: f64.Aff3{1, 0, 0, 0, 1, 0}}
}

// FromAff3 wraps an existing matrix.
func FromAff3(m f64.Aff3) Transform {
	return Transform{m: m}
}

// Aff3 returns the underlying matrix.
func (t Transform) Aff3() f64.Aff3 {
	return t.m
}

// Translation returns a transform that moves points by d.
func Translation(d Vec2) Transform {
	return Transform{m: f64.Aff3{1, 0, d.X, 0, 1, d.Y}}
}

// Scaling returns a transform that scales points by s around the origin.
func Scaling(s Vec2) Transform {
	return Transform{m: f64.Aff3{s.X, 0, 0, 0, s.Y, 0}}
}

// Then returns the transform that applies t first and then o.
func (t Transform) Then(o Transform) Transform {
	a, b := o.m, t.m
	return Transform{m: f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}}
}

// Map applies t to p.
func (t Transform) Map(p Vec2) Vec2 {
	return Vec2{
		X: t.m[0]*p.X + t.m[1]*p.Y + t.m[2],
		Y: t.m[3]*p.X + t.m[4]*p.Y + t.m[5],
	}
}

// MapRect maps the corners of r and returns their bounding box.
func (t Transform) MapRect(r Rect) Rect {
	corners := [4]Vec2{r.Min, V(r.Max.X, r.Min.Y), V(r.Min.X, r.Max.Y), r.Max}
	out := Rect{Min: t.Map(corners[0]), Max: t.Map(corners[0])}
	for _, c := range corners[1:] {
		p := t.Map(c)
		out.Min.X = min(out.Min.X, p.X)
		out.Min.Y = min(out.Min.Y, p.Y)
		out.Max.X = max(out.Max.X, p.X)
		out.Max.Y = max(out.Max.Y, p.Y)
	}
	return out
}

// Invert returns the inverse of t. A singular transform inverts to the
// identity and ok is false.
func (t Transform) Invert() (inv Transform, ok bool) {
	m := t.m
	det := m[0]*m[4] - m[1]*m[3]
	if fuzzyIsNull(det) {
		return Identity(), false
	}
	id := 1 / det
	return Transform{m: f64.Aff3{
		m[4] * id,
		-m[1] * id,
		(m[1]*m[5] - m[4]*m[2]) * id,
		-m[3] * id,
		m[0] * id,
		(m[3]*m[2] - m[0]*m[5]) * id,
	}}, true
}
