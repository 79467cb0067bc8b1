package render

import (
	"errors"
	"fmt"
)

// Size is a width/height pair, in pixels for design space and points for
// document space.
type Size struct {
	W float64
	H float64
}

// Point is a position inside a Size. Design space uses a top-left origin,
// document space a bottom-left origin; MapPoint converts between the two.
type Point struct {
	X float64
	Y float64
}

// DefaultSourceSize is assumed when a template was stored without recorded
// pixel dimensions. It matches the designer's default canvas.
var DefaultSourceSize = Size{W: 900, H: 636}

// ErrZeroSourceSize flags a template whose recorded dimensions are unusable.
// Mapping still proceeds against DefaultSourceSize, but the caller should
// surface this as a configuration problem rather than render silently.
var ErrZeroSourceSize = errors.New("template source size is zero or unknown")

// SafeSource returns a source size that is guaranteed usable for mapping.
// A zero or negative dimension yields DefaultSourceSize together with
// ErrZeroSourceSize.
func SafeSource(source Size) (Size, error) {
	if source.W <= 0 || source.H <= 0 {
		return DefaultSourceSize, fmt.Errorf("%w: got %.0fx%.0f", ErrZeroSourceSize, source.W, source.H)
	}
	return source, nil
}

// MapPoint converts a design-space position (top-left origin, captured
// against source) into document space (bottom-left origin, sized target).
// Each axis scales independently; the vertical axis is flipped. The flip is
// load-bearing: without it every field mirrors vertically on the page.
//
// No clamping happens here. The field invariant guarantees the input was
// captured within [0,W)x[0,H); callers that cannot trust their input must
// validate before mapping.
func MapPoint(p Point, source, target Size) Point {
	return Point{
		X: p.X / source.W * target.W,
		Y: target.H - p.Y/source.H*target.H,
	}
}

// InBounds reports whether p lies within [0,W)x[0,H) of size.
func InBounds(p Point, size Size) bool {
	return p.X >= 0 && p.X < size.W && p.Y >= 0 && p.Y < size.H
}
