package analysis

import (
	"fmt"
	"image"
	"math"
)

// DefaultTolerance is the fraction of a region's own size that may hang
// past a frame edge and still be recovered by shifting.
const DefaultTolerance = 0.45

// Label identifies which body part a region covers.
type Label string

const (
	LeftHand  Label = "left_hand"
	RightHand Label = "right_hand"
	Head      Label = "head"
)

// Description returns the label in the words used by the text output.
func (l Label) Description() string {
	switch l {
	case LeftHand:
		return "left hand"
	case RightHand:
		return "right hand"
	case Head:
		return "head"
	}
	return string(l)
}

// Size is a region's fixed width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Region is a crop window inside the frame. When Present, Width and
// Height always equal the configured size.
//
// Requested is the box centred on the anchor before any shifting. It is
// set even for absent regions, taking a missing anchor as the origin.
type Region struct {
	Label     Label           `json:"label"`
	Present   bool            `json:"present"`
	X0        int             `json:"x0"`
	Y0        int             `json:"y0"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Requested image.Rectangle `json:"requested"`
}

// Rect returns the region as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X0+r.Width, r.Y0+r.Height)
}

// span is a half-open interval on one axis.
type span struct {
	lo, hi int
}

// shiftLow moves the span up to start at 0 when it starts before it.
func (s span) shiftLow(size int) span {
	if s.lo < 0 {
		return span{lo: 0, hi: size}
	}
	return s
}

// shiftHigh moves the span down to end at limit when it ends past it.
func (s span) shiftHigh(limit, size int) span {
	if s.hi > limit {
		return span{lo: limit - size, hi: limit}
	}
	return s
}

// withinTolerance reports whether the span overhangs [0, limit) by less
// than the allowed margin on either side.
func (s span) withinTolerance(limit int, margin float64) bool {
	return float64(s.lo) >= -margin && float64(s.hi) < float64(limit)+margin
}

// coordinate truncates v for box arithmetic. Values that are not finite or
// lie further than limit+size from the frame are reported as out of range
// and replaced by the nearest in-range value (0 for NaN).
func coordinate(v float64, limit, size int) (int, bool) {
	bound := float64(limit + size)
	switch {
	case math.IsNaN(v):
		return 0, false
	case v < -bound:
		return int(-bound), false
	case v > 2*bound:
		return int(2 * bound), false
	}
	return int(v), true
}

// ClampRegion centres a region of the given size on the anchor and shifts
// it, never resizes it, back inside a frameWidth×frameHeight frame.
//
// The region is absent when the anchor is absent or out of range, when the
// region is larger than the frame, or when the unshifted box overhangs any
// edge by tolerance·size or more. Edges are fixed in the order top, left,
// bottom, right; each step only moves the opposite edge.
func ClampRegion(anchor Anchor, label Label, size Size, frameWidth, frameHeight int, tolerance float64) Region {
	ax, okX := coordinate(anchor.X, frameWidth, size.Width)
	ay, okY := coordinate(anchor.Y, frameHeight, size.Height)
	x := span{lo: ax - size.Width/2, hi: ax + size.Width/2}
	y := span{lo: ay - size.Height/2, hi: ay + size.Height/2}

	r := Region{Label: label, Requested: image.Rect(x.lo, y.lo, x.hi, y.hi)}
	if !anchor.Present || !okX || !okY {
		return r
	}
	if size.Width > frameWidth || size.Height > frameHeight {
		return r
	}

	if !y.withinTolerance(frameHeight, tolerance*float64(size.Height)) ||
		!x.withinTolerance(frameWidth, tolerance*float64(size.Width)) {
		return r
	}

	y = y.shiftLow(size.Height)
	x = x.shiftLow(size.Width)
	y = y.shiftHigh(frameHeight, size.Height)
	x = x.shiftHigh(frameWidth, size.Width)

	if x.hi-x.lo != size.Width || y.hi-y.lo != size.Height {
		panic(fmt.Sprintf("analysis: %s region is %dx%d after clamping, want %dx%d",
			label, x.hi-x.lo, y.hi-y.lo, size.Width, size.Height))
	}

	r.Present = true
	r.X0, r.Y0 = x.lo, y.lo
	r.Width, r.Height = size.Width, size.Height
	return r
}
