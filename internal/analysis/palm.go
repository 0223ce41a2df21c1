package analysis

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/closestbody/internal/detector"
)

// Palm estimation defaults.
const (
	DefaultPalmRatio        = 0.5
	DefaultForearmThreshold = 10
)

// Anchor is a point a region is centred on. Present is false when the
// point could not be derived from the skeleton.
type Anchor struct {
	Present bool    `json:"present"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// PalmConfig controls how far past the wrist the palm is placed.
type PalmConfig struct {
	// Ratio scales the forearm vector added to the wrist.
	Ratio float64
	// ForearmThreshold is the forearm length above which the extended-arm scaling applies.
	ForearmThreshold float64
}

// EstimatePalm extrapolates the palm centre along the elbow→wrist direction.
//
// A clearly extended forearm (longer than the threshold) is scaled by
// 0.75·Ratio horizontally and 1.5·Ratio vertically; a short, foreshortened
// one is scaled by Ratio on both axes.
func EstimatePalm(wrist, elbow detector.Keypoint, cfg PalmConfig) Anchor {
	if !wrist.PresentXY() || !elbow.PresentXY() {
		return Anchor{}
	}

	w := wrist.Vec()
	forearm := r2.Sub(w, elbow.Vec())

	var offset r2.Vec
	if r2.Norm(forearm) > cfg.ForearmThreshold {
		offset = r2.Vec{
			X: forearm.X * (0.75 * cfg.Ratio),
			Y: forearm.Y * (1.5 * cfg.Ratio),
		}
	} else {
		offset = r2.Scale(cfg.Ratio, forearm)
	}

	p := r2.Add(w, offset)
	return Anchor{Present: true, X: p.X, Y: p.Y}
}

// JointAnchor anchors a region directly on a joint.
func JointAnchor(k detector.Keypoint) Anchor {
	if !k.PresentXY() {
		return Anchor{}
	}
	return Anchor{Present: true, X: float64(k.X), Y: float64(k.Y)}
}
