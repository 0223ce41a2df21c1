package analysis

import (
	"errors"
	"fmt"

	"github.com/ayusman/closestbody/internal/detector"
)

// DefaultRegionSize is the reference crop size for hands and head.
var DefaultRegionSize = Size{Width: 64, Height: 64}

// Config holds the analysis parameters.
type Config struct {
	HandSize              Size
	HeadSize              Size
	PalmRatio             float64
	ForearmThreshold      float64
	CalibrationLimbLength float64
	Tolerance             float64
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		HandSize:              DefaultRegionSize,
		HeadSize:              DefaultRegionSize,
		PalmRatio:             DefaultPalmRatio,
		ForearmThreshold:      DefaultForearmThreshold,
		CalibrationLimbLength: DefaultCalibrationLimbLength,
		Tolerance:             DefaultTolerance,
	}
}

// Validate checks that the configuration can produce well-formed regions.
func (c Config) Validate() error {
	var errs []error
	sizes := []struct {
		name string
		Size
	}{{"hand", c.HandSize}, {"head", c.HeadSize}}
	for _, s := range sizes {
		name := s.name
		if s.Width <= 0 || s.Height <= 0 {
			errs = append(errs, fmt.Errorf("%s region size %dx%d must be positive", name, s.Width, s.Height))
			continue
		}
		// the box spans anchor±size/2, which only measures size when size is even
		if s.Width%2 != 0 || s.Height%2 != 0 {
			errs = append(errs, fmt.Errorf("%s region size %dx%d must be even", name, s.Width, s.Height))
		}
	}
	if c.PalmRatio < 0 {
		errs = append(errs, fmt.Errorf("palm ratio %v must not be negative", c.PalmRatio))
	}
	if c.Tolerance < 0 || c.Tolerance >= 1 {
		errs = append(errs, fmt.Errorf("tolerance %v must be in [0, 1)", c.Tolerance))
	}
	return errors.Join(errs...)
}

// Frame is one completed frame's input to the analyzer.
type Frame struct {
	Skeletons []detector.Skeleton
	Width     int
	Height    int
}

// Result is the per-frame output handed to downstream consumers.
type Result struct {
	Engaged       bool              `json:"engaged"`
	SelectedIndex int               `json:"selected_index"`
	PersonCount   int               `json:"person_count"`
	Skeleton      detector.Skeleton `json:"skeleton"`
	LeftHand      Region            `json:"left_hand"`
	RightHand     Region            `json:"right_hand"`
	Head          Region            `json:"head"`
}

// Regions returns the regions in output order: left hand, right hand, head.
func (r Result) Regions() [3]Region {
	return [3]Region{r.LeftHand, r.RightHand, r.Head}
}

// Analyzer runs the per-frame analysis with a fixed configuration.
// It holds no per-frame state and is safe for concurrent use.
type Analyzer struct {
	config Config
}

// New creates an Analyzer after validating the configuration.
func New(config Config) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	return &Analyzer{config: config}, nil
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// Analyze selects the engaged person and derives the three regions.
//
// The selected skeleton is used even when nobody is engaged. With an empty
// batch the skeleton is all zeros and every region is absent.
func (a *Analyzer) Analyze(f Frame) Result {
	metrics := EvaluateCandidates(f.Skeletons, f.Width)
	eng := SelectEngaged(metrics, a.config.CalibrationLimbLength)

	var s detector.Skeleton
	if eng.SelectedIndex < len(f.Skeletons) {
		s = f.Skeletons[eng.SelectedIndex]
	}

	palm := PalmConfig{Ratio: a.config.PalmRatio, ForearmThreshold: a.config.ForearmThreshold}
	left := EstimatePalm(s[detector.LWrist], s[detector.LElbow], palm)
	right := EstimatePalm(s[detector.RWrist], s[detector.RElbow], palm)
	head := JointAnchor(s[detector.Nose])

	tol := a.config.Tolerance
	return Result{
		Engaged:       eng.Engaged,
		SelectedIndex: eng.SelectedIndex,
		PersonCount:   len(f.Skeletons),
		Skeleton:      s,
		LeftHand:      ClampRegion(left, LeftHand, a.config.HandSize, f.Width, f.Height, tol),
		RightHand:     ClampRegion(right, RightHand, a.config.HandSize, f.Width, f.Height, tol),
		Head:          ClampRegion(head, Head, a.config.HeadSize, f.Width, f.Height, tol),
	}
}
