package capture

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/detector"
)

var (
	// ErrRegionAbsent is returned when cropping a region that was not found.
	ErrRegionAbsent = errors.New("region is absent")
	// ErrRegionOutOfFrame is returned when a region does not lie inside the frame.
	ErrRegionOutOfFrame = errors.New("region lies outside the frame")
)

// MatSource serves region pixels from one captured frame. It does not own
// the Mat.
type MatSource struct {
	mat *gocv.Mat
}

// NewMatSource wraps an 8-bit three-channel frame.
func NewMatSource(mat *gocv.Mat) *MatSource {
	return &MatSource{mat: mat}
}

// Width returns the frame width in pixels.
func (s *MatSource) Width() int { return s.mat.Cols() }

// Height returns the frame height in pixels.
func (s *MatSource) Height() int { return s.mat.Rows() }

// Crop returns the region's pixels as Width·Height·3 bytes, row-major, in
// the frame's channel order (BGR for camera frames).
func (s *MatSource) Crop(r analysis.Region) ([]byte, error) {
	if !r.Present {
		return nil, fmt.Errorf("crop %s: %w", r.Label, ErrRegionAbsent)
	}
	if s.mat == nil || s.mat.Empty() {
		return nil, fmt.Errorf("crop %s: frame is empty", r.Label)
	}
	if t := s.mat.Type(); t != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("crop %s: unsupported frame type %v", r.Label, t)
	}

	rect := r.Rect()
	bounds := image.Rect(0, 0, s.mat.Cols(), s.mat.Rows())
	if !rect.In(bounds) {
		return nil, fmt.Errorf("crop %s %v from %v: %w", r.Label, rect, bounds, ErrRegionOutOfFrame)
	}

	roi := s.mat.Region(rect)
	defer roi.Close()

	// the ROI shares the parent's stride; clone it into a continuous buffer
	dense := roi.Clone()
	defer dense.Close()

	return dense.ToBytes(), nil
}

// bones are the joint pairs drawn on the preview.
var bones = [][2]int{
	{detector.Neck, detector.Nose},
	{detector.Neck, detector.RShoulder},
	{detector.Neck, detector.LShoulder},
	{detector.RShoulder, detector.RElbow},
	{detector.RElbow, detector.RWrist},
	{detector.LShoulder, detector.LElbow},
	{detector.LElbow, detector.LWrist},
	{detector.Neck, detector.RHip},
	{detector.Neck, detector.LHip},
	{detector.RHip, detector.RKnee},
	{detector.RKnee, detector.RAnkle},
	{detector.LHip, detector.LKnee},
	{detector.LKnee, detector.LAnkle},
}

var (
	engagedColor = color.RGBA{0, 220, 0, 0}
	idleColor    = color.RGBA{0, 200, 255, 0}
	regionColors = map[analysis.Label]color.RGBA{
		analysis.LeftHand:  {255, 128, 0, 0},
		analysis.RightHand: {255, 0, 255, 0},
		analysis.Head:      {0, 0, 255, 0},
	}
)

// Annotate returns a copy of frame with the selected skeleton and the
// present regions drawn on it. The caller must close the result.
func Annotate(frame *gocv.Mat, res analysis.Result) gocv.Mat {
	img := frame.Clone()
	if res.PersonCount == 0 {
		return img
	}

	skelColor := idleColor
	if res.Engaged {
		skelColor = engagedColor
	}

	s := res.Skeleton
	for _, b := range bones {
		a, c := s[b[0]], s[b[1]]
		if !a.PresentXY() || !c.PresentXY() {
			continue
		}
		gocv.Line(&img, image.Pt(int(a.X), int(a.Y)), image.Pt(int(c.X), int(c.Y)), skelColor, 2)
	}
	for _, k := range s {
		if k.PresentXY() {
			gocv.Circle(&img, image.Pt(int(k.X), int(k.Y)), 3, skelColor, -1)
		}
	}

	for _, r := range res.Regions() {
		if !r.Present {
			continue
		}
		rect := r.Rect()
		gocv.Rectangle(&img, rect, regionColors[r.Label], 1)

		labelPos := image.Pt(rect.Min.X, rect.Min.Y-4)
		if labelPos.Y < 10 {
			labelPos.Y = rect.Max.Y + 12
		}
		gocv.PutText(&img, r.Label.Description(), labelPos, gocv.FontHersheySimplex, 0.35, regionColors[r.Label], 1)
	}

	return img
}
