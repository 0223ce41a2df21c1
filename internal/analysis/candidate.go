// Package analysis derives, per frame, the engaged person in a skeleton batch
// and the fixed-size hand and head regions anchored on that person.
//
// Everything here is a pure function of its inputs. Nothing is retained
// between frames.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/closestbody/internal/detector"
)

// centralJoints are averaged to locate a person horizontally.
var centralJoints = [...]int{detector.Nose, detector.Neck, detector.RShoulder, detector.LShoulder}

// limbSegments are the joint pairs whose mean length estimates how close a
// person stands to the camera. Forearms and face segments are excluded.
var limbSegments = [...][2]int{
	{detector.Nose, detector.Neck},
	{detector.RShoulder, detector.Neck},
	{detector.LShoulder, detector.Neck},
	{detector.RHip, detector.Neck},
	{detector.LHip, detector.Neck},
	{detector.RElbow, detector.RShoulder},
	{detector.LElbow, detector.LShoulder},
}

// CandidateMetrics describes one detected person for engagement selection.
type CandidateMetrics struct {
	// MeanCentralX is the mean x of the present central joints, NaN when none is present.
	MeanCentralX float64
	// CentralJoints is how many central joints contributed to MeanCentralX.
	CentralJoints int
	// IsCentral is set when MeanCentralX lies inside the frame's central window.
	IsCentral bool
	// AverageLimbLength is the mean length of the present limb segments, 0 when none is present.
	AverageLimbLength float64
	// Limbs is how many segments contributed to AverageLimbLength.
	Limbs int
}

// HasMeanCentralX reports whether MeanCentralX is defined.
func (c CandidateMetrics) HasMeanCentralX() bool {
	return c.CentralJoints > 0
}

// CentralWindow returns the inclusive x range of the middle third of a frame.
func CentralWindow(frameWidth int) (start, end int) {
	return frameWidth / 3, 2 * frameWidth / 3
}

// EvaluateCandidates computes metrics for every skeleton, in index order.
// The returned slice is freshly allocated and indexed by person.
func EvaluateCandidates(skeletons []detector.Skeleton, frameWidth int) []CandidateMetrics {
	start, end := CentralWindow(frameWidth)

	metrics := make([]CandidateMetrics, len(skeletons))
	for i := range skeletons {
		metrics[i] = evaluate(&skeletons[i], float64(start), float64(end))
	}
	return metrics
}

func evaluate(s *detector.Skeleton, windowStart, windowEnd float64) CandidateMetrics {
	var m CandidateMetrics

	xs := make([]float64, 0, len(centralJoints))
	for _, j := range centralJoints {
		if s[j].Present() {
			xs = append(xs, float64(s[j].X))
		}
	}
	m.CentralJoints = len(xs)
	if m.CentralJoints == 0 {
		m.MeanCentralX = math.NaN()
	} else {
		m.MeanCentralX = stat.Mean(xs, nil)
		m.IsCentral = m.MeanCentralX >= windowStart && m.MeanCentralX <= windowEnd
	}

	lengths := make([]float64, 0, len(limbSegments))
	for _, seg := range limbSegments {
		a, b := s[seg[0]], s[seg[1]]
		if !a.PresentXY() || !b.PresentXY() {
			continue
		}
		lengths = append(lengths, r2.Norm(r2.Sub(a.Vec(), b.Vec())))
	}
	m.Limbs = len(lengths)
	if m.Limbs > 0 {
		m.AverageLimbLength = stat.Mean(lengths, nil)
	}

	return m
}
