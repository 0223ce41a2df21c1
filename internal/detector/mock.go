package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu        sync.Mutex
	skeletons []Skeleton
	err       error
	calls     int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetSkeletons sets the skeletons that will be returned by Detect.
func (m *MockDetector) SetSkeletons(skeletons []Skeleton) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skeletons = skeletons
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured skeletons or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Skeleton, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.skeletons == nil {
		return nil, nil
	}
	out := make([]Skeleton, len(m.skeletons))
	copy(out, m.skeletons)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// standingPose holds joint offsets from the neck, in units of one
// shoulder half-width, for a person facing the camera with arms lowered.
// The person's right side appears on the image's left.
var standingPose = [NumJoints][2]float32{
	Nose:      {0, -1},
	Neck:      {0, 0},
	RShoulder: {-1, 0},
	RElbow:    {-1.2, 1.2},
	RWrist:    {-1.3, 2.2},
	LShoulder: {1, 0},
	LElbow:    {1.2, 1.2},
	LWrist:    {1.3, 2.2},
	RHip:      {-0.6, 2.8},
	RKnee:     {-0.6, 4.2},
	RAnkle:    {-0.6, 5.6},
	LHip:      {0.6, 2.8},
	LKnee:     {0.6, 4.2},
	LAnkle:    {0.6, 5.6},
	REye:      {-0.25, -1.2},
	LEye:      {0.25, -1.2},
	REar:      {-0.5, -1.1},
	LEar:      {0.5, -1.1},
}

// StandingSkeleton returns a person facing the camera with the neck at
// (neckX, neckY). Scale is the shoulder half-width in pixels; the average
// limb length of the result is roughly 1.59 times the scale.
func StandingSkeleton(neckX, neckY, scale float32) Skeleton {
	var s Skeleton
	for j, off := range standingPose {
		s[j] = Keypoint{
			X:          neckX + off[0]*scale,
			Y:          neckY + off[1]*scale,
			Confidence: 0.9,
		}
	}
	return s
}

// Without returns a copy of the skeleton with the given joints zeroed, the
// way the engine reports joints it could not locate.
func (s Skeleton) Without(joints ...int) Skeleton {
	for _, j := range joints {
		s[j] = Keypoint{}
	}
	return s
}
