// Package detector provides the pose-estimation boundary: the body joint
// taxonomy, skeleton types and the Detector implementations that produce them.
package detector

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Body joint indices following the 18-part COCO ordering used by the pose engine.
const (
	Nose      = 0
	Neck      = 1
	RShoulder = 2
	RElbow    = 3
	RWrist    = 4
	LShoulder = 5
	LElbow    = 6
	LWrist    = 7
	RHip      = 8
	RKnee     = 9
	RAnkle    = 10
	LHip      = 11
	LKnee     = 12
	LAnkle    = 13
	REye      = 14
	LEye      = 15
	REar      = 16
	LEar      = 17
	NumJoints = 18
)

// ValuesPerJoint is the number of floats per joint in the engine's output (x, y, confidence).
const ValuesPerJoint = 3

// PresenceEpsilon is the smallest coordinate treated as a detected joint.
// The engine reports undetected joints as zeros.
const PresenceEpsilon = 1e-5

// JointNames maps joint indices to their names.
var JointNames = [NumJoints]string{
	"Nose", "Neck", "RShoulder", "RElbow", "RWrist", "LShoulder", "LElbow", "LWrist",
	"RHip", "RKnee", "RAnkle", "LHip", "LKnee", "LAnkle", "REye", "LEye", "REar", "LEar",
}

// Keypoint is a single joint estimate in pixel coordinates.
type Keypoint struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Confidence float32 `json:"confidence"`
}

// Present reports whether the joint's x coordinate was detected.
func (k Keypoint) Present() bool {
	return float64(k.X) > PresenceEpsilon
}

// PresentXY reports whether both coordinates were detected.
func (k Keypoint) PresentXY() bool {
	return float64(k.X) > PresenceEpsilon && float64(k.Y) > PresenceEpsilon
}

// Vec returns the keypoint position as a 2D vector.
func (k Keypoint) Vec() r2.Vec {
	return r2.Vec{X: float64(k.X), Y: float64(k.Y)}
}

// Skeleton holds the joints of one detected person in one frame.
type Skeleton [NumJoints]Keypoint

// Flatten returns the skeleton as 54 floats in joint order (x, y, confidence).
func (s Skeleton) Flatten() []float32 {
	out := make([]float32, 0, NumJoints*ValuesPerJoint)
	for _, k := range s {
		out = append(out, k.X, k.Y, k.Confidence)
	}
	return out
}

// FromTensor decodes a [people, 18, 3] float32 buffer in row-major order.
func FromTensor(data []float32, people int) ([]Skeleton, error) {
	if people < 0 {
		return nil, fmt.Errorf("negative person count %d", people)
	}
	want := people * NumJoints * ValuesPerJoint
	if len(data) != want {
		return nil, fmt.Errorf("tensor has %d values, want %d for %d people", len(data), want, people)
	}

	skeletons := make([]Skeleton, people)
	for p := range skeletons {
		base := p * NumJoints * ValuesPerJoint
		for j := 0; j < NumJoints; j++ {
			off := base + j*ValuesPerJoint
			skeletons[p][j] = Keypoint{X: data[off], Y: data[off+1], Confidence: data[off+2]}
		}
	}
	return skeletons, nil
}
