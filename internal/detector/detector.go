package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for pose estimation backends.
type Detector interface {
	// Detect analyzes a video frame and returns one skeleton per detected person.
	// Returns an empty slice if nobody is detected.
	Detect(frame *gocv.Mat) ([]Skeleton, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the pose service.
type Config struct {
	// ScriptPath is the pose service entry point. Empty means search the usual locations.
	ScriptPath string

	// PythonPath is the interpreter used to run the service. Empty means autodetect.
	PythonPath string

	// IdleTimeout stops the service after this long without a frame.
	IdleTimeout time.Duration

	// MinConfidence is forwarded to the service as its keypoint threshold.
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   30 * time.Second,
		MinConfidence: 0.05,
	}
}
