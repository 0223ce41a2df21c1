// Package fixtures synthesises deterministic frames for tests.
package fixtures

import (
	"fmt"

	"gocv.io/x/gocv"
)

// GradientPixel returns the BGR value GradientFrame stores at (x, y).
func GradientPixel(x, y int) [3]byte {
	return [3]byte{byte(x), byte(y), byte(x + 2*y)}
}

// GradientFrame returns a width×height 8-bit BGR frame whose pixels are
// given by GradientPixel. The caller must close it.
func GradientFrame(width, height int) (*gocv.Mat, error) {
	data := make([]byte, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := GradientPixel(x, y)
			data = append(data, p[:]...)
		}
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return nil, fmt.Errorf("build %dx%d frame: %w", width, height, err)
	}
	return &mat, nil
}

// SolidFrame returns a width×height BGR frame filled with one colour.
func SolidFrame(width, height int, b, g, r uint8) *gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	mat.SetTo(gocv.NewScalar(float64(b), float64(g), float64(r), 0))
	return &mat
}

// Sequence returns n gradient frames of the same size. On error any frames
// already built are closed.
func Sequence(n, width, height int) ([]*gocv.Mat, error) {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		f, err := GradientFrame(width, height)
		if err != nil {
			Close(frames)
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Close releases every frame.
func Close(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
