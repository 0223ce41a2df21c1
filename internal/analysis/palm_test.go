package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/closestbody/internal/detector"
)

func kp(x, y float32) detector.Keypoint {
	return detector.Keypoint{X: x, Y: y, Confidence: 0.7}
}

func TestEstimatePalm(t *testing.T) {
	cfg := PalmConfig{Ratio: DefaultPalmRatio, ForearmThreshold: DefaultForearmThreshold}

	tests := []struct {
		name         string
		wrist, elbow detector.Keypoint
		want         Anchor
	}{
		{
			name:  "extended vertical forearm",
			wrist: kp(100, 140), elbow: kp(100, 100),
			want: Anchor{Present: true, X: 100, Y: 170},
		},
		{
			name:  "extended diagonal forearm scales axes differently",
			wrist: kp(120, 130), elbow: kp(100, 100),
			want: Anchor{Present: true, X: 127.5, Y: 152.5},
		},
		{
			name:  "short forearm scales uniformly",
			wrist: kp(103, 104), elbow: kp(100, 100),
			want: Anchor{Present: true, X: 104.5, Y: 106},
		},
		{
			name:  "forearm at threshold is short",
			wrist: kp(106, 108), elbow: kp(100, 100),
			want: Anchor{Present: true, X: 109, Y: 112},
		},
		{
			name:  "raised arm extends upward",
			wrist: kp(100, 60), elbow: kp(100, 100),
			want: Anchor{Present: true, X: 100, Y: 30},
		},
		{
			name:  "missing wrist",
			wrist: detector.Keypoint{}, elbow: kp(100, 100),
			want: Anchor{},
		},
		{
			name:  "missing elbow",
			wrist: kp(100, 140), elbow: detector.Keypoint{},
			want: Anchor{},
		},
		{
			name:  "elbow without y",
			wrist: kp(100, 140), elbow: kp(100, 0),
			want: Anchor{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimatePalm(tt.wrist, tt.elbow, cfg)
			assert.Equal(t, tt.want.Present, got.Present)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestEstimatePalm_Deterministic(t *testing.T) {
	cfg := PalmConfig{Ratio: 0.37, ForearmThreshold: DefaultForearmThreshold}
	wrist, elbow := kp(211.3, 187.9), kp(203.7, 141.2)

	first := EstimatePalm(wrist, elbow, cfg)
	second := EstimatePalm(wrist, elbow, cfg)

	assert.Equal(t, math.Float64bits(first.X), math.Float64bits(second.X))
	assert.Equal(t, math.Float64bits(first.Y), math.Float64bits(second.Y))
	assert.Equal(t, first, second)
}

func TestJointAnchor(t *testing.T) {
	assert.Equal(t, Anchor{Present: true, X: 100, Y: 100}, JointAnchor(kp(100, 100)))
	assert.Equal(t, Anchor{}, JointAnchor(detector.Keypoint{}))
	assert.Equal(t, Anchor{}, JointAnchor(kp(100, 0)))
}
