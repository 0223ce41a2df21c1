package analysis

import (
	"encoding/json"
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/closestbody/internal/detector"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(DefaultConfig())
	require.NoError(t, err)
	return a
}

func TestAnalyze_EmptyBatch(t *testing.T) {
	a := newTestAnalyzer(t)

	got := a.Analyze(Frame{Width: frameW, Height: frameH})

	origin := image.Rect(-32, -32, 32, 32)
	want := Result{
		LeftHand:  Region{Label: LeftHand, Requested: origin},
		RightHand: Region{Label: RightHand, Requested: origin},
		Head:      Region{Label: Head, Requested: origin},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analyze() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_EngagedPerson(t *testing.T) {
	a := newTestAnalyzer(t)
	person := engagedPerson()

	got := a.Analyze(Frame{Skeletons: []detector.Skeleton{person}, Width: frameW, Height: frameH})

	want := Result{
		Engaged:       true,
		SelectedIndex: 0,
		PersonCount:   1,
		Skeleton:      person,
		// palm at (223.75, 220), pushed up off the bottom edge
		LeftHand: Region{
			Label: LeftHand, Present: true, X0: 191, Y0: 176, Width: 64, Height: 64,
			Requested: image.Rect(191, 188, 255, 252),
		},
		// palm at (110, 220)
		RightHand: Region{
			Label: RightHand, Present: true, X0: 78, Y0: 176, Width: 64, Height: 64,
			Requested: image.Rect(78, 188, 142, 252),
		},
		Head: Region{
			Label: Head, Present: true, X0: 128, Y0: 28, Width: 64, Height: 64,
			Requested: image.Rect(128, 28, 192, 92),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analyze() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_SelectsLastEngagedPerson(t *testing.T) {
	a := newTestAnalyzer(t)
	bystander := detector.StandingSkeleton(40, 100, 10)
	first := engagedPerson()
	second := engagedPerson()
	second[detector.Nose].Y = 70

	got := a.Analyze(Frame{
		Skeletons: []detector.Skeleton{first, bystander, second, bystander},
		Width:     frameW,
		Height:    frameH,
	})

	assert.True(t, got.Engaged)
	assert.Equal(t, 2, got.SelectedIndex)
	assert.Equal(t, 4, got.PersonCount)
	assert.Equal(t, second, got.Skeleton)
	assert.Equal(t, 38, got.Head.Y0)
}

func TestAnalyze_NobodyEngagedStillComputesRegions(t *testing.T) {
	a := newTestAnalyzer(t)
	bystander := detector.StandingSkeleton(40, 100, 10)

	got := a.Analyze(Frame{Skeletons: []detector.Skeleton{bystander}, Width: frameW, Height: frameH})

	assert.False(t, got.Engaged)
	assert.Equal(t, 0, got.SelectedIndex)
	assert.Equal(t, bystander, got.Skeleton)
	require.True(t, got.Head.Present)
	assert.Equal(t, 8, got.Head.X0)
	assert.Equal(t, 58, got.Head.Y0)
}

func TestAnalyze_MissingJointsLeaveRegionsAbsent(t *testing.T) {
	a := newTestAnalyzer(t)
	person := engagedPerson().Without(detector.Nose, detector.LElbow)

	got := a.Analyze(Frame{Skeletons: []detector.Skeleton{person}, Width: frameW, Height: frameH})

	assert.False(t, got.Head.Present)
	assert.False(t, got.LeftHand.Present)
	assert.True(t, got.RightHand.Present)
}

func TestAnalyze_CorruptCoordinates(t *testing.T) {
	a := newTestAnalyzer(t)

	person := engagedPerson()
	person[detector.Nose].X = float32(1e20)
	person[detector.LWrist].Y = float32(math.Inf(1))
	person[detector.RWrist].X = float32(math.NaN())

	got := a.Analyze(Frame{Skeletons: []detector.Skeleton{person}, Width: frameW, Height: frameH})

	assert.False(t, got.Head.Present)
	assert.False(t, got.LeftHand.Present)
	assert.False(t, got.RightHand.Present)
}

func TestAnalyze_NoStateBetweenFrames(t *testing.T) {
	a := newTestAnalyzer(t)
	frame := Frame{Skeletons: []detector.Skeleton{engagedPerson()}, Width: frameW, Height: frameH}

	first := a.Analyze(frame)
	_ = a.Analyze(Frame{Width: 64, Height: 48})
	_ = a.Analyze(Frame{Skeletons: []detector.Skeleton{detector.StandingSkeleton(10, 10, 3)}, Width: 640, Height: 480})
	again := a.Analyze(frame)

	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("repeated frame produced a different result (-first +again):\n%s", diff)
	}
}

func TestResult_JSONRoundTrip(t *testing.T) {
	a := newTestAnalyzer(t)
	res := a.Analyze(Frame{Skeletons: []detector.Skeleton{engagedPerson()}, Width: frameW, Height: frameH})

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	if diff := cmp.Diff(res, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResult_Regions(t *testing.T) {
	res := Result{
		LeftHand:  Region{Label: LeftHand},
		RightHand: Region{Label: RightHand},
		Head:      Region{Label: Head},
	}

	regions := res.Regions()
	assert.Equal(t, LeftHand, regions[0].Label)
	assert.Equal(t, RightHand, regions[1].Label)
	assert.Equal(t, Head, regions[2].Label)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "odd hand width", mutate: func(c *Config) { c.HandSize.Width = 63 }, wantErr: "hand region size 63x64 must be even"},
		{name: "zero head", mutate: func(c *Config) { c.HeadSize = Size{} }, wantErr: "head region size 0x0 must be positive"},
		{name: "negative ratio", mutate: func(c *Config) { c.PalmRatio = -1 }, wantErr: "palm ratio"},
		{name: "tolerance too large", mutate: func(c *Config) { c.Tolerance = 1 }, wantErr: "tolerance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeadSize = Size{Width: 65, Height: 64}

	a, err := New(cfg)
	assert.Nil(t, a)
	assert.ErrorContains(t, err, "invalid analysis config")
}
