// Package output renders per-frame analysis results in the line-oriented
// text format read by the legacy relay.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/log"
)

// Block markers.
const (
	FrameStart = "Person new frame:"
	FrameEnd   = "[End]"
)

// PixelSource supplies the pixels of a region of the current frame.
type PixelSource interface {
	Crop(r analysis.Region) ([]byte, error)
}

// regionLine describes how one region is introduced and how its absence
// is reported.
type regionLine struct {
	tag         string
	fields      string
	placeholder string
}

var regionLines = map[analysis.Label]regionLine{
	analysis.LeftHand: {
		tag:         "ImageLeftHand:",
		fields:      "hand_img_x_start, hand_img_y_start, hand_img_x_end, hand_img_y_end:",
		placeholder: "[left hand unknown]",
	},
	analysis.RightHand: {
		tag:         "ImageRightHand:",
		fields:      "hand_img_x_start, hand_img_y_start, hand_img_x_end, hand_img_y_end:",
		placeholder: "[right hand unknown]",
	},
	analysis.Head: {
		tag:         "ImageHead:",
		fields:      "head_img_x_start, head_img_y_start, head_img_x_end, head_img_y_end:",
		placeholder: "[head unknown]",
	},
}

// TextWriter writes one block per frame. It is safe for concurrent use;
// blocks never interleave.
type TextWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewTextWriter creates a TextWriter on w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

// WriteFrame writes the block for res. A present region whose pixels
// cannot be read is reported with its placeholder.
func (t *TextWriter) WriteFrame(res analysis.Result, pixels PixelSource) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, 0, 4096)
	buf = append(buf, FrameStart...)
	buf = append(buf, '\n')
	buf = fmt.Appendf(buf, "Person %d (x, y, score):\n", res.SelectedIndex)

	buf = appendEngaged(buf, res.Engaged)
	for _, v := range res.Skeleton.Flatten() {
		buf = strconv.AppendFloat(buf, float64(v), 'f', 6, 32)
		buf = append(buf, ' ')
	}
	buf = append(buf, '\n')

	for _, r := range res.Regions() {
		buf = appendRegion(buf, r, pixels)
	}

	buf = append(buf, FrameEnd...)
	buf = append(buf, '\n')

	if _, err := t.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

func appendEngaged(buf []byte, engaged bool) []byte {
	if engaged {
		return append(buf, "1 "...)
	}
	return append(buf, "0 "...)
}

func appendRegion(buf []byte, r analysis.Region, pixels PixelSource) []byte {
	line := regionLines[r.Label]
	req := r.Requested
	buf = fmt.Appendf(buf, "%s %s %d %d %d %d \n", line.tag, line.fields, req.Min.X, req.Min.Y, req.Max.X, req.Max.Y)

	if !r.Present || pixels == nil {
		return append(append(buf, line.placeholder...), '\n')
	}

	px, err := pixels.Crop(r)
	if err != nil {
		log.Warn("region pixels unavailable", "region", r.Label, "error", err)
		return append(append(buf, line.placeholder...), '\n')
	}
	for _, c := range px {
		buf = strconv.AppendUint(buf, uint64(c), 10)
		buf = append(buf, ' ')
	}
	return append(buf, '\n')
}
