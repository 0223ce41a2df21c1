package output

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/detector"
)

// maxLine bounds one line of pixel values.
const maxLine = 4 << 20

// ErrMalformedBlock is returned when a block does not follow the text format.
var ErrMalformedBlock = errors.New("malformed frame block")

// BlockRegion is one region as read back from a block.
type BlockRegion struct {
	Label     analysis.Label
	Requested image.Rectangle
	Known     bool
	Pixels    []byte
}

// Block is one parsed frame block.
type Block struct {
	SelectedIndex int
	Engaged       bool
	Values        []float32
	Regions       [3]BlockRegion
}

// Skeleton rebuilds the selected skeleton from the block's values.
func (b Block) Skeleton() (detector.Skeleton, error) {
	people, err := detector.FromTensor(b.Values, 1)
	if err != nil {
		return detector.Skeleton{}, err
	}
	return people[0], nil
}

// Scanner reads frame blocks from a text stream. Lines outside a block
// are ignored.
type Scanner struct {
	s    *bufio.Scanner
	line int
}

// NewScanner creates a Scanner on r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Scanner{s: s}
}

// Next returns the next complete block. It returns io.EOF when the
// stream ends outside a block and io.ErrUnexpectedEOF inside one.
func (sc *Scanner) Next() (Block, error) {
	for {
		line, err := sc.read()
		if err != nil {
			return Block{}, err
		}
		if strings.Contains(line, FrameStart) {
			break
		}
	}

	var b Block
	line, err := sc.mustRead()
	if err != nil {
		return Block{}, err
	}
	if _, err := fmt.Sscanf(line, "Person %d (x, y, score):", &b.SelectedIndex); err != nil {
		return Block{}, sc.malformed("person header", err)
	}

	if line, err = sc.mustRead(); err != nil {
		return Block{}, err
	}
	if b.Engaged, b.Values, err = parseValues(line); err != nil {
		return Block{}, sc.malformed("keypoint line", err)
	}

	for i, label := range []analysis.Label{analysis.LeftHand, analysis.RightHand, analysis.Head} {
		r, err := sc.readRegion(label)
		if err != nil {
			return Block{}, err
		}
		b.Regions[i] = r
	}

	if line, err = sc.mustRead(); err != nil {
		return Block{}, err
	}
	if strings.TrimSpace(line) != FrameEnd {
		return Block{}, sc.malformed("block end", fmt.Errorf("got %q", line))
	}
	return b, nil
}

func (sc *Scanner) readRegion(label analysis.Label) (BlockRegion, error) {
	rl := regionLines[label]
	r := BlockRegion{Label: label}

	header, err := sc.mustRead()
	if err != nil {
		return r, err
	}
	rest, ok := strings.CutPrefix(header, rl.tag+" "+rl.fields)
	if !ok {
		return r, sc.malformed(string(label)+" header", fmt.Errorf("got %q", header))
	}
	var x0, y0, x1, y1 int
	if _, err := fmt.Sscan(rest, &x0, &y0, &x1, &y1); err != nil {
		return r, sc.malformed(string(label)+" header", err)
	}
	r.Requested = image.Rect(x0, y0, x1, y1)

	data, err := sc.mustRead()
	if err != nil {
		return r, err
	}
	if strings.TrimSpace(data) == rl.placeholder {
		return r, nil
	}

	fields := strings.Fields(data)
	r.Pixels = make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return r, sc.malformed(string(label)+" pixels", err)
		}
		r.Pixels[i] = byte(v)
	}
	r.Known = true
	return r, nil
}

func parseValues(line string) (bool, []float32, error) {
	fields := strings.Fields(line)
	want := 1 + detector.NumJoints*detector.ValuesPerJoint
	if len(fields) != want {
		return false, nil, fmt.Errorf("got %d values, want %d", len(fields), want)
	}

	var engaged bool
	switch fields[0] {
	case "0":
	case "1":
		engaged = true
	default:
		return false, nil, fmt.Errorf("engaged bit %q", fields[0])
	}

	values := make([]float32, 0, want-1)
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return false, nil, err
		}
		values = append(values, float32(v))
	}
	return engaged, values, nil
}

func (sc *Scanner) read() (string, error) {
	if !sc.s.Scan() {
		if err := sc.s.Err(); err != nil {
			return "", fmt.Errorf("read line %d: %w", sc.line+1, err)
		}
		return "", io.EOF
	}
	sc.line++
	return strings.TrimRight(sc.s.Text(), "\r"), nil
}

func (sc *Scanner) mustRead() (string, error) {
	line, err := sc.read()
	if errors.Is(err, io.EOF) {
		return "", io.ErrUnexpectedEOF
	}
	return line, err
}

func (sc *Scanner) malformed(what string, err error) error {
	return fmt.Errorf("%w: line %d: %s: %v", ErrMalformedBlock, sc.line, what, err)
}
