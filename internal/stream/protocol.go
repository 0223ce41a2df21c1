// Package stream serves per-frame results to TCP clients using the binary
// protocol the pose relay clients speak: one client per stream, all integers
// and floats little-endian, every message prefixed by its int32 length.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/detector"
)

// ID selects which stream a client receives. It is the first and only
// value a client sends.
type ID int32

const (
	ClosestBody ID = 512
	HandColorLH ID = 1024
	HandColorRH ID = 2048
	HeadColor   ID = 4096
)

// IDs lists every stream in publish order.
var IDs = []ID{ClosestBody, HandColorLH, HandColorRH, HeadColor}

// Valid reports whether id names a known stream.
func (id ID) Valid() bool {
	switch id {
	case ClosestBody, HandColorLH, HandColorRH, HeadColor:
		return true
	}
	return false
}

func (id ID) String() string {
	switch id {
	case ClosestBody:
		return "ClosestBody"
	case HandColorLH:
		return "HandColorLH"
	case HandColorRH:
		return "HandColorRH"
	case HeadColor:
		return "HeadColor"
	}
	return fmt.Sprintf("ID(%d)", int32(id))
}

// Frame types carried inside messages.
const (
	SkeletonFrameType  int16 = 512
	LeftHandFrameType  int32 = 0
	RightHandFrameType int32 = 1
	HeadFrameType      int32 = 4096
)

// KeypointValues is the number of floats in a skeleton message.
const KeypointValues = detector.NumJoints * detector.ValuesPerJoint

// SkeletonSize is the payload size of a skeleton message.
const SkeletonSize = 8 + 2 + 2 + 4 + 4*KeypointValues

// colorHeaderSize is the payload size of a colour message before its pixels.
const colorHeaderSize = 8 + 4 + 2 + 2

// MaxMessageSize bounds the payload a reader accepts.
const MaxMessageSize = 16 << 20

var (
	// ErrMessageTooLarge is returned for a length prefix above MaxMessageSize.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrShortMessage is returned when a payload is smaller than its fields.
	ErrShortMessage = errors.New("message too short")
)

// SkeletonMessage carries the selected skeleton of one frame.
type SkeletonMessage struct {
	Timestamp int64
	FrameType int16
	BodyCount uint16
	Engaged   float32
	Keypoints [KeypointValues]float32
}

// ColorMessage carries the pixels of one region. Each 8-bit channel value
// is widened to uint16.
type ColorMessage struct {
	Timestamp int64
	FrameType int32
	Width     uint16
	Height    uint16
	Pixels    []uint16
}

// NewSkeletonMessage builds the skeleton message for res.
func NewSkeletonMessage(ts int64, res analysis.Result) SkeletonMessage {
	m := SkeletonMessage{
		Timestamp: ts,
		FrameType: SkeletonFrameType,
		BodyCount: uint16(min(res.PersonCount, 0xffff)),
	}
	if res.Engaged {
		m.Engaged = 1
	}
	copy(m.Keypoints[:], res.Skeleton.Flatten())
	return m
}

// NewColorMessage builds a colour message of size w×h from BGR bytes. Nil
// pixels produce an all-zero image.
func NewColorMessage(ts int64, frameType int32, w, h int, bgr []byte) ColorMessage {
	m := ColorMessage{
		Timestamp: ts,
		FrameType: frameType,
		Width:     uint16(w),
		Height:    uint16(h),
		Pixels:    make([]uint16, w*h*3),
	}
	for i := 0; i < len(bgr) && i < len(m.Pixels); i++ {
		m.Pixels[i] = uint16(bgr[i])
	}
	return m
}

// MarshalBinary encodes the payload without the length prefix.
func (m SkeletonMessage) MarshalBinary() ([]byte, error) {
	return binary.Append(make([]byte, 0, SkeletonSize), binary.LittleEndian, m)
}

// UnmarshalBinary decodes a payload produced by MarshalBinary.
func (m *SkeletonMessage) UnmarshalBinary(data []byte) error {
	if len(data) < SkeletonSize {
		return fmt.Errorf("skeleton: %w: %d bytes", ErrShortMessage, len(data))
	}
	if _, err := binary.Decode(data, binary.LittleEndian, m); err != nil {
		return fmt.Errorf("decode skeleton: %w", err)
	}
	return nil
}

// MarshalBinary encodes the payload without the length prefix.
func (m ColorMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, colorHeaderSize, colorHeaderSize+2*len(m.Pixels))
	binary.LittleEndian.PutUint64(buf[0:], uint64(m.Timestamp))
	binary.LittleEndian.PutUint32(buf[8:], uint32(m.FrameType))
	binary.LittleEndian.PutUint16(buf[12:], m.Width)
	binary.LittleEndian.PutUint16(buf[14:], m.Height)
	for _, p := range m.Pixels {
		buf = binary.LittleEndian.AppendUint16(buf, p)
	}
	return buf, nil
}

// UnmarshalBinary decodes a payload produced by MarshalBinary.
func (m *ColorMessage) UnmarshalBinary(data []byte) error {
	if len(data) < colorHeaderSize {
		return fmt.Errorf("color: %w: %d bytes", ErrShortMessage, len(data))
	}
	m.Timestamp = int64(binary.LittleEndian.Uint64(data[0:]))
	m.FrameType = int32(binary.LittleEndian.Uint32(data[8:]))
	m.Width = binary.LittleEndian.Uint16(data[12:])
	m.Height = binary.LittleEndian.Uint16(data[14:])

	n := int(m.Width) * int(m.Height) * 3
	body := data[colorHeaderSize:]
	if len(body) != 2*n {
		return fmt.Errorf("color %dx%d: %w: %d pixel bytes, want %d", m.Width, m.Height, ErrShortMessage, len(body), 2*n)
	}
	m.Pixels = make([]uint16, n)
	for i := range m.Pixels {
		m.Pixels[i] = binary.LittleEndian.Uint16(body[2*i:])
	}
	return nil
}

// Bytes returns the pixels narrowed back to 8-bit channel values.
func (m ColorMessage) Bytes() []byte {
	out := make([]byte, len(m.Pixels))
	for i, p := range m.Pixels {
		out[i] = byte(p)
	}
	return out
}

// Frame wraps an encoded payload with its int32 length prefix.
func Frame(payload []byte) []byte {
	buf := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// ReadMessage reads one length-prefixed payload.
func ReadMessage(r io.Reader) ([]byte, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n < 0 || n > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read %d byte payload: %w", n, err)
	}
	return payload, nil
}

// WriteHandshake sends a client's stream selection.
func WriteHandshake(w io.Writer, id ID) error {
	return binary.Write(w, binary.LittleEndian, int32(id))
}

// ReadHandshake reads a client's stream selection. It does not validate it.
func ReadHandshake(r io.Reader) (ID, error) {
	var id int32
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return 0, fmt.Errorf("read stream id: %w", err)
	}
	return ID(id), nil
}
