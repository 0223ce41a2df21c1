package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/detector"
)

// Frame is one recorded analysis result.
type Frame struct {
	ID            int64             `json:"id"`
	SessionID     string            `json:"session_id"`
	Seq           int64             `json:"seq"`
	CapturedAt    time.Time         `json:"captured_at"`
	Engaged       bool              `json:"engaged"`
	SelectedIndex int               `json:"selected_index"`
	PersonCount   int               `json:"person_count"`
	Skeleton      detector.Skeleton `json:"skeleton"`
	Regions       []analysis.Region `json:"regions"`
}

// FrameRepository provides access to recorded frames.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Record stores one frame's result with its skeleton and regions.
func (r *FrameRepository) Record(sessionID string, seq int64, capturedAt time.Time, res analysis.Result) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO frames (session_id, seq, captured_at, engaged, selected_index, person_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, seq, capturedAt.UTC(), res.Engaged, res.SelectedIndex, res.PersonCount,
	)
	if err != nil {
		return 0, fmt.Errorf("insert frame %d: %w", seq, err)
	}
	frameID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for joint, k := range res.Skeleton {
		if _, err := tx.Exec(
			`INSERT INTO frame_keypoints (frame_id, joint, x, y, confidence) VALUES (?, ?, ?, ?, ?)`,
			frameID, joint, float64(k.X), float64(k.Y), float64(k.Confidence),
		); err != nil {
			return 0, fmt.Errorf("insert keypoint %s: %w", detector.JointNames[joint], err)
		}
	}

	for _, reg := range res.Regions() {
		if _, err := tx.Exec(
			`INSERT INTO frame_regions (frame_id, label, present, x0, y0, width, height) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			frameID, string(reg.Label), reg.Present, reg.X0, reg.Y0, reg.Width, reg.Height,
		); err != nil {
			return 0, fmt.Errorf("insert %s region: %w", reg.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return frameID, nil
}

// Get retrieves a frame with its skeleton and regions.
func (r *FrameRepository) Get(id int64) (*Frame, error) {
	f := &Frame{}
	err := r.db.QueryRow(
		`SELECT id, session_id, seq, captured_at, engaged, selected_index, person_count
		 FROM frames WHERE id = ?`,
		id,
	).Scan(&f.ID, &f.SessionID, &f.Seq, &f.CapturedAt, &f.Engaged, &f.SelectedIndex, &f.PersonCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := r.loadKeypoints(f); err != nil {
		return nil, err
	}
	if err := r.loadRegions(f); err != nil {
		return nil, err
	}
	return f, nil
}

// List retrieves up to limit frames of a session in capture order, with
// their regions. A limit of zero or less returns every frame.
func (r *FrameRepository) List(sessionID string, limit int) ([]*Frame, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, seq, captured_at, engaged, selected_index, person_count
		 FROM frames WHERE session_id = ? ORDER BY seq LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}

	var frames []*Frame
	for rows.Next() {
		f := &Frame{}
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Seq, &f.CapturedAt, &f.Engaged, &f.SelectedIndex, &f.PersonCount); err != nil {
			rows.Close()
			return nil, err
		}
		frames = append(frames, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// loaded after the cursor closes; the store holds a single connection
	for _, f := range frames {
		if err := r.loadRegions(f); err != nil {
			return nil, err
		}
	}
	return frames, nil
}

// EngagementRate returns the fraction of a session's frames in which
// someone was engaged. It is zero for a session with no frames.
func (r *FrameRepository) EngagementRate(sessionID string) (float64, error) {
	var rate sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT AVG(engaged) FROM frames WHERE session_id = ?`,
		sessionID,
	).Scan(&rate)
	if err != nil {
		return 0, err
	}
	return rate.Float64, nil
}

func (r *FrameRepository) loadKeypoints(f *Frame) error {
	rows, err := r.db.Query(
		`SELECT joint, x, y, confidence FROM frame_keypoints WHERE frame_id = ?`,
		f.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var joint int
		var x, y, c float64
		if err := rows.Scan(&joint, &x, &y, &c); err != nil {
			return err
		}
		if joint < 0 || joint >= detector.NumJoints {
			return fmt.Errorf("frame %d: joint %d out of range", f.ID, joint)
		}
		f.Skeleton[joint] = detector.Keypoint{X: float32(x), Y: float32(y), Confidence: float32(c)}
	}
	return rows.Err()
}

func (r *FrameRepository) loadRegions(f *Frame) error {
	rows, err := r.db.Query(
		`SELECT label, present, x0, y0, width, height FROM frame_regions WHERE frame_id = ?
		 ORDER BY CASE label WHEN 'left_hand' THEN 0 WHEN 'right_hand' THEN 1 ELSE 2 END`,
		f.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	f.Regions = f.Regions[:0]
	for rows.Next() {
		var reg analysis.Region
		var label string
		if err := rows.Scan(&label, &reg.Present, &reg.X0, &reg.Y0, &reg.Width, &reg.Height); err != nil {
			return err
		}
		reg.Label = analysis.Label(label)
		f.Regions = append(f.Regions, reg)
	}
	return rows.Err()
}
