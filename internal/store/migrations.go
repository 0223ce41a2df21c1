package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per capture run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			frame_width INTEGER NOT NULL,
			frame_height INTEGER NOT NULL
		)`,

		// Frames table - one row per analysed frame
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			captured_at DATETIME NOT NULL,
			engaged INTEGER NOT NULL CHECK(engaged IN (0, 1)),
			selected_index INTEGER NOT NULL,
			person_count INTEGER NOT NULL,
			UNIQUE(session_id, seq)
		)`,

		// Frame keypoints table - the selected skeleton, one row per joint
		`CREATE TABLE IF NOT EXISTS frame_keypoints (
			frame_id INTEGER NOT NULL REFERENCES frames(id) ON DELETE CASCADE,
			joint INTEGER NOT NULL CHECK(joint BETWEEN 0 AND 17),
			x REAL NOT NULL,
			y REAL NOT NULL,
			confidence REAL NOT NULL,
			PRIMARY KEY (frame_id, joint)
		)`,

		// Frame regions table - the left hand, right hand and head boxes
		`CREATE TABLE IF NOT EXISTS frame_regions (
			frame_id INTEGER NOT NULL REFERENCES frames(id) ON DELETE CASCADE,
			label TEXT NOT NULL CHECK(label IN ('left_hand', 'right_hand', 'head')),
			present INTEGER NOT NULL,
			x0 INTEGER NOT NULL,
			y0 INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			PRIMARY KEY (frame_id, label)
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_frames_session_id ON frames(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
