package store

import (
	"database/sql"
	"time"
)

// Reading is one applied volume level.
type Reading struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Fingers   string    `json:"fingers"`
	Count     int       `json:"count"`
	Level     float64   `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// LevelCount is one bucket of a session histogram.
type LevelCount struct {
	Count int     `json:"count"`
	Level float64 `json:"level"`
	N     int     `json:"n"`
}

// ReadingRepository provides access to readings.
type ReadingRepository struct {
	db *sql.DB
}

// Readings returns the reading repository for this store.
func (s *Store) Readings() *ReadingRepository {
	return &ReadingRepository{db: s.db}
}

// Create inserts a reading and sets its ID. A zero CreatedAt is set to now.
func (r *ReadingRepository) Create(rd *Reading) error {
	if rd.CreatedAt.IsZero() {
		rd.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		`INSERT INTO readings (session_id, fingers, count, level, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rd.SessionID, rd.Fingers, rd.Count, rd.Level, rd.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rd.ID = id
	return nil
}

// Recent returns up to limit readings, newest first.
func (r *ReadingRepository) Recent(limit int) ([]Reading, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, fingers, count, level, created_at
		 FROM readings ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		var rd Reading
		if err := rows.Scan(&rd.ID, &rd.SessionID, &rd.Fingers, &rd.Count, &rd.Level, &rd.CreatedAt); err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

// Histogram returns how often each finger count was applied in a session,
// ordered by count.
func (r *ReadingRepository) Histogram(sessionID string) ([]LevelCount, error) {
	rows, err := r.db.Query(
		`SELECT count, level, COUNT(*) FROM readings
		 WHERE session_id = ? GROUP BY count, level ORDER BY count`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := []LevelCount{}
	for rows.Next() {
		var b LevelCount
		if err := rows.Scan(&b.Count, &b.Level, &b.N); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
