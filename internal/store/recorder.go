package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ayusman/fingervol/internal/app"
	"gocv.io/x/gocv"
)

// recorderBuffer bounds the readings waiting to be written.
const recorderBuffer = 256

// Recorder is an app.Observer that persists every applied reading under one
// session. Writes happen on the goroutine running Run, so the frame loop
// never waits on the database; when the buffer is full readings are dropped.
type Recorder struct {
	readings  *ReadingRepository
	sessions  *SessionRepository
	sessionID string
	logger    *slog.Logger
	queue     chan Reading
	dropped   atomic.Int64
}

// NewRecorder starts a session for device and returns a Recorder writing to it.
func NewRecorder(s *Store, device int, logger *slog.Logger) (*Recorder, error) {
	sess, err := s.Sessions().Start(device)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		readings:  s.Readings(),
		sessions:  s.Sessions(),
		sessionID: sess.ID,
		logger:    logger,
		queue:     make(chan Reading, recorderBuffer),
	}, nil
}

// SessionID returns the id readings are stored under.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Dropped returns how many readings were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// ObserveFrame queues applied readings; frames without one are ignored.
func (r *Recorder) ObserveFrame(_ *gocv.Mat, reading *app.Reading) {
	if reading == nil || !reading.Applied {
		return
	}
	rd := Reading{
		SessionID: r.sessionID,
		Fingers:   reading.Fingers.String(),
		Count:     reading.Count,
		Level:     reading.Level,
		CreatedAt: reading.Timestamp.UTC(),
	}
	select {
	case r.queue <- rd:
	default:
		r.dropped.Add(1)
	}
}

// Run writes queued readings until ctx is cancelled, then drains the queue
// and ends the session.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rd := <-r.queue:
			r.write(rd)
		case <-ctx.Done():
			for {
				select {
				case rd := <-r.queue:
					r.write(rd)
				default:
					if n := r.Dropped(); n > 0 {
						r.logger.Warn("history readings dropped", "count", n)
					}
					return r.sessions.End(r.sessionID)
				}
			}
		}
	}
}

func (r *Recorder) write(rd Reading) {
	if err := r.readings.Create(&rd); err != nil {
		r.logger.Warn("failed to store reading", "error", err)
	}
}
