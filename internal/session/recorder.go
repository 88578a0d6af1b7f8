package session

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/armlink/internal/armband"
)

const writeTimeout = 2 * time.Second

// Logger is the logging surface used by Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes hub lifecycle events to a Repository.
// It satisfies hub.Recorder and hub.ShutdownRecorder. Each write is bounded
// by writeTimeout; storage errors are logged, never returned.
type Recorder struct {
	repo   Repository
	hubID  string
	logger Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder for hubID. logger may be nil.
func NewRecorder(repo Repository, hubID string, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:   repo,
		hubID:  hubID,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordConnect opens a session for the new device.
func (r *Recorder) RecordConnect(rec armband.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	startedAt := rec.ConnectedAt
	if startedAt.IsZero() {
		startedAt = r.now()
	}
	s := &Session{
		HubID:      r.hubID,
		Handle:     rec.Handle,
		Arm:        rec.Arm,
		XDirection: rec.XDirection,
		StartedAt:  startedAt,
	}
	if err := r.repo.Start(ctx, s); err != nil {
		r.logger.Error("failed to open session", "handle", rec.Handle, "error", err)
	}
}

// RecordDisconnect closes the device's open session.
func (r *Recorder) RecordDisconnect(rec armband.Record) {
	r.end(rec, ReasonDisconnected)
}

// RecordShutdown closes the session of a device released by hub shutdown.
func (r *Recorder) RecordShutdown(rec armband.Record) {
	r.end(rec, ReasonShutdown)
}

func (r *Recorder) end(rec armband.Record, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	n, err := r.repo.End(ctx, r.hubID, rec.Handle, r.now(), reason)
	if err != nil {
		r.logger.Error("failed to close session", "handle", rec.Handle, "error", err)
		return
	}
	if n == 0 {
		r.logger.Warn("no open session to close", "handle", rec.Handle)
	}
}

// RecordCommand counts a command outcome against the device's session.
func (r *Recorder) RecordCommand(h armband.Handle, cmd armband.Command, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.repo.CountCommand(ctx, r.hubID, h, ok)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		r.logger.Warn("command for handle without open session", "handle", h, "command", cmd.String())
	default:
		r.logger.Error("failed to count command", "handle", h, "command", cmd.String(), "error", err)
	}
}
