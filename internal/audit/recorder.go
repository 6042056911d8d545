package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Sink receives entries. Usually a *Chain.
	Sink Sink

	// Logger receives append failures. Defaults to slog.Default().
	Logger *slog.Logger

	// Now overrides time.Now for testing.
	Now func() time.Time

	// OnFailure, if non-nil, is called after a failed append (metrics hook).
	OnFailure func(actionType string, err error)

	// OnAppend, if non-nil, is called after a successful append.
	OnAppend func(actionType string)
}

// Recorder is the best-effort front of the audit log used by write tools.
// The mutation it describes has already been applied, so a failed append is
// logged and counted but never reported to the caller.
type Recorder struct {
	sink      Sink
	logger    *slog.Logger
	now       func() time.Time
	onFailure func(string, error)
	onAppend  func(string)
}

// NewRecorder creates a recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		sink:      cfg.Sink,
		logger:    logger,
		now:       now,
		onFailure: cfg.OnFailure,
		onAppend:  cfg.OnAppend,
	}
}

// Record stamps e with an ID and timestamp and appends it.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.sink == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = r.now().UTC()

	if err := r.sink.Append(ctx, e); err != nil {
		r.logger.Error("audit append failed; mutation already applied",
			"action", e.ActionType,
			"entity_id", e.EntityID,
			"error", err,
		)
		if r.onFailure != nil {
			r.onFailure(e.ActionType, err)
		}
		return
	}
	if r.onAppend != nil {
		r.onAppend(e.ActionType)
	}
}
