package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Sink receives audit entries. Append must not modify e.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Tailer is implemented by sinks that can report their most recent entry,
// letting a Chain resume after a restart.
type Tailer interface {
	Tail(ctx context.Context) (Entry, bool, error)
}

// JSONLSink writes one JSON object per line.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLSink returns a sink writing to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// Append implements Sink.
func (s *JSONLSink) Append(_ context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("audit: write jsonl: %w", err)
	}
	return nil
}

type multiSink []Sink

// Multi fans every entry out to all sinks. All sinks are attempted; their
// failures are joined. Tail is served by the first sink that supports it.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Append(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiSink) Tail(ctx context.Context) (Entry, bool, error) {
	for _, s := range m {
		if t, ok := s.(Tailer); ok {
			return t.Tail(ctx)
		}
	}
	return Entry{}, false, nil
}
