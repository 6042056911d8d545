package audit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kaysia/kasa/internal/store"
)

// StoreSink persists entries in the audit_logs table.
type StoreSink struct {
	adapter store.Adapter
}

var (
	_ Sink   = (*StoreSink)(nil)
	_ Tailer = (*StoreSink)(nil)
)

// NewStoreSink returns a sink writing through adapter.
func NewStoreSink(adapter store.Adapter) *StoreSink {
	return &StoreSink{adapter: adapter}
}

// Append implements Sink.
func (s *StoreSink) Append(ctx context.Context, e Entry) error {
	row := store.Row{
		"id":           e.ID,
		"seq":          e.Seq,
		"action_type":  e.ActionType,
		"entity_id":    nullable(e.EntityID),
		"before_state": e.BeforeState,
		"after_state":  e.AfterState,
		"reason":       nullable(e.Reason),
		"created_at":   formatTime(e.Timestamp),
		"prev_hash":    nullable(e.PrevHash),
		"hash":         nullable(e.Hash),
	}
	if _, err := s.adapter.Insert(ctx, store.TableAuditLogs, row); err != nil {
		return fmt.Errorf("audit: store append: %w", err)
	}
	return nil
}

// Tail implements Tailer.
func (s *StoreSink) Tail(ctx context.Context) (Entry, bool, error) {
	rows, err := s.adapter.Select(ctx, store.TableAuditLogs, store.Query{OrderBy: "seq", Desc: true, Limit: 1})
	if err != nil {
		return Entry{}, false, fmt.Errorf("audit: tail: %w", err)
	}
	if len(rows) == 0 {
		return Entry{}, false, nil
	}
	e, err := fromRow(rows[0])
	return e, err == nil, err
}

// List returns the most recent limit entries in ascending sequence order.
// A non-positive limit returns the whole log.
func (s *StoreSink) List(ctx context.Context, limit int) ([]Entry, error) {
	q := store.Query{OrderBy: "seq", Desc: true}
	if limit > 0 {
		q.Limit = limit
	}
	rows, err := s.adapter.Select(ctx, store.TableAuditLogs, q)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	slices.Reverse(out)
	return out, nil
}

func fromRow(r store.Row) (Entry, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.String("created_at"))
	if err != nil {
		return Entry{}, fmt.Errorf("audit: entry %s: bad timestamp: %w", r.ID(), err)
	}
	return Entry{
		ID:          r.ID(),
		Seq:         int64(r.Float("seq")),
		ActionType:  r.String("action_type"),
		EntityID:    r.String("entity_id"),
		BeforeState: r["before_state"],
		AfterState:  r["after_state"],
		Reason:      r.String("reason"),
		Timestamp:   ts,
		PrevHash:    r.String("prev_hash"),
		Hash:        r.String("hash"),
	}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
