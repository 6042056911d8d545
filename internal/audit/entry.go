// Package audit records applied mutations in an append-only, hash-chained
// log. Nothing in this package updates or deletes an entry once written.
package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one applied mutation.
type Entry struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	ActionType string `json:"actionType"`
	// EntityID is empty for creates.
	EntityID string `json:"entityId,omitempty"`
	// BeforeState is nil for creates.
	BeforeState any       `json:"beforeState"`
	AfterState  any       `json:"afterState"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	PrevHash    string    `json:"prevHash,omitempty"`
	Hash        string    `json:"hash,omitempty"`
}

// canonicalEntry fixes the field order hashed by the chain. Hash itself is
// excluded.
type canonicalEntry struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	ActionType  string `json:"actionType"`
	EntityID    string `json:"entityId"`
	BeforeState any    `json:"beforeState"`
	AfterState  any    `json:"afterState"`
	Reason      string `json:"reason"`
	Timestamp   string `json:"timestamp"`
	PrevHash    string `json:"prevHash"`
}

// canonical returns the bytes signed for e. States are normalized through
// a JSON round-trip so a struct and the map read back from storage hash
// identically.
func (e Entry) canonical() ([]byte, error) {
	before, err := normalize(e.BeforeState)
	if err != nil {
		return nil, fmt.Errorf("audit: before state: %w", err)
	}
	after, err := normalize(e.AfterState)
	if err != nil {
		return nil, fmt.Errorf("audit: after state: %w", err)
	}
	return json.Marshal(canonicalEntry{
		ID:          e.ID,
		Seq:         e.Seq,
		ActionType:  e.ActionType,
		EntityID:    e.EntityID,
		BeforeState: before,
		AfterState:  after,
		Reason:      e.Reason,
		Timestamp:   formatTime(e.Timestamp),
		PrevHash:    e.PrevHash,
	})
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
