package audit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrChainBroken is returned by Verify when an entry's link or signature
// does not check out.
var ErrChainBroken = errors.New("audit: chain broken")

// BreakError locates the first broken link.
type BreakError struct {
	Seq    int64
	Reason string
}

func (e *BreakError) Error() string {
	return fmt.Sprintf("audit: chain broken at seq %d: %s", e.Seq, e.Reason)
}

// Unwrap lets errors.Is match ErrChainBroken.
func (e *BreakError) Unwrap() error { return ErrChainBroken }

// Chain links every appended entry to its predecessor: Seq increments by
// one, PrevHash carries the predecessor's Hash and Hash signs the entry.
// Appends are serialized.
type Chain struct {
	sink   Sink
	signer *Signer

	mu       sync.Mutex
	lastSeq  int64
	lastHash string
}

var _ Sink = (*Chain)(nil)

// NewChain wraps sink. When sink implements Tailer the chain resumes from
// the last stored entry.
func NewChain(ctx context.Context, sink Sink, signer *Signer) (*Chain, error) {
	if signer == nil {
		signer = DevSigner()
	}
	c := &Chain{sink: sink, signer: signer}
	if t, ok := sink.(Tailer); ok {
		last, found, err := t.Tail(ctx)
		if err != nil {
			return nil, fmt.Errorf("audit: resume chain: %w", err)
		}
		if found {
			c.lastSeq = last.Seq
			c.lastHash = last.Hash
		}
	}
	return c, nil
}

// Append implements Sink. The chain position only advances when the
// underlying sink accepted the entry.
func (c *Chain) Append(ctx context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.Seq = c.lastSeq + 1
	e.PrevHash = c.lastHash
	e.Hash = ""
	data, err := e.canonical()
	if err != nil {
		return err
	}
	e.Hash = c.signer.Sign(data)

	if err := c.sink.Append(ctx, e); err != nil {
		return err
	}
	c.lastSeq = e.Seq
	c.lastHash = e.Hash
	return nil
}

// Head returns the sequence number and hash of the last appended entry.
func (c *Chain) Head() (int64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeq, c.lastHash
}

// Verify checks entries, which must form a contiguous run of
// the log, against signer. The first entry is trusted as an anchor unless
// its Seq is 1, in which case it must carry no PrevHash.
func Verify(entries []Entry, signer *Signer) error {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	for i, e := range sorted {
		if i == 0 {
			if e.Seq == 1 && e.PrevHash != "" {
				return &BreakError{Seq: e.Seq, Reason: "first entry has a predecessor hash"}
			}
		} else {
			prev := sorted[i-1]
			if e.Seq != prev.Seq+1 {
				return &BreakError{Seq: e.Seq, Reason: fmt.Sprintf("gap after seq %d", prev.Seq)}
			}
			if e.PrevHash != prev.Hash {
				return &BreakError{Seq: e.Seq, Reason: "predecessor hash mismatch"}
			}
		}

		hash := e.Hash
		e.Hash = ""
		data, err := e.canonical()
		if err != nil {
			return &BreakError{Seq: e.Seq, Reason: err.Error()}
		}
		if !signer.Verify(data, hash) {
			return &BreakError{Seq: e.Seq, Reason: "signature mismatch"}
		}
	}
	return nil
}
