package audit

import (
	"context"
	"errors"
	"fmt"
)

// ServiceName is the core service name of the *Journal.
const ServiceName = "audit.journal"

// Journal gives read access to the persisted chain.
type Journal struct {
	sink   *StoreSink
	signer *Signer
}

// NewJournal reads entries from sink and verifies them with signer.
func NewJournal(sink *StoreSink, signer *Signer) *Journal {
	if signer == nil {
		signer = DevSigner()
	}
	return &Journal{sink: sink, signer: signer}
}

// Recent returns the latest limit entries, oldest first. A non-positive
// limit returns the whole log.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return j.sink.List(ctx, limit)
}

// VerifyReport summarizes a full verification pass.
type VerifyReport struct {
	Entries int    `json:"entries"`
	HeadSeq int64  `json:"headSeq"`
	Valid   bool   `json:"valid"`
	BrokeAt int64  `json:"brokeAt,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Verify checks the whole stored chain. A broken chain is reported in the
// result, not as an error; errors mean the log could not be read.
func (j *Journal) Verify(ctx context.Context) (VerifyReport, error) {
	entries, err := j.sink.List(ctx, 0)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("audit: verify: %w", err)
	}
	rep := VerifyReport{Entries: len(entries), Valid: true}
	if n := len(entries); n > 0 {
		rep.HeadSeq = entries[n-1].Seq
	}
	if err := Verify(entries, j.signer); err != nil {
		var be *BreakError
		if !errors.As(err, &be) {
			return VerifyReport{}, err
		}
		rep.Valid = false
		rep.BrokeAt = be.Seq
		rep.Reason = be.Reason
	}
	return rep, nil
}
