package minerid

import (
	"errors"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// ErrKind classifies why an output was rejected as a miner id candidate
type ErrKind int

// Rejection kinds
const (
	KindExtraction ErrKind = iota + 1
	KindSchema
	KindVerification
	KindUnsupportedVersion
	KindHeightMismatch
)

// String returns the kind name used in log fields
func (k ErrKind) String() string {
	switch k {
	case KindExtraction:
		return "extraction"
	case KindSchema:
		return "schema"
	case KindVerification:
		return "verification"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindHeightMismatch:
		return "height_mismatch"
	}
	return "unknown"
}

// CandidateError is the rejection of a single coinbase output. It is never
// fatal to a scan: the scanner logs it and moves to the next output.
type CandidateError struct {
	Kind   ErrKind
	TxID   chainhash.Hash
	Vout   uint32
	Reason string
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("miner id %s failure in txid %s output %d: %s", e.Kind, e.TxID.String(), e.Vout, e.Reason)
}

func newCandidateError(kind ErrKind, reason string) *CandidateError {
	return &CandidateError{Kind: kind, Reason: reason}
}

// IsCandidateError checks whether an error is a CandidateError and returns it.
func IsCandidateError(err error) (*CandidateError, bool) {
	var c *CandidateError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}
