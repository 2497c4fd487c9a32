package trustledger

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
)

// ErrChainIntegrity matches every hash, link or signature mismatch and every
// append against a stale head.
var ErrChainIntegrity = errors.New("chain integrity error")

// Integrity failure reasons.
const (
	ReasonStaleHead     = "previous hash does not match chain head"
	ReasonBrokenLink    = "previous hash link broken"
	ReasonHashMismatch  = "hash mismatch"
	ReasonBadSignature  = "signature invalid"
	ReasonIndexSequence = "index out of sequence"
	ReasonWrongChain    = "entry belongs to another chain"
	ReasonUnverifiable  = "signature could not be checked"
)

// IntegrityError reports where a chain stopped being consistent.
type IntegrityError struct {
	ChainID string
	Index   int
	Reason  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("chain %q broken at index %d: %s", e.ChainID, e.Index, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrChainIntegrity }

// IsStaleHead reports whether err is an append rejected because another
// writer moved the chain head first. Such appends may be retried.
func IsStaleHead(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie) && ie.Reason == ReasonStaleHead
}

// VerifyChain walks entries (oldest first, starting at genesis), recomputing
// every hash and, when pub is non-nil, checking every signature. It returns
// an *IntegrityError for the first position that does not match.
func VerifyChain(entries []*Entry, pub ed25519.PublicKey) error {
	prev := GenesisHash
	chainID := ""
	if len(entries) > 0 {
		chainID = entries[0].ChainID
	}
	for i, e := range entries {
		fail := func(reason string) error {
			return &IntegrityError{ChainID: chainID, Index: i, Reason: reason}
		}
		if e.ChainID != chainID {
			return fail(ReasonWrongChain)
		}
		if e.Index != i {
			return fail(ReasonIndexSequence)
		}
		if e.PreviousHash != prev {
			return fail(ReasonBrokenLink)
		}
		if !trustcrypto.VerifyHashChain(e.PreviousHash, e.Payload(), e.Hash) {
			return fail(ReasonHashMismatch)
		}
		if pub != nil {
			ok, err := trustcrypto.VerifyAuditPayload(e.Signature, e.Payload(), pub)
			if err != nil {
				return fail(ReasonUnverifiable)
			}
			if !ok {
				return fail(ReasonBadSignature)
			}
		}
		prev = e.Hash
	}
	return nil
}

// FirstBreak returns the index reported by VerifyChain, or -1 when intact.
func FirstBreak(entries []*Entry, pub ed25519.PublicKey) int {
	var ie *IntegrityError
	if err := VerifyChain(entries, pub); errors.As(err, &ie) {
		return ie.Index
	}
	return -1
}
