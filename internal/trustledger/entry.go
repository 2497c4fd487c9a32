package trustledger

import (
	"encoding/json"
	"time"

	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
)

// Entry is a single audit record in an agent's chain. Its JSON form carries
// the timestamp exactly as it appears in the signed payload.
type Entry struct {
	ChainID       string         `json:"chainId"`
	Index         int            `json:"index"`
	TransactionID string         `json:"transactionId"`
	Action        string         `json:"action"`
	Actor         string         `json:"actor"`
	Target        string         `json:"target"`
	Metadata      map[string]any `json:"metadata"`
	Timestamp     time.Time      `json:"timestamp"`
	PreviousHash  string         `json:"previousHash"`
	Hash          string         `json:"hash"`
	Signature     string         `json:"signature"`
}

// NewEntry builds an unsigned, unlinked entry with its timestamp truncated to
// the millisecond precision used in signed payloads.
func NewEntry(chainID, transactionID, action, actor, target string, metadata map[string]any, ts time.Time) *Entry {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Entry{
		ChainID:       chainID,
		TransactionID: transactionID,
		Action:        action,
		Actor:         actor,
		Target:        target,
		Metadata:      metadata,
		Timestamp:     ts.UTC().Truncate(time.Millisecond),
	}
}

// MarshalJSON renders Timestamp with trustcrypto.TimestampLayout.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return json.Marshal(struct {
		plain
		Timestamp string `json:"timestamp"`
	}{plain: plain(e), Timestamp: trustcrypto.FormatTimestamp(e.Timestamp)})
}

// Payload returns the part of the entry that is hashed and signed.
func (e *Entry) Payload() trustcrypto.AuditPayload {
	return trustcrypto.NewAuditPayload(e.TransactionID, e.Action, e.Actor, e.Target, e.Metadata, e.Timestamp)
}

// ComputeHash returns the chain link for the entry given its PreviousHash.
func (e *Entry) ComputeHash() (string, error) {
	return trustcrypto.CreateHashChain(e.PreviousHash, e.Payload())
}

// Sign fills Signature with a base64 Ed25519 signature over the payload.
func (e *Entry) Sign(privKey []byte) error {
	sig, err := trustcrypto.SignAuditPayload(e.Payload(), privKey)
	if err != nil {
		return err
	}
	e.Signature = sig
	return nil
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
