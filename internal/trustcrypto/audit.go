package trustcrypto

import (
	"encoding/base64"
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 form used inside signed payloads.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// now is the clock used for new audit signatures.
var now = time.Now

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// AuditPayload is the exact shape that is hashed into the chain and signed.
type AuditPayload struct {
	TransactionID string         `json:"transactionId"`
	Action        string         `json:"action"`
	Actor         string         `json:"actor"`
	Target        string         `json:"target"`
	Metadata      map[string]any `json:"metadata"`
	Timestamp     string         `json:"timestamp"`
}

// NewAuditPayload builds a payload. A nil metadata map is stored as {} so the
// canonical form survives a round-trip through any store.
func NewAuditPayload(transactionID, action, actor, target string, metadata map[string]any, ts time.Time) AuditPayload {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return AuditPayload{
		TransactionID: transactionID,
		Action:        action,
		Actor:         actor,
		Target:        target,
		Metadata:      metadata,
		Timestamp:     FormatTimestamp(ts),
	}
}

// Canonical returns the canonical JSON bytes of the payload.
func (p AuditPayload) Canonical() ([]byte, error) {
	return Canonicalize(p)
}

// AuditSignature is a signature together with the timestamp it covers. The
// timestamp must be stored alongside the signature; verification needs it.
type AuditSignature struct {
	Signature string    `json:"signature"`
	Timestamp time.Time `json:"timestamp"`
}

// SignAuditPayload signs the canonical payload and returns base64.
func SignAuditPayload(p AuditPayload, privKey []byte) (string, error) {
	canon, err := p.Canonical()
	if err != nil {
		return "", opFailed("sign audit payload", err)
	}
	sig, err := Sign(canon, privKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyAuditPayload checks a base64 signature over the canonical payload.
func VerifyAuditPayload(signature string, p AuditPayload, publicKey []byte) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, opFailed("verify audit payload", fmt.Errorf("decode signature: %w", err))
	}
	canon, err := p.Canonical()
	if err != nil {
		return false, opFailed("verify audit payload", err)
	}
	return Verify(sig, canon, publicKey)
}

// CreateAuditSignature signs {transactionId, action, actor, target, metadata,
// timestamp} with the timestamp taken now, truncated to milliseconds.
func CreateAuditSignature(transactionID, action, actor, target string, metadata map[string]any, privKey []byte) (*AuditSignature, error) {
	ts := now().UTC().Truncate(time.Millisecond)
	sig, err := SignAuditPayload(NewAuditPayload(transactionID, action, actor, target, metadata, ts), privKey)
	if err != nil {
		return nil, err
	}
	return &AuditSignature{Signature: sig, Timestamp: ts}, nil
}

// VerifyAuditSignature rebuilds the payload with the original timestamp and
// checks the signature.
func VerifyAuditSignature(signature, transactionID, action, actor, target string, metadata map[string]any, timestamp time.Time, publicKey []byte) (bool, error) {
	return VerifyAuditPayload(signature, NewAuditPayload(transactionID, action, actor, target, metadata, timestamp), publicKey)
}
