// Package model defines the trust domain types shared by the service,
// repository and handler layers.
package model

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
)

// MaxAgentIDLength bounds agent identifiers.
const MaxAgentIDLength = 100

// Evidence supports a declaration.
type Evidence struct {
	Type        scoring.EvidenceType `json:"type"`
	Description string               `json:"description"`
	URL         string               `json:"url,omitempty"`
}

// Signal returns the part of the evidence the scorer looks at.
func (e Evidence) Signal() scoring.EvidenceSignal {
	return scoring.EvidenceSignal{Type: e.Type, Verifiable: e.URL != ""}
}

// Signals converts a slice of evidence.
func Signals(ev []Evidence) []scoring.EvidenceSignal {
	out := make([]scoring.EvidenceSignal, len(ev))
	for i, e := range ev {
		out[i] = e.Signal()
	}
	return out
}

// Declaration is a signed trust assertion about one agent. It is immutable
// once sealed: the signature covers the canonical JSON of SigningBody.
type Declaration struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	AgentID       string          `json:"agent_id"       db:"agent_id"`
	Assertion     string          `json:"assertion"      db:"assertion"`
	Evidence      []Evidence      `json:"evidence"       db:"evidence"`
	Factors       scoring.Factors `json:"factors"        db:"factors"`
	CreatedBy     string          `json:"created_by"     db:"created_by"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	LocalScore    float64         `json:"local_score"    db:"local_score"`
	SignerKey     string          `json:"signer_key"     db:"signer_key"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	Hash          string          `json:"hash"           db:"hash"`
	Signature     string          `json:"signature"      db:"signature"`
}

// signingBody is everything in a Declaration except its hash and signature,
// with timestamps fixed to millisecond precision.
type signingBody struct {
	ID            string          `json:"id"`
	AgentID       string          `json:"agent_id"`
	Assertion     string          `json:"assertion"`
	Evidence      []Evidence      `json:"evidence"`
	Factors       scoring.Factors `json:"factors"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     string          `json:"created_at"`
	ExpiresAt     string          `json:"expires_at,omitempty"`
	LocalScore    float64         `json:"local_score"`
	SignerKey     string          `json:"signer_key"`
	TransactionID string          `json:"transaction_id"`
}

// SigningBody returns the canonical bytes that are hashed and signed.
func (d *Declaration) SigningBody() ([]byte, error) {
	body := signingBody{
		ID:            d.ID.String(),
		AgentID:       d.AgentID,
		Assertion:     d.Assertion,
		Evidence:      d.Evidence,
		Factors:       d.Factors,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     trustcrypto.FormatTimestamp(d.CreatedAt),
		LocalScore:    d.LocalScore,
		SignerKey:     d.SignerKey,
		TransactionID: d.TransactionID,
	}
	if body.Evidence == nil {
		body.Evidence = []Evidence{}
	}
	if body.Factors == nil {
		body.Factors = scoring.Factors{}
	}
	if d.ExpiresAt != nil {
		body.ExpiresAt = trustcrypto.FormatTimestamp(*d.ExpiresAt)
	}
	return trustcrypto.Canonicalize(body)
}

// Seal sets SignerKey, Hash and Signature using the given keypair.
func (d *Declaration) Seal(kp *trustcrypto.Keypair) error {
	d.SignerKey = kp.PublicKeyHex()
	body, err := d.SigningBody()
	if err != nil {
		return err
	}
	sig, err := trustcrypto.Sign(body, kp.PrivateKey)
	if err != nil {
		return err
	}
	d.Hash = trustcrypto.Hash(body)
	d.Signature = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// VerifySeal checks the hash and signature against pub. When pub is nil the
// embedded SignerKey is used.
func (d *Declaration) VerifySeal(pub ed25519.PublicKey) (bool, error) {
	if pub == nil {
		raw, err := hex.DecodeString(d.SignerKey)
		if err != nil {
			return false, fmt.Errorf("decode signer key: %w", err)
		}
		pub = raw
	}
	body, err := d.SigningBody()
	if err != nil {
		return false, err
	}
	if trustcrypto.Hash(body) != d.Hash {
		return false, nil
	}
	sig, err := base64.StdEncoding.DecodeString(d.Signature)
	if err != nil {
		return false, nil
	}
	return trustcrypto.Verify(sig, body, pub)
}

// Active reports whether the declaration still counts towards aggregation at t.
func (d *Declaration) Active(t time.Time) bool {
	return d.ExpiresAt == nil || d.ExpiresAt.After(t)
}

// DeclarationInput is the payload for creating a declaration.
type DeclarationInput struct {
	AgentID   string          `json:"agent_id"`
	Assertion string          `json:"assertion"`
	Evidence  []Evidence      `json:"evidence"`
	Factors   scoring.Factors `json:"factors"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	// CreatedBy is set by the handler from the bearer token when auth is on.
	CreatedBy string `json:"created_by"`
}

// Validate checks the input against the declaration rules as of now.
func (in *DeclarationInput) Validate(now time.Time) error {
	agentID := strings.TrimSpace(in.AgentID)
	switch {
	case agentID == "":
		return invalid("agent_id", "must not be empty", "")
	case utf8.RuneCountInString(agentID) > MaxAgentIDLength:
		return invalid("agent_id", "too long", fmt.Sprintf("at most %d characters", MaxAgentIDLength))
	}
	if strings.TrimSpace(in.Assertion) == "" {
		return invalid("assertion", "must not be empty", "")
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return invalid("created_by", "must not be empty", "")
	}
	if err := ValidateEvidence(in.Evidence, true); err != nil {
		return err
	}
	if err := ValidateFactors(in.Factors); err != nil {
		return err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return invalid("expires_at", "must be in the future", "a timestamp after "+trustcrypto.FormatTimestamp(now))
	}
	return nil
}

// ValidateEvidence checks each evidence item. When required is set at least
// one item must be present.
func ValidateEvidence(ev []Evidence, required bool) error {
	if required && len(ev) == 0 {
		return invalid("evidence", "at least one item is required", "")
	}
	for i, e := range ev {
		field := fmt.Sprintf("evidence[%d]", i)
		if !e.Type.Valid() {
			return invalid(field+".type", fmt.Sprintf("unknown evidence type %q", e.Type), evidenceTypeList())
		}
		if strings.TrimSpace(e.Description) == "" {
			return invalid(field+".description", "must not be empty", "")
		}
		if e.URL != "" {
			u, err := url.Parse(e.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return invalid(field+".url", "must be an absolute http(s) URL", "http:// or https:// URL")
			}
		}
	}
	return nil
}

// ValidateFactors checks pillar names and value ranges.
func ValidateFactors(f scoring.Factors) error {
	for _, p := range scoring.Pillars {
		if v, ok := f[p]; ok && (math.IsNaN(v) || v < 0 || v > 1) {
			return invalid("factors."+string(p), fmt.Sprintf("value %v out of range", v), "a number in [0,1]")
		}
	}
	for p := range f {
		if !p.Valid() {
			return invalid("factors."+string(p), "unknown pillar", pillarList())
		}
	}
	return nil
}

func evidenceTypeList() string {
	names := make([]string, len(scoring.EvidenceTypes))
	for i, t := range scoring.EvidenceTypes {
		names[i] = string(t)
	}
	return "one of " + strings.Join(names, ", ")
}

func pillarList() string {
	names := make([]string, len(scoring.Pillars))
	for i, p := range scoring.Pillars {
		names[i] = string(p)
	}
	return "one of " + strings.Join(names, ", ")
}
