package model

import (
	"time"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
)

// TrustScore is an immutable snapshot of an agent's aggregated trust.
type TrustScore struct {
	AgentID          string                                  `json:"agent_id"`
	Overall          float64                                 `json:"overall"`
	Confidence       float64                                 `json:"confidence"`
	Breakdown        map[scoring.Pillar]scoring.Contribution `json:"breakdown"`
	TemporalScore    float64                                 `json:"temporal_score"`
	Category         scoring.Category                        `json:"category"`
	LastUpdated      time.Time                               `json:"last_updated"`
	ComputedAt       time.Time                               `json:"computed_at"`
	DeclarationCount int                                     `json:"declaration_count"`
	EvidenceCount    int                                     `json:"evidence_count"`
	// Degraded is set when the snapshot was served from cache because the
	// declaration store could not be read.
	Degraded bool `json:"degraded,omitempty"`
}

// AssertionInput is an ad-hoc assertion to be scored without persisting it.
type AssertionInput struct {
	Assertion     string          `json:"assertion"`
	Evidence      []Evidence      `json:"evidence"`
	Factors       scoring.Factors `json:"factors,omitempty"`
	RequiredScore float64         `json:"required_score,omitempty"`
}

// Validate checks the assertion input.
func (in *AssertionInput) Validate() error {
	if in.Assertion == "" {
		return invalid("assertion", "must not be empty", "")
	}
	if in.RequiredScore < 0 || in.RequiredScore > 1 {
		return invalid("required_score", "out of range", "a number in [0,1]")
	}
	if err := ValidateEvidence(in.Evidence, len(in.Factors) == 0); err != nil {
		return err
	}
	return ValidateFactors(in.Factors)
}

// CreateDeclarationResult is returned after a declaration is stored and audited.
type CreateDeclarationResult struct {
	Declaration    *Declaration `json:"declaration"`
	AuditEntryHash string       `json:"audit_entry_hash"`
}
