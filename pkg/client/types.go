package client

import "time"

// Evidence supports a declaration or assertion.
type Evidence struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

// DeclarationRequest is the payload for CreateDeclaration. CreatedBy is
// ignored by the server when it authenticates the caller by token.
type DeclarationRequest struct {
	AgentID   string             `json:"agent_id"`
	Assertion string             `json:"assertion"`
	Evidence  []Evidence         `json:"evidence"`
	Factors   map[string]float64 `json:"factors,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
	CreatedBy string             `json:"created_by,omitempty"`
}

// Declaration is a signed trust declaration as stored by the service.
type Declaration struct {
	ID            string             `json:"id"`
	AgentID       string             `json:"agent_id"`
	Assertion     string             `json:"assertion"`
	Evidence      []Evidence         `json:"evidence"`
	Factors       map[string]float64 `json:"factors"`
	CreatedBy     string             `json:"created_by"`
	CreatedAt     time.Time          `json:"created_at"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	LocalScore    float64            `json:"local_score"`
	SignerKey     string             `json:"signer_key"`
	TransactionID string             `json:"transaction_id"`
	Hash          string             `json:"hash"`
	Signature     string             `json:"signature"`
}

// DeclarationResult is returned by CreateDeclaration.
type DeclarationResult struct {
	Declaration    Declaration `json:"declaration"`
	AuditEntryHash string      `json:"audit_entry_hash"`
}

// Contribution is one pillar's share of a score.
type Contribution struct {
	Weight       float64 `json:"weight"`
	Average      float64 `json:"average"`
	Contribution float64 `json:"contribution"`
	Samples      int     `json:"samples"`
}

// TrustScore is an aggregated score snapshot.
type TrustScore struct {
	AgentID          string                  `json:"agent_id"`
	Overall          float64                 `json:"overall"`
	Confidence       float64                 `json:"confidence"`
	Breakdown        map[string]Contribution `json:"breakdown"`
	TemporalScore    float64                 `json:"temporal_score"`
	Category         string                  `json:"category"`
	LastUpdated      time.Time               `json:"last_updated"`
	ComputedAt       time.Time               `json:"computed_at"`
	DeclarationCount int                     `json:"declaration_count"`
	EvidenceCount    int                     `json:"evidence_count"`
	Degraded         bool                    `json:"degraded,omitempty"`
}

// AssertionRequest is an ad-hoc assertion for VerifyAssertion.
type AssertionRequest struct {
	Assertion     string             `json:"assertion"`
	Evidence      []Evidence         `json:"evidence,omitempty"`
	Factors       map[string]float64 `json:"factors,omitempty"`
	RequiredScore float64            `json:"required_score,omitempty"`
}

// Finding is one line of an assessment rationale.
type Finding struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
}

// Assessment is the outcome of VerifyAssertion.
type Assessment struct {
	Verified      bool                    `json:"verified"`
	Score         float64                 `json:"score"`
	RequiredScore float64                 `json:"required_score"`
	Category      string                  `json:"category"`
	Breakdown     map[string]Contribution `json:"breakdown"`
	Rationale     []Finding               `json:"rationale"`
}

// AuditEntry is one record of an agent's audit chain.
type AuditEntry struct {
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

// AuditQuery filters AuditTrail. Zero values are omitted.
type AuditQuery struct {
	TransactionID string
	AgentID       string
	Limit         int
	Offset        int
	Verify        bool
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries []AuditEntry `json:"entries"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// AgentsQuery pages through ranked agents. Zero values select server defaults.
type AgentsQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// AgentsPage is one page of ranked agents.
type AgentsPage struct {
	Agents []TrustScore `json:"agents"`
	Total  int          `json:"total"`
	Page   int          `json:"page"`
	Limit  int          `json:"limit"`
}

// TrendPoint is one day of a trend series.
type TrendPoint struct {
	Date          time.Time `json:"date"`
	Overall       float64   `json:"overall"`
	TemporalScore float64   `json:"temporal_score"`
	Category      string    `json:"category"`
	Declarations  int       `json:"declarations"`
}

// Trends is a daily score series.
type Trends struct {
	AgentID string       `json:"agent_id"`
	Days    int          `json:"days"`
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Points  []TrendPoint `json:"points"`
}

// LedgerOverview summarises one audit chain.
type LedgerOverview struct {
	ChainID string `json:"chain_id"`
	Entries int    `json:"entries"`
	Head    string `json:"head"`
}

// LedgerVerification is the outcome of VerifyLedger. Index and Reason are
// set when Valid is false.
type LedgerVerification struct {
	ChainID string `json:"chain_id"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Index   int    `json:"index,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ServiceKey is the service's Ed25519 verification key.
type ServiceKey struct {
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
	Base64    string `json:"base64"`
}
