package model

import (
	"time"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// Audit trail pagination bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = trustledger.MaxQueryLimit
)

// AuditQuery filters the audit trail. AgentID selects a single chain.
type AuditQuery struct {
	TransactionID string
	AgentID       string
	Limit         int
	Offset        int
	// Verify walks every chain touched by the result before returning it.
	Verify bool
}

// Normalize validates bounds and applies defaults.
func (q *AuditQuery) Normalize() error {
	if q.Limit < 0 {
		return invalid("limit", "must not be negative", "an integer ≥ 0")
	}
	if q.Offset < 0 {
		return invalid("offset", "must not be negative", "an integer ≥ 0")
	}
	if q.Limit == 0 {
		q.Limit = DefaultAuditLimit
	}
	if q.Limit > MaxAuditLimit {
		q.Limit = MaxAuditLimit
	}
	return nil
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries []*trustledger.Entry `json:"entries"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// Agent listing bounds and sort keys.
const (
	DefaultAgentsLimit = 20
	MaxAgentsLimit     = 100

	SortTrustScore       = "trustScore"
	SortTemporalScore    = "temporalScore"
	SortConfidence       = "confidence"
	SortDeclarationCount = "declarationCount"
	SortLastUpdated      = "lastUpdated"
	SortAgentID          = "agentId"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// AgentsQuery pages through agents ranked by one attribute.
type AgentsQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Normalize validates the query and applies defaults.
func (q *AgentsQuery) Normalize() error {
	switch {
	case q.Page < 0:
		return invalid("page", "must not be negative", "an integer ≥ 1")
	case q.Limit < 0:
		return invalid("limit", "must not be negative", "an integer ≥ 0")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultAgentsLimit
	}
	if q.Limit > MaxAgentsLimit {
		q.Limit = MaxAgentsLimit
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortTrustScore
	case SortTrustScore, SortTemporalScore, SortConfidence, SortDeclarationCount, SortLastUpdated, SortAgentID:
	default:
		return invalid("sort_by", "unknown sort key "+q.SortBy,
			"one of trustScore, temporalScore, confidence, declarationCount, lastUpdated, agentId")
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = SortDesc
	case SortAsc, SortDesc:
	default:
		return invalid("sort_order", "unknown sort order "+q.SortOrder, "asc or desc")
	}
	return nil
}

// AgentsPage is one page of ranked agents.
type AgentsPage struct {
	Agents []*TrustScore `json:"agents"`
	Total  int           `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

// TrendPoint is the score as known at the end of one UTC day.
type TrendPoint struct {
	Date          time.Time        `json:"date"`
	Overall       float64          `json:"overall"`
	TemporalScore float64          `json:"temporal_score"`
	Category      scoring.Category `json:"category"`
	Declarations  int              `json:"declarations"`
}

// Trends is a daily series for one agent. Days before the agent's first
// declaration are omitted.
type Trends struct {
	AgentID string       `json:"agent_id"`
	Days    int          `json:"days"`
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Points  []TrendPoint `json:"points"`
}
