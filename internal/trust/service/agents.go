package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
)

// GetAgents ranks every agent with at least one declaration. Ties are broken
// by agent id ascending regardless of the requested order.
func (e *Engine) GetAgents(ctx context.Context, q model.AgentsQuery) (*model.AgentsPage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	ids, err := e.store.ListAgentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	scores := make([]*model.TrustScore, 0, len(ids))
	for _, id := range ids {
		ts, err := e.CalculateTrustScore(ctx, id)
		if errors.Is(err, model.ErrAgentNotFound) {
			// Deleted between listing and scoring.
			continue
		}
		if err != nil {
			return nil, err
		}
		scores = append(scores, ts)
	}

	key := sortKey(q.SortBy)
	desc := q.SortOrder == model.SortDesc
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if c := key(a, b); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		return a.AgentID < b.AgentID
	})

	page := &model.AgentsPage{Agents: []*model.TrustScore{}, Total: len(scores), Page: q.Page, Limit: q.Limit}
	// Compare pages before multiplying so huge page numbers cannot overflow.
	if q.Page-1 < (len(scores)+q.Limit-1)/q.Limit {
		start := (q.Page - 1) * q.Limit
		end := min(start+q.Limit, len(scores))
		page.Agents = scores[start:end]
	}
	return page, nil
}

// sortKey returns a three-way comparison for the named attribute.
func sortKey(name string) func(a, b *model.TrustScore) int {
	switch name {
	case model.SortTemporalScore:
		return func(a, b *model.TrustScore) int { return cmpFloat(a.TemporalScore, b.TemporalScore) }
	case model.SortConfidence:
		return func(a, b *model.TrustScore) int { return cmpFloat(a.Confidence, b.Confidence) }
	case model.SortDeclarationCount:
		return func(a, b *model.TrustScore) int { return a.DeclarationCount - b.DeclarationCount }
	case model.SortLastUpdated:
		return func(a, b *model.TrustScore) int { return a.LastUpdated.Compare(b.LastUpdated) }
	case model.SortAgentID:
		return func(a, b *model.TrustScore) int {
			switch {
			case a.AgentID < b.AgentID:
				return -1
			case a.AgentID > b.AgentID:
				return 1
			}
			return 0
		}
	default:
		return func(a, b *model.TrustScore) int { return cmpFloat(a.Overall, b.Overall) }
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
