package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
)

// GetTrustTrends returns one point per UTC day over the timeframe ending
// today. Each point is the score as known at the end of that day (or now,
// for today), so a day without new declarations carries the previous
// declarations forward with further decay. Days before the agent's first
// declaration are omitted.
func (e *Engine) GetTrustTrends(ctx context.Context, agentID, timeframe string) (*model.Trends, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, &model.ErrValidation{Field: "agent_id", Msg: "must not be empty"}
	}
	days, err := scoring.ParseTimeframe(timeframe)
	if err != nil {
		return nil, &model.ErrValidation{Field: "timeframe", Msg: err.Error(), Expected: "Nd or Nw, 1 to 365 days"}
	}

	decls, err := e.store.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load declarations: %w", err)
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrAgentNotFound, agentID)
	}

	first := decls[0].CreatedAt
	for _, d := range decls[1:] {
		if d.CreatedAt.Before(first) {
			first = d.CreatedAt
		}
	}

	now := e.now().UTC()
	today := now.Truncate(scoring.Day)
	from := today.AddDate(0, 0, -(days - 1))

	trends := &model.Trends{AgentID: agentID, Days: days, From: from, To: now, Points: []model.TrendPoint{}}
	for day := from; !day.After(today); day = day.AddDate(0, 0, 1) {
		at := day.Add(scoring.Day - time.Millisecond)
		if at.After(now) {
			at = now
		}
		if first.After(at) {
			continue
		}
		ts := e.snapshot(agentID, decls, at)
		trends.Points = append(trends.Points, model.TrendPoint{
			Date:          day,
			Overall:       ts.Overall,
			TemporalScore: ts.TemporalScore,
			Category:      ts.Category,
			Declarations:  ts.DeclarationCount,
		})
	}
	return trends, nil
}
