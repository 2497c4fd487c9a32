package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/cache"
	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
)

const (
	scoreKeyPrefix     = "trust:score:"
	lastScoreKeyPrefix = "trust:score:last:"
)

// CalculateTrustScore returns the agent's current score snapshot. Fresh
// snapshots are served from cache. When the declaration store cannot be read
// the last known snapshot is returned with Degraded set.
func (e *Engine) CalculateTrustScore(ctx context.Context, agentID string) (*model.TrustScore, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, &model.ErrValidation{Field: "agent_id", Msg: "must not be empty"}
	}

	if ts, ok := e.cachedScore(ctx, scoreKeyPrefix+agentID); ok {
		e.cacheLookup(true)
		return ts, nil
	}
	e.cacheLookup(false)

	gen := e.generation(agentID)
	decls, err := e.store.ListByAgent(ctx, agentID)
	if err != nil {
		if ts, ok := e.cachedScore(ctx, lastScoreKeyPrefix+agentID); ok {
			e.logger.Warn("declaration store unavailable; serving last known score",
				zap.String("agent_id", agentID),
				zap.Error(err),
			)
			if e.hooks.DegradedRead != nil {
				e.hooks.DegradedRead()
			}
			ts.Degraded = true
			return ts, nil
		}
		return nil, fmt.Errorf("load declarations: %w", err)
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrAgentNotFound, agentID)
	}

	ts := e.snapshot(agentID, decls, e.now().UTC())
	e.storeScore(ctx, ts, gen)
	return ts, nil
}

// snapshot aggregates the declarations that are active at `at`. Declarations
// created after `at` are ignored so the same function serves trend points.
func (e *Engine) snapshot(agentID string, decls []*model.Declaration, at time.Time) *model.TrustScore {
	ts := &model.TrustScore{
		AgentID:    agentID,
		Breakdown:  map[scoring.Pillar]scoring.Contribution{},
		Category:   scoring.Critical,
		ComputedAt: at,
	}

	var (
		sets    []scoring.Factors
		signals []scoring.EvidenceSignal
		newest  time.Time
	)
	for _, d := range decls {
		if d.CreatedAt.After(at) {
			continue
		}
		if d.CreatedAt.After(ts.LastUpdated) {
			ts.LastUpdated = d.CreatedAt
		}
		if !d.Active(at) {
			continue
		}
		sets = append(sets, d.Factors)
		signals = append(signals, model.Signals(d.Evidence)...)
		if d.CreatedAt.After(newest) {
			newest = d.CreatedAt
		}
	}
	if len(sets) == 0 {
		return ts
	}

	res := e.cfg.Weights.Aggregate(sets)
	recency := e.cfg.Decay.Multiplier(at.Sub(newest))

	ts.Overall = res.Overall
	ts.Breakdown = res.Breakdown
	ts.TemporalScore = e.cfg.Decay.Apply(res.Overall, at.Sub(newest))
	ts.Confidence = scoring.Confidence(signals, recency)
	ts.Category = scoring.CategoryFor(ts.TemporalScore)
	ts.DeclarationCount = len(sets)
	ts.EvidenceCount = len(signals)
	return ts
}

func (e *Engine) cacheLookup(hit bool) {
	if e.cache != nil && e.hooks.CacheLookup != nil {
		e.hooks.CacheLookup(hit)
	}
}

func (e *Engine) cachedScore(ctx context.Context, key string) (*model.TrustScore, bool) {
	if e.cache == nil {
		return nil, false
	}
	b, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			e.logger.Warn("score cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var ts model.TrustScore
	if err := json.Unmarshal(b, &ts); err != nil {
		e.logger.Warn("score cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &ts, true
}

func (e *Engine) generation(agentID string) uint64 {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	return e.gens[agentID]
}

// storeScore caches ts unless the agent was invalidated after gen was read,
// in which case ts may predate a new declaration.
func (e *Engine) storeScore(ctx context.Context, ts *model.TrustScore, gen uint64) {
	if e.cache == nil {
		return
	}
	b, err := json.Marshal(ts)
	if err != nil {
		e.logger.Warn("encode score for cache", zap.Error(err))
		return
	}

	e.genMu.Lock()
	defer e.genMu.Unlock()
	if e.gens[ts.AgentID] != gen {
		e.logger.Debug("score snapshot superseded; not caching", zap.String("agent_id", ts.AgentID))
		return
	}
	if err := e.cache.Set(ctx, scoreKeyPrefix+ts.AgentID, b, e.cfg.CacheTTL); err != nil {
		e.logger.Warn("score cache write failed", zap.String("agent_id", ts.AgentID), zap.Error(err))
		return
	}
	if err := e.cache.Set(ctx, lastScoreKeyPrefix+ts.AgentID, b, e.cfg.StaleTTL); err != nil {
		e.logger.Warn("score cache write failed", zap.String("agent_id", ts.AgentID), zap.Error(err))
	}
}

// invalidate drops the fresh snapshot. The last known snapshot is kept for
// degraded reads.
func (e *Engine) invalidate(ctx context.Context, agentID string) {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	e.gens[agentID]++
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, scoreKeyPrefix+agentID); err != nil {
		e.logger.Warn("score cache invalidation failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}
