// Package health probes the collaborators the trust service depends on
// (database, cache) and tracks their status with a fail threshold so that a
// single slow ping does not flip the service to unhealthy.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one collaborator. A Critical collaborator makes the whole
// service report unhealthy when it is down.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// Status is the last known state of a collaborator.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Critical  bool      `json:"critical"`
	FailCount int       `json:"fail_count"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// AlertFunc is an optional callback for dispatching state transitions.
type AlertFunc func(ctx context.Context, eventType string, payload map[string]string)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, healthy bool)

// ServingFunc is called whenever the overall serving state is recomputed.
type ServingFunc func(serving bool)

// Event types passed to AlertFunc.
const (
	EventUnhealthy = "trust.collaborator.unhealthy"
	EventRecovered = "trust.collaborator.recovered"
)

// Checker runs periodic collaborator probes.
type Checker struct {
	probes    []Probe
	mu        sync.Mutex
	status    map[string]*Status
	cfg       Config
	onAlert   AlertFunc
	onMetrics MetricsRecordFunc
	onServing ServingFunc
	logger    *zap.Logger
}

// New creates a new Checker. Every probe starts out healthy.
func New(probes []Probe, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	status := make(map[string]*Status, len(probes))
	for _, p := range probes {
		status[p.Name] = &Status{Name: p.Name, Healthy: true, Critical: p.Critical}
	}
	return &Checker{
		probes: probes,
		status: status,
		cfg:    cfg,
		logger: logger,
	}
}

// SetAlert configures the alert callback.
func (h *Checker) SetAlert(fn AlertFunc) { h.onAlert = fn }

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) { h.onMetrics = fn }

// SetServing configures the serving-state callback.
func (h *Checker) SetServing(fn ServingFunc) { h.onServing = fn }

// Start runs the check loop until ctx is cancelled. The first round runs
// immediately.
func (h *Checker) Start(ctx context.Context) {
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll probes every collaborator concurrently and waits for all of them.
func (h *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range h.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			h.checkOne(ctx, p)
		}(p)
	}
	wg.Wait()

	if h.onServing != nil {
		h.onServing(h.Healthy())
	}
}

func (h *Checker) checkOne(ctx context.Context, p Probe) {
	pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	err := p.Check(pctx)
	cancel()

	success := err == nil
	if h.onMetrics != nil {
		h.onMetrics(p.Name, success)
	}

	h.mu.Lock()
	st := h.status[p.Name]
	prevCount := st.FailCount
	if success {
		st.FailCount = 0
		st.LastError = ""
	} else {
		st.FailCount++
		st.LastError = err.Error()
	}
	count := st.FailCount
	st.CheckedAt = time.Now().UTC()
	switch {
	case success:
		st.Healthy = true
	case count >= h.cfg.FailThreshold:
		st.Healthy = false
	}
	h.mu.Unlock()

	if success && prevCount >= h.cfg.FailThreshold {
		// Transition: unhealthy → healthy
		h.logger.Info("health: recovered", zap.String("collaborator", p.Name))
		h.alert(ctx, EventRecovered, p.Name, "")
	} else if !success && count == h.cfg.FailThreshold {
		// Transition: healthy → unhealthy (exactly at threshold)
		h.logger.Warn("health: unhealthy",
			zap.String("collaborator", p.Name),
			zap.Int("fail_count", count),
			zap.Error(err),
		)
		h.alert(ctx, EventUnhealthy, p.Name, err.Error())
	}
}

func (h *Checker) alert(ctx context.Context, event, name, reason string) {
	if h.onAlert == nil {
		return
	}
	payload := map[string]string{"collaborator": name}
	if reason != "" {
		payload["error"] = reason
	}
	h.onAlert(ctx, event, payload)
}

// Snapshot returns a copy of every collaborator's status sorted by name.
func (h *Checker) Snapshot() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Status, 0, len(h.status))
	for _, st := range h.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy reports whether every critical collaborator is healthy.
func (h *Checker) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, st := range h.status {
		if st.Critical && !st.Healthy {
			return false
		}
	}
	return true
}
