// Package service contains the trust scoring engine: declaration intake,
// score aggregation with temporal decay, assertion checks, audit queries,
// agent ranking and trend series.
package service

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/cache"
	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/repository"
	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// Audit actions written by the engine.
const (
	ActionDeclarationCreated = "trust.declaration.created"
)

// Notifier dispatches alert-worthy events. *alerts.Dispatcher satisfies this.
type Notifier interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// Hooks are optional callbacks used to record engine activity as metrics.
// Nil fields are skipped.
type Hooks struct {
	DeclarationCreated func()
	AuditAppended      func(attempts int)
	AppendConflict     func()
	IntegrityFailure   func(chainID string)
	CacheLookup        func(hit bool)
	DegradedRead       func()
}

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	Weights scoring.Weights
	Decay   scoring.DecayPolicy
	// CacheTTL bounds how long a computed snapshot is served from cache.
	CacheTTL time.Duration
	// StaleTTL bounds how long the last known snapshot is kept for degraded reads.
	StaleTTL time.Duration
	// MaxAppendRetries is how many times an append is retried after losing
	// the race for a chain head.
	MaxAppendRetries int
}

func (c Config) withDefaults() Config {
	if c.Weights == nil {
		c.Weights = scoring.DefaultWeights
	}
	if c.Decay.HalfLife == 0 {
		c.Decay = scoring.DefaultDecay
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.StaleTTL == 0 {
		c.StaleTTL = 24 * time.Hour
	}
	if c.MaxAppendRetries == 0 {
		c.MaxAppendRetries = 5
	}
	return c
}

// Engine is the trust scoring engine.
type Engine struct {
	store    repository.DeclarationStore
	ledger   trustledger.Ledger
	keys     *trustcrypto.Keypair
	cache    cache.Cache // nil = no caching
	notifier Notifier    // nil = alerts are only logged
	assessor *scoring.Assessor
	cfg      Config
	hooks    Hooks
	now      func() time.Time
	logger   *zap.Logger

	// genMu orders snapshot writes against invalidation. gens counts the
	// invalidations per agent; a snapshot computed under an older count is
	// not cached.
	genMu sync.Mutex
	gens  map[string]uint64
}

// New creates an Engine. keys signs declarations and audit entries.
func New(store repository.DeclarationStore, ledger trustledger.Ledger, keys *trustcrypto.Keypair, cfg Config, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		store:    store,
		ledger:   ledger,
		keys:     keys,
		assessor: scoring.NewAssessor(cfg.Weights),
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
		gens:     make(map[string]uint64),
	}
}

// SetCache configures the score cache.
func (e *Engine) SetCache(c cache.Cache) { e.cache = c }

// SetNotifier configures the alert notifier.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetHooks configures the metrics callbacks.
func (e *Engine) SetHooks(h Hooks) { e.hooks = h }

// SetClock replaces the engine clock. Used to make scores reproducible.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// PublicKey returns the key that verifies everything the engine signs.
func (e *Engine) PublicKey() ed25519.PublicKey { return e.keys.PublicKey }

// GetTrustCategory maps a score to its category.
func (e *Engine) GetTrustCategory(score float64) scoring.Category {
	return scoring.CategoryFor(score)
}

func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}
