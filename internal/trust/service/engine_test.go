package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/cache"
	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
	"github.com/jmerrifield20/NexusTrust/internal/trust/repository"
	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// ── Stubs ────────────────────────────────────────────────────────────────

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) advance(d time.Duration) { c.set(c.now().Add(d)) }

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	last   map[string]string
}

func (n *recordingNotifier) Dispatch(_ context.Context, eventType string, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
	n.last = payload
}

// flakyStore fails ListByAgent on demand.
type flakyStore struct {
	*repository.MemoryDeclarationStore
	fail bool
}

func (s *flakyStore) ListByAgent(ctx context.Context, agentID string) ([]*model.Declaration, error) {
	if s.fail {
		return nil, errors.New("connection reset by peer")
	}
	return s.MemoryDeclarationStore.ListByAgent(ctx, agentID)
}

type testEnv struct {
	engine *Engine
	ledger *trustledger.MemoryLedger
	store  *flakyStore
	clock  *fakeClock
	keys   *trustcrypto.Keypair
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	keys, err := trustcrypto.GenerateKeypair()
	require.NoError(t, err)

	env := &testEnv{
		ledger: trustledger.New(),
		store:  &flakyStore{MemoryDeclarationStore: repository.NewMemoryDeclarationStore()},
		clock:  &fakeClock{t: t0},
		keys:   keys,
	}
	env.engine = New(env.store, env.ledger, keys, Config{}, zap.NewNop())
	env.engine.SetClock(env.clock.now)
	return env
}

func agent42Input() model.DeclarationInput {
	return model.DeclarationInput{
		AgentID:   "agent-42",
		Assertion: "meets the published latency and security baseline",
		Evidence: []model.Evidence{
			{Type: scoring.EvidenceTechnical, Description: "load test report", URL: "https://reports.example.com/42"},
		},
		Factors:   scoring.Factors{scoring.Technical: 0.9, scoring.Security: 0.8},
		CreatedBy: "auditor-1",
	}
}

// ── CreateDeclaration ────────────────────────────────────────────────────

func TestCreateDeclaration_agent42EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)

	d := res.Declaration
	assert.Equal(t, "agent-42", d.AgentID)
	assert.Equal(t, t0, d.CreatedAt)
	assert.Equal(t, env.keys.PublicKeyHex(), d.SignerKey)
	assert.Len(t, d.TransactionID, 32)
	ok, err := d.VerifySeal(env.keys.PublicKey)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := env.ledger.Entries(ctx, "agent-42")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.AuditEntryHash, entries[0].Hash)
	assert.Equal(t, trustledger.GenesisHash, entries[0].PreviousHash)
	assert.Equal(t, ActionDeclarationCreated, entries[0].Action)
	assert.Equal(t, d.TransactionID, entries[0].TransactionID)
	assert.Equal(t, d.Hash, entries[0].Metadata["declarationHash"])
	require.NoError(t, env.ledger.Verify(ctx, "agent-42", env.keys.PublicKey))

	score, err := env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.Equal(t, 0.25*0.9, score.Breakdown[scoring.Technical].Contribution)
	assert.Equal(t, 0.15*0.8, score.Breakdown[scoring.Security].Contribution)
	assert.NotContains(t, score.Breakdown, scoring.Ethical)
	assert.InDelta(t, (0.25*0.9+0.15*0.8)/0.40, score.Overall, 1e-12)
	assert.Equal(t, score.Overall, score.TemporalScore, "age zero leaves the score unchanged")
	assert.Equal(t, scoring.Good, score.Category)
	assert.Equal(t, 1, score.DeclarationCount)
	assert.Equal(t, 1, score.EvidenceCount)
	assert.Greater(t, score.Confidence, 0.0)
	assert.LessOrEqual(t, score.Confidence, 1.0)
	assert.InDelta(t, score.Overall, d.LocalScore, 1e-12)
}

func TestCreateDeclaration_reproducibleWithIdenticalTimestamps(t *testing.T) {
	ctx := context.Background()
	a, b := newTestEnv(t), newTestEnv(t)

	_, err := a.engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)
	_, err = b.engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)

	sa, err := a.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	sb, err := b.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)

	assert.Equal(t, sa.Overall, sb.Overall)
	assert.Equal(t, sa.TemporalScore, sb.TemporalScore)
	assert.Equal(t, sa.Confidence, sb.Confidence)
	assert.Equal(t, sa.Breakdown, sb.Breakdown)
}

func TestCreateDeclaration_validationStoresNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := agent42Input()
	in.Factors["reputation"] = 0.4
	_, err := env.engine.CreateDeclaration(ctx, in)
	require.ErrorIs(t, err, model.ErrValidationFailed)

	var ve *model.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "factors.reputation", ve.Field)

	ids, _ := env.store.ListAgentIDs(ctx)
	assert.Empty(t, ids)
	n, _ := env.ledger.Len(ctx, "agent-42")
	assert.Zero(t, n)
}

func TestCreateDeclaration_evidenceDerivedFactors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := agent42Input()
	in.Factors = nil
	in.Evidence = []model.Evidence{{Type: scoring.EvidenceSecurity, Description: "pentest", URL: "https://sec.example.com/r"}}
	res, err := env.engine.CreateDeclaration(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, scoring.Factors{scoring.Security: 0.8}, res.Declaration.Factors)
	assert.InDelta(t, 0.8, res.Declaration.LocalScore, 1e-12)
}

func TestCreateDeclaration_retriesAfterLosingHeadRace(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	racing := &racingLedger{MemoryLedger: env.ledger, keys: env.keys}
	engine := New(env.store, racing, env.keys, Config{}, zap.NewNop())
	engine.SetClock(env.clock.now)

	var conflicts, attempts int
	engine.SetHooks(Hooks{
		AppendConflict: func() { conflicts++ },
		AuditAppended:  func(n int) { attempts = n },
	})

	res, err := engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, attempts)

	entries, _ := env.ledger.Entries(ctx, "agent-42")
	require.Len(t, entries, 2)
	assert.Equal(t, "trust.rival", entries[0].Action)
	assert.Equal(t, res.AuditEntryHash, entries[1].Hash)
	require.NoError(t, env.ledger.Verify(ctx, "agent-42", env.keys.PublicKey))
}

func TestCreateDeclaration_appendFailureRemovesDeclaration(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	engine := New(env.store, brokenLedger{env.ledger}, env.keys, Config{}, zap.NewNop())

	_, err := engine.CreateDeclaration(ctx, agent42Input())
	require.Error(t, err)

	decls, _ := env.store.ListByAgent(ctx, "agent-42")
	assert.Empty(t, decls)
}

func TestCreateDeclaration_concurrentSameAgent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	engine := New(env.store, env.ledger, env.keys, Config{MaxAppendRetries: 100}, zap.NewNop())

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateDeclaration(ctx, agent42Input())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, _ := env.ledger.Entries(ctx, "agent-42")
	assert.Len(t, entries, writers)
	require.NoError(t, env.ledger.Verify(ctx, "agent-42", env.keys.PublicKey))
}

// ── CalculateTrustScore ──────────────────────────────────────────────────

func TestCalculateTrustScore_unknownAgent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.CalculateTrustScore(context.Background(), "nobody")
	assert.ErrorIs(t, err, model.ErrAgentNotFound)

	_, err = env.engine.CalculateTrustScore(context.Background(), " ")
	assert.ErrorIs(t, err, model.ErrValidationFailed)
}

func TestCalculateTrustScore_decay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := agent42Input()
	in.Factors = scoring.Factors{scoring.Technical: 1}
	_, err := env.engine.CreateDeclaration(ctx, in)
	require.NoError(t, err)

	env.clock.advance(30 * scoring.Day)
	score, err := env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.Overall)
	assert.InDelta(t, 0.95, score.TemporalScore, 1e-12)
	assert.Equal(t, scoring.Excellent, score.Category)
}

func TestCalculateTrustScore_averagesAcrossDeclarations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := agent42Input()
	_, err := env.engine.CreateDeclaration(ctx, first)
	require.NoError(t, err)

	second := agent42Input()
	second.Factors = scoring.Factors{scoring.Technical: 0.5, scoring.Ethical: 1}
	_, err = env.engine.CreateDeclaration(ctx, second)
	require.NoError(t, err)

	score, err := env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, score.Breakdown[scoring.Technical].Average, 1e-12)
	assert.Equal(t, 2, score.Breakdown[scoring.Technical].Samples)
	want := (0.25*0.7 + 0.20*1 + 0.15*0.8) / (0.25 + 0.20 + 0.15)
	assert.InDelta(t, want, score.Overall, 1e-12)
	assert.Equal(t, 2, score.DeclarationCount)
}

func TestCalculateTrustScore_allExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := agent42Input()
	exp := t0.Add(time.Hour)
	in.ExpiresAt = &exp
	_, err := env.engine.CreateDeclaration(ctx, in)
	require.NoError(t, err)

	env.clock.advance(2 * time.Hour)
	score, err := env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.Zero(t, score.Overall)
	assert.Zero(t, score.TemporalScore)
	assert.Zero(t, score.DeclarationCount)
	assert.Equal(t, scoring.Critical, score.Category)
	assert.Equal(t, t0, score.LastUpdated)
}

func TestCalculateTrustScore_cacheAside(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.engine.SetCache(cache.NewMemory())

	var hits, misses int
	env.engine.SetHooks(Hooks{CacheLookup: func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}})

	_, err := env.engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)

	_, err = env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	_, err = env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	// A new declaration invalidates the snapshot.
	_, err = env.engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)
	score, err := env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.Equal(t, 2, score.DeclarationCount)
	assert.Equal(t, 2, misses)
}

// pausingStore holds the next ListByAgent after its snapshot is taken until
// release is closed.
type pausingStore struct {
	*repository.MemoryDeclarationStore
	mu      sync.Mutex
	armed   bool
	listed  chan struct{}
	release chan struct{}
}

func (s *pausingStore) arm() {
	s.mu.Lock()
	s.armed = true
	s.listed = make(chan struct{})
	s.release = make(chan struct{})
	s.mu.Unlock()
}

func (s *pausingStore) ListByAgent(ctx context.Context, agentID string) ([]*model.Declaration, error) {
	decls, err := s.MemoryDeclarationStore.ListByAgent(ctx, agentID)
	s.mu.Lock()
	pause := s.armed
	s.armed = false
	s.mu.Unlock()
	if pause {
		close(s.listed)
		<-s.release
	}
	return decls, err
}

func TestCalculateTrustScore_staleSnapshotNotCachedAfterNewDeclaration(t *testing.T) {
	ctx := context.Background()
	keys, err := trustcrypto.GenerateKeypair()
	require.NoError(t, err)
	store := &pausingStore{MemoryDeclarationStore: repository.NewMemoryDeclarationStore()}
	clock := &fakeClock{t: t0}
	engine := New(store, trustledger.New(), keys, Config{}, zap.NewNop())
	engine.SetClock(clock.now)
	engine.SetCache(cache.NewMemory())

	_, err = engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)

	store.arm()
	done := make(chan *model.TrustScore, 1)
	go func() {
		ts, err := engine.CalculateTrustScore(ctx, "agent-42")
		assert.NoError(t, err)
		done <- ts
	}()
	<-store.listed

	// A declaration lands while the reader still holds its old snapshot.
	_, err = engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, 1, stale.DeclarationCount)

	score, err := engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.Equal(t, 2, score.DeclarationCount)
}

func TestCalculateTrustScore_degradedWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.engine.SetCache(cache.NewMemory())

	_, err := env.engine.CreateDeclaration(ctx, agent42Input())
	require.NoError(t, err)
	fresh, err := env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	require.False(t, fresh.Degraded)

	env.engine.invalidate(ctx, "agent-42")
	env.store.fail = true

	score, err := env.engine.CalculateTrustScore(ctx, "agent-42")
	require.NoError(t, err)
	assert.True(t, score.Degraded)
	assert.Equal(t, fresh.Overall, score.Overall)

	// Without any cached snapshot the failure surfaces.
	env.engine.SetCache(nil)
	_, err = env.engine.CalculateTrustScore(ctx, "agent-42")
	assert.Error(t, err)
}

// ── VerifyAssertion / category ───────────────────────────────────────────

func TestVerifyAssertion(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.engine.VerifyAssertion(context.Background(), model.AssertionInput{
		Assertion: "encrypts data at rest",
		Evidence:  []model.Evidence{{Type: scoring.EvidenceSecurity, Description: "audit", URL: "https://a.example.com"}},
	})
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.InDelta(t, 0.8, got.Score, 1e-12)
	assert.Equal(t, scoring.DefaultRequiredScore, got.RequiredScore)
	assert.NotEmpty(t, got.Rationale)

	got, err = env.engine.VerifyAssertion(context.Background(), model.AssertionInput{
		Assertion:     "encrypts data at rest",
		Evidence:      []model.Evidence{{Type: scoring.EvidenceSecurity, Description: "self-reported"}},
		RequiredScore: 0.7,
	})
	require.NoError(t, err)
	assert.False(t, got.Verified)

	_, err = env.engine.VerifyAssertion(context.Background(), model.AssertionInput{Assertion: "x"})
	assert.ErrorIs(t, err, model.ErrValidationFailed)
}

func TestGetTrustCategory(t *testing.T) {
	env := newTestEnv(t)
	cases := map[float64]scoring.Category{
		0.95: scoring.Excellent,
		0.80: scoring.Good,
		0.65: scoring.Fair,
		0.45: scoring.Poor,
		0.10: scoring.Critical,
	}
	for score, want := range cases {
		assert.Equal(t, want, env.engine.GetTrustCategory(score), "score %v", score)
	}
}
