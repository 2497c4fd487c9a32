package trustledger

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// Appends to one chain are serialised by that chain's mutex; chains of
// different agents never contend with each other.
type MemoryLedger struct {
	mu     sync.RWMutex
	chains map[string]*memoryChain
}

type memoryChain struct {
	mu      sync.RWMutex
	entries []*Entry
}

// New creates an empty MemoryLedger.
func New() *MemoryLedger {
	return &MemoryLedger{chains: make(map[string]*memoryChain)}
}

// chain returns the chain for id, creating it when create is set.
func (l *MemoryLedger) chain(id string, create bool) *memoryChain {
	l.mu.RLock()
	c, ok := l.chains[id]
	l.mu.RUnlock()
	if ok || !create {
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok = l.chains[id]; !ok {
		c = &memoryChain{}
		l.chains[id] = c
	}
	return c
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, entry *Entry) (*Entry, error) {
	if entry.ChainID == "" {
		return nil, errors.New("append: chain id is required")
	}
	c := l.chain(entry.ChainID, true)

	c.mu.Lock()
	defer c.mu.Unlock()

	head := GenesisHash
	if n := len(c.entries); n > 0 {
		head = c.entries[n-1].Hash
	}
	if entry.PreviousHash != head {
		return nil, &IntegrityError{ChainID: entry.ChainID, Index: len(c.entries), Reason: ReasonStaleHead}
	}

	stored := entry.clone()
	stored.Index = len(c.entries)
	hash, err := stored.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("hash entry: %w", err)
	}
	stored.Hash = hash
	c.entries = append(c.entries, stored)
	return stored.clone(), nil
}

// Head implements Ledger.
func (l *MemoryLedger) Head(_ context.Context, chainID string) (string, error) {
	c := l.chain(chainID, false)
	if c == nil {
		return GenesisHash, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return GenesisHash, nil
	}
	return c.entries[len(c.entries)-1].Hash, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, chainID string, index int) (*Entry, error) {
	c := l.chain(chainID, false)
	if c == nil {
		return nil, ErrNotFound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.entries) {
		return nil, ErrNotFound
	}
	return c.entries[index].clone(), nil
}

// Len implements Ledger.
func (l *MemoryLedger) Len(_ context.Context, chainID string) (int, error) {
	c := l.chain(chainID, false)
	if c == nil {
		return 0, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Entries implements Ledger.
func (l *MemoryLedger) Entries(_ context.Context, chainID string) ([]*Entry, error) {
	c := l.chain(chainID, false)
	if c == nil {
		return []*Entry{}, nil
	}
	return c.snapshot(), nil
}

func (c *memoryChain) snapshot() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.clone()
	}
	return out
}

// Query implements Ledger.
func (l *MemoryLedger) Query(ctx context.Context, q Query) (*Page, error) {
	q = normalizeQuery(q)

	var ids []string
	if q.ChainID != "" {
		ids = []string{q.ChainID}
	} else {
		ids, _ = l.Chains(ctx)
	}

	var matched []*Entry
	for _, id := range ids {
		c := l.chain(id, false)
		if c == nil {
			continue
		}
		for _, e := range c.snapshot() {
			if q.TransactionID == "" || e.TransactionID == q.TransactionID {
				matched = append(matched, e)
			}
		}
	}
	sortNewestFirst(matched)

	page := &Page{Entries: []*Entry{}, Total: len(matched)}
	if q.Offset < len(matched) {
		end := q.Offset + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Entries = matched[q.Offset:end]
	}
	return page, nil
}

// sortNewestFirst orders by timestamp descending, then chain id ascending,
// then index descending. PostgresLedger uses the same ordering.
func sortNewestFirst(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.ChainID != b.ChainID {
			return a.ChainID < b.ChainID
		}
		return a.Index > b.Index
	})
}

// Chains implements Ledger.
func (l *MemoryLedger) Chains(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.chains))
	for id, c := range l.chains {
		// A rejected first append leaves an empty chain behind.
		c.mu.RLock()
		n := len(c.entries)
		c.mu.RUnlock()
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(ctx context.Context, chainID string, pub ed25519.PublicKey) error {
	entries, err := l.Entries(ctx, chainID)
	if err != nil {
		return err
	}
	return VerifyChain(entries, pub)
}
