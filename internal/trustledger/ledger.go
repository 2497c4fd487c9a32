package trustledger

import (
	"context"
	"crypto/ed25519"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists at the given position.
var ErrNotFound = errors.New("ledger entry not found")

// MaxQueryLimit bounds the size of a single Query page.
const MaxQueryLimit = 200

// Query selects audit entries across chains. Empty filters match everything.
type Query struct {
	ChainID       string
	TransactionID string
	Limit         int
	Offset        int
}

// Page is one page of entries, newest first, with the total match count.
type Page struct {
	Entries []*Entry `json:"entries"`
	Total   int      `json:"total"`
}

// Ledger is the interface for the per-agent hash-chained audit log.
// Both MemoryLedger and PostgresLedger implement this interface.
type Ledger interface {
	// Append links entry to the head of entry.ChainID. entry.PreviousHash
	// must equal the current head, otherwise an *IntegrityError matching
	// ErrChainIntegrity is returned and nothing is written. The stored entry,
	// with Index and Hash assigned, is returned.
	Append(ctx context.Context, entry *Entry) (*Entry, error)

	// Head returns the hash of the newest entry, or GenesisHash for an empty chain.
	Head(ctx context.Context, chainID string) (string, error)

	// Get returns the entry at the given zero-based index of a chain.
	Get(ctx context.Context, chainID string, index int) (*Entry, error)

	// Len returns the number of entries in a chain.
	Len(ctx context.Context, chainID string) (int, error)

	// Entries returns a chain oldest first.
	Entries(ctx context.Context, chainID string) ([]*Entry, error)

	// Query returns matching entries newest first.
	Query(ctx context.Context, q Query) (*Page, error)

	// Chains lists every chain id in ascending order.
	Chains(ctx context.Context) ([]string, error)

	// Verify walks a chain and checks links, hashes and, when pub is
	// non-nil, signatures. Returns nil if the chain is intact.
	Verify(ctx context.Context, chainID string, pub ed25519.PublicKey) error
}

func normalizeQuery(q Query) Query {
	if q.Limit <= 0 || q.Limit > MaxQueryLimit {
		q.Limit = MaxQueryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
