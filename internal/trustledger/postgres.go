package trustledger

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresLedger persists audit chains to a PostgreSQL database.
// It implements the Ledger interface.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger backed by the given connection pool.
func NewPostgresLedger(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

const entryColumns = `chain_id, idx, transaction_id, action, actor, target, metadata, ts, prev_hash, hash, signature`

// Append implements Ledger.
// It takes a transaction-scoped advisory lock keyed on the chain id, reads
// the chain tail, checks the caller's previous hash against it, and inserts
// the linked entry, all within one transaction.
func (l *PostgresLedger) Append(ctx context.Context, entry *Entry) (*Entry, error) {
	if entry.ChainID == "" {
		return nil, errors.New("append: chain id is required")
	}
	meta, err := json.Marshal(entry.Payload().Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise appends per chain; other agents' chains are not blocked.
	// The lock is released when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", entry.ChainID); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	prevIdx := -1
	head := GenesisHash
	err = tx.QueryRow(ctx,
		"SELECT idx, hash FROM audit_entries WHERE chain_id = $1 ORDER BY idx DESC LIMIT 1",
		entry.ChainID,
	).Scan(&prevIdx, &head)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		prevIdx, head = -1, GenesisHash
	case err != nil:
		return nil, fmt.Errorf("read chain tail: %w", err)
	}

	if entry.PreviousHash != head {
		return nil, &IntegrityError{ChainID: entry.ChainID, Index: prevIdx + 1, Reason: ReasonStaleHead}
	}

	stored := entry.clone()
	stored.Index = prevIdx + 1
	if stored.Hash, err = stored.ComputeHash(); err != nil {
		return nil, fmt.Errorf("hash entry: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		stored.ChainID, stored.Index, stored.TransactionID,
		stored.Action, stored.Actor, stored.Target, meta,
		stored.Timestamp, stored.PreviousHash, stored.Hash, stored.Signature,
	); err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit audit tx: %w", err)
	}

	l.logger.Debug("audit entry appended",
		zap.String("chain_id", stored.ChainID),
		zap.Int("idx", stored.Index),
		zap.String("action", stored.Action),
		zap.String("transaction_id", stored.TransactionID),
	)
	return stored, nil
}

// Head implements Ledger.
func (l *PostgresLedger) Head(ctx context.Context, chainID string) (string, error) {
	var hash string
	err := l.pool.QueryRow(ctx,
		"SELECT hash FROM audit_entries WHERE chain_id = $1 ORDER BY idx DESC LIMIT 1", chainID,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("get chain head: %w", err)
	}
	return hash, nil
}

// Get implements Ledger.
func (l *PostgresLedger) Get(ctx context.Context, chainID string, index int) (*Entry, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM audit_entries WHERE chain_id = $1 AND idx = $2`,
		chainID, index,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit entry %s/%d: %w", chainID, index, err)
	}
	return e, nil
}

// Len implements Ledger.
func (l *PostgresLedger) Len(ctx context.Context, chainID string) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM audit_entries WHERE chain_id = $1", chainID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

// Entries implements Ledger.
func (l *PostgresLedger) Entries(ctx context.Context, chainID string) ([]*Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM audit_entries WHERE chain_id = $1 ORDER BY idx ASC`,
		chainID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chain: %w", err)
	}
	return collectEntries(rows)
}

// Query implements Ledger.
func (l *PostgresLedger) Query(ctx context.Context, q Query) (*Page, error) {
	q = normalizeQuery(q)

	where := `WHERE ($1 = '' OR chain_id = $1) AND ($2 = '' OR transaction_id = $2)`

	var total int
	if err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entries `+where, q.ChainID, q.TransactionID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM audit_entries `+where+`
		 ORDER BY ts DESC, chain_id ASC, idx DESC
		 LIMIT $3 OFFSET $4`,
		q.ChainID, q.TransactionID, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	return &Page{Entries: entries, Total: total}, nil
}

// Chains implements Ledger.
func (l *PostgresLedger) Chains(ctx context.Context) ([]string, error) {
	rows, err := l.pool.Query(ctx, "SELECT DISTINCT chain_id FROM audit_entries ORDER BY chain_id")
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan chain ids: %w", err)
	}
	return ids, nil
}

// Verify implements Ledger. It loads the chain ordered by idx and validates
// every link. O(n) in chain length.
func (l *PostgresLedger) Verify(ctx context.Context, chainID string, pub ed25519.PublicKey) error {
	entries, err := l.Entries(ctx, chainID)
	if err != nil {
		return err
	}
	return VerifyChain(entries, pub)
}

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	var meta []byte
	if err := row.Scan(
		&e.ChainID, &e.Index, &e.TransactionID,
		&e.Action, &e.Actor, &e.Target, &meta,
		&e.Timestamp, &e.PreviousHash, &e.Hash, &e.Signature,
	); err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Metadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
	}
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()
	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
