package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
)

// DeclarationRepository stores declarations in PostgreSQL.
type DeclarationRepository struct {
	db *pgxpool.Pool
}

// NewDeclarationRepository creates a new DeclarationRepository.
func NewDeclarationRepository(db *pgxpool.Pool) *DeclarationRepository {
	return &DeclarationRepository{db: db}
}

const declarationColumns = `
	id, agent_id, assertion, evidence, factors, created_by, created_at,
	expires_at, local_score, signer_key, transaction_id, hash, signature`

// Save inserts a sealed declaration.
func (r *DeclarationRepository) Save(ctx context.Context, d *model.Declaration) error {
	evidence, err := json.Marshal(d.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	factors, err := json.Marshal(d.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	query := `INSERT INTO declarations (` + declarationColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12, $13
	)`
	_, err = r.db.Exec(ctx, query,
		d.ID, d.AgentID, d.Assertion, evidence, factors, d.CreatedBy, d.CreatedAt,
		d.ExpiresAt, d.LocalScore, d.SignerKey, d.TransactionID, d.Hash, d.Signature,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert declaration: %w", err)
	}
	return nil
}

// ListByAgent returns the agent's declarations oldest first.
func (r *DeclarationRepository) ListByAgent(ctx context.Context, agentID string) ([]*model.Declaration, error) {
	query := `SELECT ` + declarationColumns + `
		FROM declarations
		WHERE agent_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("list declarations: %w", err)
	}
	defer rows.Close()

	var out []*model.Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListAgentIDs returns every agent with at least one declaration.
func (r *DeclarationRepository) ListAgentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT agent_id FROM declarations ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Delete removes a declaration by id.
func (r *DeclarationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM declarations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete declaration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDeclaration(row pgx.Row) (*model.Declaration, error) {
	var (
		d         model.Declaration
		evidence  []byte
		factors   []byte
		expiresAt *time.Time
	)
	if err := row.Scan(
		&d.ID, &d.AgentID, &d.Assertion, &evidence, &factors, &d.CreatedBy, &d.CreatedAt,
		&expiresAt, &d.LocalScore, &d.SignerKey, &d.TransactionID, &d.Hash, &d.Signature,
	); err != nil {
		return nil, fmt.Errorf("scan declaration: %w", err)
	}
	if err := json.Unmarshal(evidence, &d.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	d.Factors = scoring.Factors{}
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &d.Factors); err != nil {
			return nil, fmt.Errorf("decode factors: %w", err)
		}
	}
	d.CreatedAt = d.CreatedAt.UTC()
	if expiresAt != nil {
		exp := expiresAt.UTC()
		d.ExpiresAt = &exp
	}
	return &d, nil
}
