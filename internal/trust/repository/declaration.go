// Package repository stores signed trust declarations.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
)

// ErrNotFound is returned when a declaration does not exist.
var ErrNotFound = errors.New("declaration not found")

// ErrDuplicate is returned when a declaration id is saved twice.
var ErrDuplicate = errors.New("declaration already exists")

// DeclarationStore persists declarations. Declarations are immutable once
// saved; Delete exists only to compensate a create whose audit append failed.
type DeclarationStore interface {
	Save(ctx context.Context, d *model.Declaration) error
	// ListByAgent returns the agent's declarations oldest first. The slice
	// and its elements belong to the caller.
	ListByAgent(ctx context.Context, agentID string) ([]*model.Declaration, error)
	// ListAgentIDs returns every agent with at least one declaration, sorted.
	ListAgentIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

func cloneDeclaration(d *model.Declaration) *model.Declaration {
	cp := *d
	if d.Evidence != nil {
		cp.Evidence = append([]model.Evidence(nil), d.Evidence...)
	}
	if d.Factors != nil {
		cp.Factors = make(scoring.Factors, len(d.Factors))
		for k, v := range d.Factors {
			cp.Factors[k] = v
		}
	}
	if d.ExpiresAt != nil {
		exp := *d.ExpiresAt
		cp.ExpiresAt = &exp
	}
	return &cp
}
