package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// CreateDeclaration validates, scores, signs and stores a declaration, then
// appends a signed entry to the agent's audit chain. If the append fails the
// stored declaration is removed again so that no declaration exists without
// its audit record.
func (e *Engine) CreateDeclaration(ctx context.Context, in model.DeclarationInput) (*model.CreateDeclarationResult, error) {
	now := e.clock()
	in.AgentID = strings.TrimSpace(in.AgentID)
	if err := in.Validate(now); err != nil {
		return nil, err
	}

	factors := make(scoring.Factors, len(in.Factors))
	for p, v := range in.Factors {
		factors[p] = v
	}
	if len(factors) == 0 {
		factors = scoring.EvidenceFactors(model.Signals(in.Evidence))
	}

	txID, err := trustcrypto.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("transaction id: %w", err)
	}

	d := &model.Declaration{
		ID:            uuid.New(),
		AgentID:       in.AgentID,
		Assertion:     in.Assertion,
		Evidence:      append([]model.Evidence(nil), in.Evidence...),
		Factors:       factors,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     now,
		LocalScore:    e.cfg.Weights.Score(factors).Overall,
		TransactionID: txID,
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC().Truncate(time.Millisecond)
		d.ExpiresAt = &exp
	}
	if err := d.Seal(e.keys); err != nil {
		return nil, fmt.Errorf("sign declaration: %w", err)
	}

	if err := e.store.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("store declaration: %w", err)
	}

	entry, err := e.appendAudit(ctx, d.AgentID, txID, ActionDeclarationCreated, d.CreatedBy, map[string]any{
		"declarationId":   d.ID.String(),
		"declarationHash": d.Hash,
		"localScore":      d.LocalScore,
		"evidenceCount":   len(d.Evidence),
	})
	if err != nil {
		if delErr := e.store.Delete(context.WithoutCancel(ctx), d.ID); delErr != nil {
			e.logger.Error("compensating delete failed; declaration has no audit entry",
				zap.String("agent_id", d.AgentID),
				zap.String("declaration_id", d.ID.String()),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	e.invalidate(ctx, d.AgentID)
	if e.hooks.DeclarationCreated != nil {
		e.hooks.DeclarationCreated()
	}

	e.logger.Info("declaration created",
		zap.String("agent_id", d.AgentID),
		zap.String("declaration_id", d.ID.String()),
		zap.String("transaction_id", txID),
		zap.Float64("local_score", d.LocalScore),
		zap.Int("audit_index", entry.Index),
	)

	return &model.CreateDeclarationResult{Declaration: d, AuditEntryHash: entry.Hash}, nil
}

// appendAudit signs an entry once and links it to the chain head, re-reading
// the head and retrying when another writer wins the race.
func (e *Engine) appendAudit(ctx context.Context, chainID, txID, action, actor string, metadata map[string]any) (*trustledger.Entry, error) {
	entry := trustledger.NewEntry(chainID, txID, action, actor, chainID, metadata, e.clock())
	if err := entry.Sign(e.keys.PrivateKey); err != nil {
		return nil, fmt.Errorf("sign audit entry: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAppendRetries+1; attempt++ {
		head, err := e.ledger.Head(ctx, chainID)
		if err != nil {
			return nil, fmt.Errorf("read chain head: %w", err)
		}
		entry.PreviousHash = head

		stored, err := e.ledger.Append(ctx, entry)
		if err == nil {
			if e.hooks.AuditAppended != nil {
				e.hooks.AuditAppended(attempt)
			}
			return stored, nil
		}
		if !trustledger.IsStaleHead(err) {
			if errors.Is(err, trustledger.ErrChainIntegrity) {
				e.reportIntegrity(ctx, err)
			}
			return nil, fmt.Errorf("append audit entry: %w", err)
		}

		lastErr = err
		if e.hooks.AppendConflict != nil {
			e.hooks.AppendConflict()
		}
		e.logger.Debug("audit append lost head race; retrying",
			zap.String("chain_id", chainID),
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("append audit entry after %d attempts: %w", e.cfg.MaxAppendRetries+1, lastErr)
}
