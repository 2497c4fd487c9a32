package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/alerts"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// GetAuditTrail returns a page of audit entries, newest first. With Verify
// set, every chain that contributed to the page is walked from genesis and a
// break is returned as an error matching trustledger.ErrChainIntegrity.
func (e *Engine) GetAuditTrail(ctx context.Context, q model.AuditQuery) (*model.AuditPage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	page, err := e.ledger.Query(ctx, trustledger.Query{
		ChainID:       q.AgentID,
		TransactionID: q.TransactionID,
		Limit:         q.Limit,
		Offset:        q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}

	if q.Verify {
		seen := make(map[string]bool)
		var chains []string
		if q.AgentID != "" {
			chains = append(chains, q.AgentID)
			seen[q.AgentID] = true
		}
		for _, entry := range page.Entries {
			if !seen[entry.ChainID] {
				seen[entry.ChainID] = true
				chains = append(chains, entry.ChainID)
			}
		}
		for _, id := range chains {
			if err := e.VerifyChain(ctx, id); err != nil {
				return nil, err
			}
		}
	}

	return &model.AuditPage{
		Entries: page.Entries,
		Total:   page.Total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}, nil
}

// VerifyChain checks one agent's chain against the service key. Integrity
// failures are logged and alerted before being returned.
func (e *Engine) VerifyChain(ctx context.Context, chainID string) error {
	err := e.ledger.Verify(ctx, chainID, e.keys.PublicKey)
	if err == nil {
		return nil
	}
	if errors.Is(err, trustledger.ErrChainIntegrity) {
		e.reportIntegrity(ctx, err)
		return err
	}
	return fmt.Errorf("verify chain %s: %w", chainID, err)
}

// VerifyAllChains walks every chain in the ledger and returns the number of
// chains checked together with the joined integrity failures, if any.
func (e *Engine) VerifyAllChains(ctx context.Context) (int, error) {
	ids, err := e.ledger.Chains(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chains: %w", err)
	}
	var errs []error
	for _, id := range ids {
		if err := e.VerifyChain(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return len(ids), errors.Join(errs...)
}

func (e *Engine) reportIntegrity(ctx context.Context, err error) {
	payload := map[string]string{"error": err.Error()}
	fields := []zap.Field{zap.Error(err)}

	var ie *trustledger.IntegrityError
	if errors.As(err, &ie) {
		payload["chain_id"] = ie.ChainID
		payload["index"] = strconv.Itoa(ie.Index)
		payload["reason"] = ie.Reason
		fields = append(fields,
			zap.String("chain_id", ie.ChainID),
			zap.Int("index", ie.Index),
			zap.String("reason", ie.Reason),
		)
	}
	e.logger.Error("audit chain integrity failure", fields...)

	if e.hooks.IntegrityFailure != nil {
		e.hooks.IntegrityFailure(payload["chain_id"])
	}
	if e.notifier != nil {
		e.notifier.Dispatch(ctx, alerts.EventChainIntegrityFailed, payload)
	}
}
