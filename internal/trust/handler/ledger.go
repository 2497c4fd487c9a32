package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/trust/service"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// LedgerHandler exposes read-only HTTP endpoints for the per-agent audit chains.
type LedgerHandler struct {
	ledger trustledger.Ledger
	engine *service.Engine
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler. Verification goes through the
// engine so that failures are alerted.
func NewLedgerHandler(ledger trustledger.Ledger, engine *service.Engine, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, engine: engine, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("/:chainId", h.Overview)
		l.GET("/:chainId/verify", h.Verify)
		l.GET("/:chainId/entries/:idx", h.GetEntry)
	}
}

// Overview handles GET /ledger/:chainId returns the chain length and head hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	chainID := c.Param("chainId")

	count, err := h.ledger.Len(ctx, chainID)
	if err != nil {
		h.logger.Error("ledger Len", zap.String("chain_id", chainID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	head, err := h.ledger.Head(ctx, chainID)
	if err != nil {
		h.logger.Error("ledger Head", zap.String("chain_id", chainID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger head"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chain_id": chainID,
		"entries":  count,
		"head":     head,
	})
}

// Verify handles GET /ledger/:chainId/verify walks the chain and reports integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	chainID := c.Param("chainId")

	err := h.engine.VerifyChain(c.Request.Context(), chainID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"chain_id": chainID, "valid": true})
	case errors.Is(err, trustledger.ErrChainIntegrity):
		resp := gin.H{"chain_id": chainID, "valid": false, "error": err.Error()}
		var ie *trustledger.IntegrityError
		if errors.As(err, &ie) {
			resp["index"] = ie.Index
			resp["reason"] = ie.Reason
		}
		c.JSON(http.StatusOK, resp)
	default:
		h.logger.Error("ledger verify", zap.String("chain_id", chainID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
	}
}

// GetEntry handles GET /ledger/:chainId/entries/:idx returns a single entry.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entry, err := h.ledger.Get(c.Request.Context(), c.Param("chainId"), idx)
	if err != nil {
		if errors.Is(err, trustledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		h.logger.Error("ledger Get", zap.Int("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve entry"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
