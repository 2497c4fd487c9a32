package handler

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/identity"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
	"github.com/jmerrifield20/NexusTrust/internal/trust/service"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// TrustHandler exposes the trust engine over HTTP.
type TrustHandler struct {
	engine *service.Engine
	tokens *identity.TokenIssuer // nil = declarations are accepted without a token
	logger *zap.Logger
}

// NewTrustHandler creates a new TrustHandler.
func NewTrustHandler(engine *service.Engine, tokens *identity.TokenIssuer, logger *zap.Logger) *TrustHandler {
	return &TrustHandler{engine: engine, tokens: tokens, logger: logger}
}

// Register mounts the trust routes on the given router group.
func (h *TrustHandler) Register(rg *gin.RouterGroup) {
	t := rg.Group("/trust")
	{
		t.POST("/declarations", h.requireToken(identity.ScopeDeclare), h.CreateDeclaration)
		t.POST("/verify", h.optionalToken(), h.VerifyAssertion)
		t.GET("/audit", h.requireToken(identity.ScopeAudit), h.GetAuditTrail)
		t.GET("/category", h.GetCategory)
		t.GET("/agents", h.ListAgents)
		t.GET("/agents/:agentId/score", h.GetScore)
		t.GET("/agents/:agentId/trends", h.GetTrends)
	}
}

// requireToken returns the RequireToken middleware when auth is configured,
// or a no-op middleware for development/open mode.
func (h *TrustHandler) requireToken(scopes ...string) gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.RequireToken(h.tokens, scopes...)
}

// optionalToken attaches the caller's claims when a valid token is sent.
func (h *TrustHandler) optionalToken() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.OptionalToken(h.tokens)
}

// CreateDeclaration handles POST /trust/declarations.
func (h *TrustHandler) CreateDeclaration(c *gin.Context) {
	var in model.DeclarationInput
	if !h.decode(c, &in) {
		return
	}
	if claims := identity.ClaimsFromCtx(c); claims != nil {
		in.CreatedBy = claims.Subject
	}

	res, err := h.engine.CreateDeclaration(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, "create declaration", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetScore handles GET /trust/agents/:agentId/score.
func (h *TrustHandler) GetScore(c *gin.Context) {
	score, err := h.engine.CalculateTrustScore(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		h.writeError(c, "calculate trust score", err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// VerifyAssertion handles POST /trust/verify. The assertion is scored but
// never stored.
func (h *TrustHandler) VerifyAssertion(c *gin.Context) {
	var in model.AssertionInput
	if !h.decode(c, &in) {
		return
	}
	res, err := h.engine.VerifyAssertion(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, "verify assertion", err)
		return
	}
	caller := "anonymous"
	if claims := identity.ClaimsFromCtx(c); claims != nil {
		caller = claims.Subject
	}
	h.logger.Info("assertion verified",
		zap.String("caller", caller),
		zap.Bool("verified", res.Verified),
		zap.Float64("score", res.Score),
	)
	c.JSON(http.StatusOK, res)
}

// GetAuditTrail handles GET /trust/audit.
func (h *TrustHandler) GetAuditTrail(c *gin.Context) {
	q := model.AuditQuery{
		TransactionID: c.Query("transaction_id"),
		AgentID:       c.Query("agent_id"),
	}
	var err error
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		h.writeError(c, "audit trail", err)
		return
	}
	if q.Offset, err = intQuery(c, "offset"); err != nil {
		h.writeError(c, "audit trail", err)
		return
	}
	if v := c.Query("verify"); v != "" {
		q.Verify, err = strconv.ParseBool(v)
		if err != nil {
			h.writeError(c, "audit trail", &model.ErrValidation{Field: "verify", Msg: "not a boolean", Expected: "true or false"})
			return
		}
	}

	page, err := h.engine.GetAuditTrail(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, "audit trail", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetCategory handles GET /trust/category?score=0.8.
func (h *TrustHandler) GetCategory(c *gin.Context) {
	score, err := strconv.ParseFloat(c.Query("score"), 64)
	if err != nil || math.IsNaN(score) || score < 0 || score > 1 {
		h.writeError(c, "category", &model.ErrValidation{Field: "score", Msg: "invalid score", Expected: "a number in [0,1]"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"score":    score,
		"category": h.engine.GetTrustCategory(score),
	})
}

// ListAgents handles GET /trust/agents.
func (h *TrustHandler) ListAgents(c *gin.Context) {
	q := model.AgentsQuery{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	var err error
	if q.Page, err = intQuery(c, "page"); err != nil {
		h.writeError(c, "list agents", err)
		return
	}
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		h.writeError(c, "list agents", err)
		return
	}

	page, err := h.engine.GetAgents(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, "list agents", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetTrends handles GET /trust/agents/:agentId/trends?timeframe=30d.
func (h *TrustHandler) GetTrends(c *gin.Context) {
	trends, err := h.engine.GetTrustTrends(c.Request.Context(), c.Param("agentId"), c.Query("timeframe"))
	if err != nil {
		h.writeError(c, "trust trends", err)
		return
	}
	c.JSON(http.StatusOK, trends)
}

// decode reads a JSON body, rejecting unknown fields. It writes the 400
// response itself and reports whether the caller should continue.
func (h *TrustHandler) decode(c *gin.Context, dst any) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + msg})
		return false
	}
	return true
}

// intQuery parses an optional integer query parameter. Absent means 0.
func intQuery(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &model.ErrValidation{Field: name, Msg: "not an integer", Expected: "an integer"}
	}
	return n, nil
}

// writeError maps engine errors onto HTTP status codes.
func (h *TrustHandler) writeError(c *gin.Context, op string, err error) {
	writeError(c, h.logger, op, err)
}

func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var valErr *model.ErrValidation
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error(), "field": valErr.Field})
	case errors.Is(err, model.ErrAgentNotFound), errors.Is(err, trustledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, trustledger.ErrChainIntegrity):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
