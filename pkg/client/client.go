package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors matched by *APIError via errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrIntegrity    = errors.New("audit chain integrity failure")
)

// APIError is a non-2xx response from the trust service.
type APIError struct {
	StatusCode int
	Message    string
	// Field names the offending input on validation failures.
	Field string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trust api %d: %s", e.StatusCode, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrIntegrity:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// Client talks to a trust service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithBearerToken attaches a token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed service.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 10 * time.Second,
		}
		return nil
	}
}

// New creates a Client for the service at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// CreateDeclaration records a declaration and returns it with the hash of
// the audit entry that covers it.
func (c *Client) CreateDeclaration(ctx context.Context, req DeclarationRequest) (*DeclarationResult, error) {
	var out DeclarationResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/trust/declarations", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetScore returns the agent's current trust score.
func (c *Client) GetScore(ctx context.Context, agentID string) (*TrustScore, error) {
	var out TrustScore
	if err := c.call(ctx, http.MethodGet, "/api/v1/trust/agents/"+url.PathEscape(agentID)+"/score", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyAssertion scores an assertion without recording it.
func (c *Client) VerifyAssertion(ctx context.Context, req AssertionRequest) (*Assessment, error) {
	var out Assessment
	if err := c.call(ctx, http.MethodPost, "/api/v1/trust/verify", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditTrail returns a page of audit entries. With q.Verify set a broken
// chain is reported as an error matching ErrIntegrity.
func (c *Client) AuditTrail(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	v := url.Values{}
	setString(v, "transaction_id", q.TransactionID)
	setString(v, "agent_id", q.AgentID)
	setInt(v, "limit", q.Limit)
	setInt(v, "offset", q.Offset)
	if q.Verify {
		v.Set("verify", "true")
	}
	var out AuditPage
	if err := c.call(ctx, http.MethodGet, "/api/v1/trust/audit", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Category maps a score in [0,1] to its category name.
func (c *Client) Category(ctx context.Context, score float64) (string, error) {
	v := url.Values{"score": {strconv.FormatFloat(score, 'f', -1, 64)}}
	var out struct {
		Category string `json:"category"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/trust/category", v, nil, &out); err != nil {
		return "", err
	}
	return out.Category, nil
}

// ListAgents returns one page of agents ranked by q.SortBy.
func (c *Client) ListAgents(ctx context.Context, q AgentsQuery) (*AgentsPage, error) {
	v := url.Values{}
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)
	setString(v, "sort_by", q.SortBy)
	setString(v, "sort_order", q.SortOrder)
	var out AgentsPage
	if err := c.call(ctx, http.MethodGet, "/api/v1/trust/agents", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trends returns the agent's daily score series. timeframe is "30d", "4w"
// or empty for the server default.
func (c *Client) Trends(ctx context.Context, agentID, timeframe string) (*Trends, error) {
	v := url.Values{}
	setString(v, "timeframe", timeframe)
	var out Trends
	if err := c.call(ctx, http.MethodGet, "/api/v1/trust/agents/"+url.PathEscape(agentID)+"/trends", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ledger returns the length and head hash of an agent's audit chain.
func (c *Client) Ledger(ctx context.Context, chainID string) (*LedgerOverview, error) {
	var out LedgerOverview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/"+url.PathEscape(chainID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLedger asks the service to walk an agent's audit chain.
func (c *Client) VerifyLedger(ctx context.Context, chainID string) (*LedgerVerification, error) {
	var out LedgerVerification
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/"+url.PathEscape(chainID)+"/verify", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LedgerEntry returns one entry of an agent's audit chain.
func (c *Client) LedgerEntry(ctx context.Context, chainID string, index int) (*AuditEntry, error) {
	path := "/api/v1/ledger/" + url.PathEscape(chainID) + "/entries/" + strconv.Itoa(index)
	var out AuditEntry
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServiceKey returns the service verification key.
func (c *Client) ServiceKey(ctx context.Context) (*ServiceKey, error) {
	var out ServiceKey
	if err := c.call(ctx, http.MethodGet, "/api/v1/keys/service", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends a JSON request and decodes a JSON response into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var e struct {
			Error string `json:"error"`
			Field string `json:"field"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Field = e.Field
		}
		return nil, apiErr
	}
	return body, nil
}

func setString(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setInt(v url.Values, key string, val int) {
	if val != 0 {
		v.Set(key, strconv.Itoa(val))
	}
}
