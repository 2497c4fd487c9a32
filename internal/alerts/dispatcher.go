// Package alerts delivers alert-worthy conditions, such as a broken audit
// chain, to operator webhooks. Each POST carries an HMAC-SHA256 signature of
// the body in the X-Trust-Signature header.
package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignatureHeader carries the body signature.
const SignatureHeader = "X-Trust-Signature"

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Dispatcher fans events out to a fixed set of webhook targets.
type Dispatcher struct {
	targets    []Target
	httpClient *http.Client
	delays     []time.Duration
	onMetrics  MetricsRecorder
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. With no targets, Dispatch only logs.
func NewDispatcher(targets []Target, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		targets:    targets,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Retry with backoff: immediately, then 1s, 5s.
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second},
		logger: logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// Dispatch sends the event to every target in the background. Delivery
// outlives the caller's context cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	event := Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	d.logger.Warn("alert raised",
		zap.String("event", eventType),
		zap.String("event_id", event.ID.String()),
		zap.Any("payload", payload),
	)

	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("alerts: marshal event", zap.Error(err))
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, t := range d.targets {
		d.wg.Add(1)
		go func(t Target) {
			defer d.wg.Done()
			d.deliver(ctx, t, event.ID, body)
		}(t)
	}
}

// Wait blocks until all in-flight deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// deliver sends the body to a single target with retries.
func (d *Dispatcher) deliver(ctx context.Context, t Target, eventID uuid.UUID, body []byte) Delivery {
	signature := Sign(body, t.Secret)

	var last Delivery
	for attempt, delay := range d.delays {
		if delay > 0 {
			time.Sleep(delay)
		}

		status, err := d.post(ctx, t.URL, body, signature)
		last = Delivery{
			EventID:    eventID,
			URL:        t.URL,
			StatusCode: status,
			Attempt:    attempt + 1,
			Success:    err == nil,
		}
		if err != nil {
			last.Err = err.Error()
		}

		if d.onMetrics != nil {
			d.onMetrics(last.Success)
		}
		if last.Success {
			return last
		}

		d.logger.Warn("alerts: delivery failed",
			zap.String("url", t.URL),
			zap.Int("attempt", last.Attempt),
			zap.String("error", last.Err),
		)
	}
	return last
}

// post performs a single HTTP POST delivery.
func (d *Dispatcher) post(ctx context.Context, url string, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign computes the HMAC-SHA256 signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether header is a valid signature of body.
func VerifySignature(body []byte, secret, header string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(header))
}
