package handler_test

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

func TestLedgerOverview_200(t *testing.T) {
	f := setupTrustRouter(t, false)
	do(t, f.router, http.MethodPost, "/api/v1/trust/declarations", agent42Body)

	w := do(t, f.router, http.MethodGet, "/api/v1/ledger/agent-42", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if entries, _ := resp["entries"].(float64); entries != 1 {
		t.Errorf("expected 1 entry, got %v", resp["entries"])
	}
	if head, _ := resp["head"].(string); head == trustledger.GenesisHash || len(head) != 64 {
		t.Errorf("expected a non-genesis head, got %q", head)
	}
}

func TestLedgerOverview_emptyChain(t *testing.T) {
	f := setupTrustRouter(t, false)

	w := do(t, f.router, http.MethodGet, "/api/v1/ledger/unknown", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["head"] != trustledger.GenesisHash {
		t.Errorf("expected genesis head for an empty chain, got %v", resp["head"])
	}
}

func TestLedgerVerify_200(t *testing.T) {
	f := setupTrustRouter(t, false)
	do(t, f.router, http.MethodPost, "/api/v1/trust/declarations", agent42Body)
	do(t, f.router, http.MethodPost, "/api/v1/trust/declarations", agent42Body)

	w := do(t, f.router, http.MethodGet, "/api/v1/ledger/agent-42/verify", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); resp["valid"] != true {
		t.Errorf("expected valid=true, got %v", resp)
	}
}

func TestLedgerVerify_invalid(t *testing.T) {
	f := setupTrustRouter(t, false)

	// Unsigned entry: the link is fine but there is no signature to check.
	e := trustledger.NewEntry("agent-9", "tx-1", "trust.declaration.created", "mallory", "agent-9", nil, time.Now())
	e.PreviousHash = trustledger.GenesisHash
	if _, err := f.ledger.Append(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	w := do(t, f.router, http.MethodGet, "/api/v1/ledger/agent-9/verify", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["valid"] != false {
		t.Errorf("expected valid=false, got %v", resp["valid"])
	}
	if idx, _ := resp["index"].(float64); idx != 0 {
		t.Errorf("expected break at index 0, got %v", resp["index"])
	}
}

func TestLedgerGetEntry(t *testing.T) {
	f := setupTrustRouter(t, false)
	do(t, f.router, http.MethodPost, "/api/v1/trust/declarations", agent42Body)

	w := do(t, f.router, http.MethodGet, "/api/v1/ledger/agent-42/entries/0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["previousHash"] != trustledger.GenesisHash {
		t.Errorf("expected first entry to link to genesis, got %v", resp["previousHash"])
	}
	if resp["action"] != "trust.declaration.created" {
		t.Errorf("unexpected action %v", resp["action"])
	}

	if w := do(t, f.router, http.MethodGet, "/api/v1/ledger/agent-42/entries/9", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := do(t, f.router, http.MethodGet, "/api/v1/ledger/agent-42/entries/-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestServiceKey(t *testing.T) {
	f := setupTrustRouter(t, false)

	w := do(t, f.router, http.MethodGet, "/api/v1/keys/service", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["public_key"] != hex.EncodeToString(f.keys.PublicKey) {
		t.Errorf("hex key mismatch: %v", resp["public_key"])
	}
	if resp["base64"] != base64.StdEncoding.EncodeToString(f.keys.PublicKey) {
		t.Errorf("base64 key mismatch: %v", resp["base64"])
	}
	if resp["algorithm"] != "Ed25519" {
		t.Errorf("unexpected algorithm %v", resp["algorithm"])
	}
}
