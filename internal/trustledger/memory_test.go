package trustledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
)

func TestMemoryLedger_verifyDetectsStoredTamper(t *testing.T) {
	ctx := context.Background()
	kp, err := trustcrypto.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	l := New()
	for _, action := range []string{"a", "b", "c"} {
		head, _ := l.Head(ctx, "agent-1")
		e := NewEntry("agent-1", "tx", action, "alice", "agent-1", nil, time.Now())
		e.PreviousHash = head
		if err := e.Sign(kp.PrivateKey); err != nil {
			t.Fatal(err)
		}
		if _, err := l.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	l.chains["agent-1"].entries[1].Actor = "mallory"

	var ie *IntegrityError
	if err := l.Verify(ctx, "agent-1", kp.PublicKey); !errors.As(err, &ie) || ie.Index != 1 {
		t.Fatalf("expected break at index 1, got %v", err)
	}
}

func TestMemoryLedger_returnedEntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	l := New()
	e := NewEntry("agent-1", "tx", "a", "alice", "agent-1", map[string]any{"k": "v"}, time.Now())
	e.PreviousHash = GenesisHash
	stored, err := l.Append(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	stored.Metadata["k"] = "changed"
	e.Metadata["k"] = "changed"

	if err := l.Verify(ctx, "agent-1", nil); err != nil {
		t.Errorf("caller mutation leaked into ledger: %v", err)
	}
}

func TestMemoryLedger_rejectedFirstAppendLeavesNoChain(t *testing.T) {
	ctx := context.Background()
	l := New()
	e := NewEntry("agent-9", "tx", "a", "alice", "agent-9", nil, time.Now())
	e.PreviousHash = "not-the-genesis-hash"
	if _, err := l.Append(ctx, e); !errors.Is(err, ErrChainIntegrity) {
		t.Fatalf("expected ErrChainIntegrity, got %v", err)
	}
	ids, err := l.Chains(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no chains, got %v", ids)
	}
}

func TestEntry_jsonTimestampMatchesSignedPayload(t *testing.T) {
	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	e := NewEntry("agent-1", "tx", "a", "alice", "agent-1", map[string]any{"k": "v"}, ts)
	e.PreviousHash = GenesisHash

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	if got, want := fields["timestamp"], e.Payload().Timestamp; got != want {
		t.Errorf("timestamp = %v, want %v", got, want)
	}
	if fields["chainId"] != "agent-1" || fields["previousHash"] != GenesisHash {
		t.Errorf("unexpected fields %v", fields)
	}

	var back Entry
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Timestamp.Equal(ts) {
		t.Errorf("timestamp round-trip = %v, want %v", back.Timestamp, ts)
	}
}
