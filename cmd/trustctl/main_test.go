package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// run executes trustctl with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestKeygenSignVerify(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "service.key")

	pub, err := run(t, "", "keygen", "--out", keyFile, "--passphrase", "pw")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if len(pub) != 64 {
		t.Fatalf("expected hex public key, got %q", pub)
	}

	got, err := run(t, "", "pubkey", "--key", keyFile, "--passphrase", "pw")
	if err != nil || got != pub {
		t.Fatalf("pubkey = %q, %v; want %q", got, err, pub)
	}

	sig, err := run(t, "hello trust", "sign", "-", "--key", keyFile, "--passphrase", "pw")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := run(t, "", "verify", "hello trust", "--pubkey", pub, "--signature", sig); err != nil {
		t.Errorf("verify: %v", err)
	}
	if _, err := run(t, "", "verify", "hello trusT", "--pubkey", pub, "--signature", sig); err == nil {
		t.Error("expected verification of altered data to fail")
	}

	if _, err := run(t, "", "keygen", "--out", keyFile, "--passphrase", "pw"); err == nil {
		t.Error("expected keygen to refuse overwriting without --force")
	}
}

func TestToken(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "service.key")
	if _, err := run(t, "", "keygen", "--out", keyFile, "--passphrase", "pw"); err != nil {
		t.Fatal(err)
	}
	tok, err := run(t, "", "token", "--key", keyFile, "--passphrase", "pw", "--subject", "auditor-1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Errorf("expected a JWT, got %q", tok)
	}
	if _, err := run(t, "", "token", "--key", keyFile, "--passphrase", "pw"); err == nil {
		t.Error("expected --subject to be required")
	}

	pub, err := run(t, "", "pubkey", "--key", keyFile, "--passphrase", "pw")
	if err != nil {
		t.Fatal(err)
	}
	out, err := run(t, tok, "check-token", "-", "--pubkey", pub)
	if err != nil {
		t.Fatalf("check-token: %v", err)
	}
	if !strings.Contains(out, "subject auditor-1") || !strings.Contains(out, "trust:declare") {
		t.Errorf("unexpected claims output %q", out)
	}
	if _, err := run(t, "", "check-token", tok, "--pubkey", pub, "--issuer", "someone-else"); err == nil {
		t.Error("expected a token from another issuer to be rejected")
	}

	other, _ := trustcrypto.GenerateKeypair()
	if _, err := run(t, "", "check-token", tok, "--pubkey", other.PublicKeyHex()); err == nil {
		t.Error("expected a token checked against the wrong key to be rejected")
	}
}

func TestHashAndCategory(t *testing.T) {
	got, err := run(t, "", "hash", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("unexpected digest %s", got)
	}

	a, err := run(t, "", "hash", "--canonical", `{"b":1,"a":2}`)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := run(t, "", "hash", "--canonical", `{ "a": 2, "b": 1 }`)
	if a != b {
		t.Error("canonical hashes of equivalent JSON differ")
	}

	cat, err := run(t, "", "category", "0.91")
	if err != nil || cat != "Excellent" {
		t.Errorf("category 0.91 = %q, %v", cat, err)
	}
	if _, err := run(t, "", "category", "1.2"); err == nil {
		t.Error("expected out-of-range score to fail")
	}
}

func TestVerifyChain(t *testing.T) {
	ctx := context.Background()
	kp, err := trustcrypto.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	ledger := trustledger.New()
	prev := trustledger.GenesisHash
	for i := 0; i < 3; i++ {
		e := trustledger.NewEntry("agent-42", "tx", "trust.declaration.created", "auditor-1", "agent-42",
			map[string]any{"localScore": 0.85, "evidenceCount": 1}, time.Now())
		e.PreviousHash = prev
		if err := e.Sign(kp.PrivateKey); err != nil {
			t.Fatal(err)
		}
		stored, err := ledger.Append(ctx, e)
		if err != nil {
			t.Fatal(err)
		}
		prev = stored.Hash
	}
	entries, _ := ledger.Entries(ctx, "agent-42")

	dir := t.TempDir()
	good := filepath.Join(dir, "chain.json")
	page, _ := json.Marshal(map[string]any{"entries": []any{entries[2], entries[0], entries[1]}, "total": 3})
	if err := os.WriteFile(good, page, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "verify-chain", good, "--pubkey", kp.PublicKeyHex())
	if err != nil {
		t.Fatalf("verify-chain: %v", err)
	}
	if !strings.Contains(out, "3 entries") {
		t.Errorf("unexpected output %q", out)
	}

	entries[1].Actor = "mallory"
	bad := filepath.Join(dir, "tampered.json")
	raw, _ := json.Marshal(entries)
	if err := os.WriteFile(bad, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "", "-o", "json", "verify-chain", bad)
	if err == nil {
		t.Fatal("expected tampered chain to fail")
	}
	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res["valid"] != false || res["index"] != float64(1) {
		t.Errorf("expected break at index 1, got %v", res)
	}
}

func TestParseEvidenceAndFactors(t *testing.T) {
	ev, err := parseEvidence([]string{"technical:load test:https://reports.example.com/42", "security:pen test"})
	if err != nil {
		t.Fatal(err)
	}
	if ev[0].URL != "https://reports.example.com/42" || ev[0].Description != "load test" {
		t.Errorf("unexpected evidence %+v", ev[0])
	}
	if ev[1].URL != "" || ev[1].Description != "pen test" {
		t.Errorf("unexpected evidence %+v", ev[1])
	}
	if _, err := parseEvidence([]string{"technical"}); err == nil {
		t.Error("expected error for evidence without description")
	}

	f, err := parseFactors([]string{"technical=0.9", "security=0.8"})
	if err != nil || f["technical"] != 0.9 || f["security"] != 0.8 {
		t.Errorf("parseFactors = %v, %v", f, err)
	}
	if _, err := parseFactors([]string{"technical:0.9"}); err == nil {
		t.Error("expected error for malformed factor")
	}
}
