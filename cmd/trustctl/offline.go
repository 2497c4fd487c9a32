package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

func newSignCmd(g *globals) *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "sign <data|->",
		Short: "Sign data with a key envelope and print the base64 signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			kp, err := openKey(keyFile, g.passphrase)
			if err != nil {
				return err
			}
			sig, err := trustcrypto.Sign(data, kp.PrivateKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(sig))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "service.key", "key envelope file")
	return cmd
}

func newVerifyCmd(_ *globals) *cobra.Command {
	var pubHex, sigB64 string
	cmd := &cobra.Command{
		Use:   "verify <data|->",
		Short: "Verify a base64 signature against a hex public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			pub, err := trustcrypto.ParsePublicKey(pubHex)
			if err != nil {
				return err
			}
			sig, err := base64.StdEncoding.DecodeString(sigB64)
			if err != nil {
				return fmt.Errorf("decode signature: %w", err)
			}
			ok, err := trustcrypto.Verify(sig, data, pub)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("signature INVALID")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&pubHex, "pubkey", "", "hex Ed25519 public key")
	cmd.Flags().StringVar(&sigB64, "signature", "", "base64 signature")
	_ = cmd.MarkFlagRequired("pubkey")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newHashCmd(_ *globals) *cobra.Command {
	var canonical bool
	cmd := &cobra.Command{
		Use:   "hash <data|->",
		Short: "Print the SHA-256 hex digest of data",
		Long: `hash prints the SHA-256 of the input. With --canonical the input is parsed
as JSON and hashed in its canonical (RFC 8785) form, which is how declarations
and audit payloads are hashed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if canonical {
				var v any
				if err := json.Unmarshal(data, &v); err != nil {
					return fmt.Errorf("parse JSON: %w", err)
				}
				if data, err = trustcrypto.Canonicalize(v); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), trustcrypto.Hash(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "canonicalize JSON input before hashing")
	return cmd
}

func newCategoryCmd(_ *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "category <score>",
		Short: "Map a score in [0,1] to its trust category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[0], 64)
			if err != nil || score < 0 || score > 1 {
				return fmt.Errorf("score must be a number in [0,1], got %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), scoring.CategoryFor(score))
			return nil
		},
	}
}

func newVerifyChainCmd(g *globals) *cobra.Command {
	var pubHex string
	cmd := &cobra.Command{
		Use:   "verify-chain <file>",
		Short: "Verify an exported audit chain offline",
		Long: `verify-chain checks a JSON file holding one agent's audit entries, either a
plain array or the {"entries": [...]} page returned by the audit endpoint.
Entries are ordered by index before checking. With --pubkey every signature
is verified too; without it only the hash links are checked.

  curl -s "$SERVER/api/v1/trust/audit?agent_id=agent-42&limit=200" > chain.json
  trustctl verify-chain chain.json --pubkey $(trustctl pubkey --key service.key)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			entries, err := parseEntries(data)
			if err != nil {
				return err
			}
			var pub []byte
			if pubHex != "" {
				if pub, err = trustcrypto.ParsePublicKey(pubHex); err != nil {
					return err
				}
			}

			verr := trustledger.VerifyChain(entries, pub)
			if g.output == "json" {
				res := map[string]any{"entries": len(entries), "valid": verr == nil}
				var ie *trustledger.IntegrityError
				if errors.As(verr, &ie) {
					res["index"] = ie.Index
					res["reason"] = ie.Reason
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			if verr != nil {
				return verr
			}
			if g.output != "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "chain valid: %d entries\n", len(entries))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pubHex, "pubkey", "", "hex service public key; enables signature checks")
	return cmd
}

func parseEntries(data []byte) ([]*trustledger.Entry, error) {
	var entries []*trustledger.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		var page struct {
			Entries []*trustledger.Entry `json:"entries"`
		}
		if err2 := json.Unmarshal(data, &page); err2 != nil {
			return nil, fmt.Errorf("parse entries: %w", err)
		}
		entries = page.Entries
	}
	for _, e := range entries {
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}
