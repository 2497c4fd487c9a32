package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/NexusTrust/internal/identity"
	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
)

func newKeygenCmd(g *globals) *cobra.Command {
	var out string
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 service key sealed with a passphrase",
		Long: `keygen writes a passphrase-encrypted key envelope that trustd loads via
signing.key_file, and prints the public key.

  trustctl keygen --out data/service.key --passphrase "$PASS"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.passphrase == "" {
				return errors.New("a passphrase is required (--passphrase or TRUSTCTL_PASSPHRASE)")
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}
			kp, err := trustcrypto.GenerateKeypair()
			if err != nil {
				return err
			}
			env, err := trustcrypto.ExportPrivateKey(kp.PrivateKey, []byte(g.passphrase))
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, env, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), kp.PublicKeyHex())
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "service.key", "path of the key envelope to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newPubkeyCmd(g *globals) *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "pubkey",
		Short: "Print the public key of a key envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kp, err := openKey(keyFile, g.passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), kp.PublicKeyHex())
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "service.key", "key envelope file")
	return cmd
}

func newTokenCmd(g *globals) *cobra.Command {
	var (
		keyFile string
		subject string
		issuer  string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the service key",
		Long: `token issues an EdDSA JWT that trustd accepts when auth.enabled is set.
The issuer must match the service's auth.issuer.

  trustctl token --key data/service.key --subject auditor-1 --scope trust:declare`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			kp, err := openKey(keyFile, g.passphrase)
			if err != nil {
				return err
			}
			token, err := identity.NewTokenIssuer(kp.PrivateKey, issuer, ttl).Issue(subject, scopes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "service.key", "key envelope file")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject; recorded as created_by on declarations")
	cmd.Flags().StringVar(&issuer, "issuer", "nexustrust", "token issuer")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{identity.ScopeDeclare}, "scopes to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func newCheckTokenCmd(g *globals) *cobra.Command {
	var pubHex, issuer string
	cmd := &cobra.Command{
		Use:   "check-token <token|->",
		Short: "Verify a bearer token offline against the service public key",
		Long: `check-token validates a token's signature, issuer and expiry with the
service public key (see GET /api/v1/keys/service) and prints its claims.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			pub, err := trustcrypto.ParsePublicKey(pubHex)
			if err != nil {
				return err
			}
			claims, err := identity.NewTokenVerifier(pub, issuer).Verify(strings.TrimSpace(string(raw)))
			if err != nil {
				return err
			}
			if g.output == "json" {
				return printJSON(cmd.OutOrStdout(), claims)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject %s\nscopes %s\nexpires %s\n",
				claims.Subject, strings.Join(claims.Scopes, ","), claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&pubHex, "pubkey", "", "hex service public key")
	cmd.Flags().StringVar(&issuer, "issuer", "nexustrust", "expected token issuer")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

func openKey(path, passphrase string) (*trustcrypto.Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	return trustcrypto.ImportPrivateKey(data, []byte(passphrase))
}
