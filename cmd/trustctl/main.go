package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	cfgFile    string
	serverURL  string
	token      string
	passphrase string
	output     string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "trustctl",
		Short: "NexusTrust command-line tool",
		Long: `trustctl manages service keys, signs and verifies data offline, checks
exported audit chains, and talks to a running trust service.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.cfgFile != "" {
				viper.SetConfigFile(g.cfgFile)
			} else {
				home, _ := os.UserHomeDir()
				viper.AddConfigPath(home + "/.trustctl")
				viper.SetConfigName("config")
				viper.SetConfigType("yaml")
			}
			viper.SetEnvPrefix("TRUSTCTL")
			viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			viper.AutomaticEnv()
			_ = viper.ReadInConfig()

			if g.serverURL == "" {
				g.serverURL = viper.GetString("server")
			}
			if g.serverURL == "" {
				g.serverURL = "http://localhost:8080"
			}
			if g.token == "" {
				g.token = viper.GetString("token")
			}
			if g.passphrase == "" {
				g.passphrase = viper.GetString("passphrase")
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.cfgFile, "config", "", "config file (default ~/.trustctl/config.yaml)")
	pf.StringVar(&g.serverURL, "server", "", "trust service URL (default http://localhost:8080)")
	pf.StringVar(&g.token, "token", "", "bearer token for the trust service (env TRUSTCTL_TOKEN)")
	pf.StringVar(&g.passphrase, "passphrase", "", "passphrase for the key envelope (env TRUSTCTL_PASSPHRASE)")
	pf.StringVarP(&g.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newKeygenCmd(g),
		newPubkeyCmd(g),
		newTokenCmd(g),
		newCheckTokenCmd(g),
		newSignCmd(g),
		newVerifyCmd(g),
		newHashCmd(g),
		newCategoryCmd(g),
		newVerifyChainCmd(g),
		newScoreCmd(g),
		newDeclareCmd(g),
		newAuditCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print the trustctl version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "trustctl", version)
			},
		},
	)
	return root
}

// readInput returns arg itself, or stdin when arg is "-".
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return b, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
