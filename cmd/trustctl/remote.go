package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/NexusTrust/pkg/client"
)

func (g *globals) client() (*client.Client, error) {
	var opts []client.Option
	if g.token != "" {
		opts = append(opts, client.WithBearerToken(g.token))
	}
	return client.New(g.serverURL, opts...)
}

func newScoreCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "score <agent-id>",
		Short: "Show an agent's current trust score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			score, err := c.GetScore(ctx, args[0])
			if err != nil {
				return err
			}
			if g.output == "json" {
				return printJSON(cmd.OutOrStdout(), score)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Agent:\t%s\n", score.AgentID)
			fmt.Fprintf(w, "Overall:\t%.4f\n", score.Overall)
			fmt.Fprintf(w, "Temporal:\t%.4f (%s)\n", score.TemporalScore, score.Category)
			fmt.Fprintf(w, "Confidence:\t%.4f\n", score.Confidence)
			fmt.Fprintf(w, "Declarations:\t%d (%d evidence)\n", score.DeclarationCount, score.EvidenceCount)
			fmt.Fprintf(w, "Last updated:\t%s\n", score.LastUpdated.Format(time.RFC3339))
			if score.Degraded {
				fmt.Fprintf(w, "Note:\tserved from last known snapshot\n")
			}
			for pillar, ctb := range score.Breakdown {
				fmt.Fprintf(w, "  %s\tavg %.3f x weight %.2f\n", pillar, ctb.Average, ctb.Weight)
			}
			return w.Flush()
		},
	}
}

func newDeclareCmd(g *globals) *cobra.Command {
	var (
		req      client.DeclarationRequest
		evidence []string
		factors  []string
		expires  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "declare",
		Short: "Record a trust declaration",
		Long: `declare records a signed declaration about an agent.

Evidence is given as type:description[:url] and factors as pillar=value:

  trustctl declare --agent agent-42 --assertion "meets latency SLO" \
    --evidence "technical:load test:https://reports.example.com/42" \
    --factor technical=0.9 --factor security=0.8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if req.Evidence, err = parseEvidence(evidence); err != nil {
				return err
			}
			if req.Factors, err = parseFactors(factors); err != nil {
				return err
			}
			if expires > 0 {
				t := time.Now().Add(expires).UTC()
				req.ExpiresAt = &t
			}

			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			res, err := c.CreateDeclaration(ctx, req)
			if err != nil {
				return err
			}
			if g.output == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "declaration %s recorded (local score %.4f)\naudit entry %s\n",
				res.Declaration.ID, res.Declaration.LocalScore, res.AuditEntryHash)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.AgentID, "agent", "", "agent id")
	f.StringVar(&req.Assertion, "assertion", "", "what is being declared")
	f.StringVar(&req.CreatedBy, "created-by", "", "declarer; ignored when the service authenticates by token")
	f.StringArrayVar(&evidence, "evidence", nil, "evidence as type:description[:url] (repeatable)")
	f.StringArrayVar(&factors, "factor", nil, "factor as pillar=value (repeatable)")
	f.DurationVar(&expires, "expires-in", 0, "declaration lifetime; 0 never expires")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("assertion")
	return cmd
}

func newAuditCmd(g *globals) *cobra.Command {
	var q client.AuditQuery
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			page, err := c.AuditTrail(ctx, q)
			if err != nil {
				return err
			}
			if g.output == "json" {
				return printJSON(cmd.OutOrStdout(), page)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tIDX\tTIME\tACTION\tACTOR\tHASH")
			for _, e := range page.Entries {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
					e.ChainID, e.Index, e.Timestamp.Format(time.RFC3339), e.Action, e.Actor, shortHash(e.Hash))
			}
			fmt.Fprintf(w, "\n%d of %d entries\n", len(page.Entries), page.Total)
			return w.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.AgentID, "agent", "", "only this agent's chain")
	f.StringVar(&q.TransactionID, "tx", "", "only this transaction id")
	f.IntVar(&q.Limit, "limit", 0, "page size (server default 50, max 200)")
	f.IntVar(&q.Offset, "offset", 0, "entries to skip")
	f.BoolVar(&q.Verify, "verify", false, "verify every chain on the page")
	return cmd
}

// parseEvidence parses type:description[:url]. The URL keeps its own colons.
func parseEvidence(in []string) ([]client.Evidence, error) {
	out := make([]client.Evidence, 0, len(in))
	for _, s := range in {
		typ, rest, ok := strings.Cut(s, ":")
		if !ok || typ == "" || rest == "" {
			return nil, fmt.Errorf("evidence %q must look like type:description[:url]", s)
		}
		ev := client.Evidence{Type: typ, Description: rest}
		if i := strings.LastIndex(rest, ":http"); i > 0 {
			ev.Description, ev.URL = rest[:i], rest[i+1:]
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseFactors(in []string) (map[string]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(in))
	for _, s := range in {
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("factor %q must look like pillar=value", s)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("factor %q: %w", s, err)
		}
		out[k] = f
	}
	return out, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
