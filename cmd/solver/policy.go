package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/lox/drawsolver/internal/store"
	"github.com/lox/drawsolver/sdk/solver"
	solverRuntime "github.com/lox/drawsolver/sdk/solver/runtime"
)

// PolicyCmd prints blueprint strategies, or the average-regret report for
// a regrets table.
type PolicyCmd struct {
	Blueprint  string `help:"blueprint to inspect" required:"" type:"existingfile"`
	Prefix     string `help:"only show info sets whose key starts with this"`
	Limit      int    `help:"maximum lines to print (0 => all)"`
	Format     string `help:"output format" enum:"text,json,yaml" default:"text"`
	Report     bool   `help:"print average regrets instead of strategies"`
	Regrets    string `help:"regrets table for --report (merged regrets.ndjson or a checkpoint regrets-<iteration>.ndjson)" type:"existingfile"`
	Iterations int    `help:"iterations behind --regrets (0 => blueprint iterations)"`

	out io.Writer
}

func (c *PolicyCmd) Run(g *Globals) error {
	logger, _, err := g.setup()
	if err != nil {
		return err
	}
	if c.out == nil {
		c.out = os.Stdout
	}

	policy, err := solverRuntime.Load(c.Blueprint)
	if err != nil {
		return err
	}
	bp := policy.Blueprint()
	logger.Info().
		Str("game", bp.Game).
		Str("run_id", bp.RunID).
		Int("iterations", bp.Iterations).
		Int("infosets", len(bp.Strategies)).
		Msg("blueprint loaded")

	if !c.Report {
		entries := policy.Entries(c.Prefix)
		if c.Limit > 0 && len(entries) > c.Limit {
			entries = entries[:c.Limit]
		}
		return c.write(entries, func(w io.Writer) {
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\n", e.Key, formatWeights(e.Actions, e.Strategy))
			}
		})
	}

	if c.Regrets == "" {
		return fmt.Errorf("--report needs --regrets")
	}
	snaps := make(map[string]solver.RegretSnapshot)
	if _, err := store.Load(c.Regrets, snaps, logger); err != nil {
		return fmt.Errorf("load regrets: %w", err)
	}
	for key := range snaps {
		if !strings.HasPrefix(key, c.Prefix) {
			delete(snaps, key)
		}
	}
	iterations := c.Iterations
	if iterations <= 0 {
		iterations = bp.Iterations
	}
	lines := solver.RegretReport(snaps, iterations, c.Limit)
	return c.write(lines, func(w io.Writer) {
		for _, l := range lines {
			actions := make([]string, len(l.Actions))
			for i, a := range l.Actions {
				actions[i] = solver.ActionLabel(a)
			}
			fmt.Fprintf(w, "%s\t%.4f\t%s\n", l.Key, l.Max, formatWeights(actions, l.Average))
		}
	})
}

func (c *PolicyCmd) write(v any, text func(w io.Writer)) error {
	switch c.Format {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(c.out)
		defer enc.Close()
		return enc.Encode(v)
	default:
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		text(w)
		return w.Flush()
	}
}

func formatWeights(actions []string, weights []float64) string {
	parts := make([]string, len(weights))
	for i, p := range weights {
		label := fmt.Sprint(i)
		if i < len(actions) {
			label = actions[i]
		}
		parts[i] = fmt.Sprintf("%s=%.3f", label, p)
	}
	return strings.Join(parts, " ")
}
