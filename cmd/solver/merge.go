package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lox/drawsolver/internal/store"
	"github.com/lox/drawsolver/sdk/solver"
)

// MergeCmd sums regret tables trained by independent workers.
type MergeCmd struct {
	Out        string   `help:"merged regrets file (.ndjson or .ndjson.gz)" required:""`
	Src        []string `help:"regret tables to sum" required:""`
	Blueprint  string   `help:"also write the averaged blueprint here"`
	Game       string   `help:"game name recorded in the blueprint"`
	Iterations int      `help:"total iterations recorded in the blueprint"`
}

func (c *MergeCmd) Run(g *Globals) error {
	logger, cfg, err := g.setup()
	if err != nil {
		return err
	}

	if err := requireFiles(c.Src); err != nil {
		return err
	}
	merged, _, err := solver.MergeRegrets(c.Out, c.Src, logger)
	if err != nil {
		return fmt.Errorf("merge regrets: %w", err)
	}

	if c.Blueprint == "" {
		return nil
	}
	bp := solver.BlueprintFromSnapshots(merged)
	bp.RunID = uuid.NewString()
	bp.Game = c.Game
	if bp.Game == "" {
		bp.Game = cfg.Train.Game
	}
	bp.GeneratedAt = time.Now().UTC()
	bp.Iterations = c.Iterations
	bp.Abstraction = cfg.Abstraction()
	bp.Draw = cfg.Draw()
	if err := bp.Save(c.Blueprint); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}
	logger.Info().Str("path", c.Blueprint).Msg("blueprint saved")
	return nil
}

// CompactCmd folds NDJSON tables of any value type into one, keeping the
// first value seen for each key.
type CompactCmd struct {
	Out string   `help:"compacted table (.ndjson or .ndjson.gz)" required:""`
	Src []string `help:"tables in priority order" required:""`
}

func (c *CompactCmd) Run(g *Globals) error {
	logger, _, err := g.setup()
	if err != nil {
		return err
	}
	if err := requireFiles(c.Src); err != nil {
		return err
	}
	if _, _, err := store.Merge[json.RawMessage](c.Out, c.Src, logger); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

// requireFiles rejects missing sources, which the merge itself would skip.
func requireFiles(paths []string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("source %s: %w", p, err)
		}
	}
	return nil
}
