package solver

import (
	"sort"
)

// RegretLine is the regret diagnostic for one info set.
type RegretLine struct {
	Key     string    `json:"key" yaml:"key"`
	Actions []string  `json:"actions" yaml:"actions"`
	Average []float64 `json:"average_regret" yaml:"average_regret"`
	// Max is the largest positive average regret, the amount the current
	// strategy could still gain per iteration by switching actions.
	Max float64 `json:"max" yaml:"max"`
}

// RegretReport divides cumulative regrets by the iteration count and sorts
// info sets by their largest positive average regret, worst first. limit
// <= 0 returns every line.
func RegretReport(snaps map[string]RegretSnapshot, iterations, limit int) []RegretLine {
	iters := float64(max(iterations, 1))
	lines := make([]RegretLine, 0, len(snaps))
	for key, snap := range snaps {
		line := RegretLine{
			Key:     key,
			Actions: snap.Actions,
			Average: make([]float64, len(snap.RegretSum)),
		}
		for i, r := range snap.RegretSum {
			line.Average[i] = r / iters
			if line.Average[i] > line.Max {
				line.Max = line.Average[i]
			}
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Max != lines[j].Max {
			return lines[i].Max > lines[j].Max
		}
		return lines[i].Key < lines[j].Key
	})
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}
