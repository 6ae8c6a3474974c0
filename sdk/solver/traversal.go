package solver

import (
	rand "math/rand/v2"
)

// tableContext is the per-goroutine state of one sampled deal.
type tableContext struct {
	deal       Deal
	stats      *TraversalStats
	sampler    *rand.Rand
	updateOpts RegretUpdateOptions
}

// traverse returns the expected utility of history for target. reachPlayer
// is target's own probability of reaching the node and reachOthers the
// opponent's. Regrets are weighted by reachOthers and strategy sums by
// reachPlayer.
func (t *Trainer) traverse(tc *tableContext, history string, target int, depth int, reachPlayer, reachOthers float64) (float64, error) {
	if tc.stats != nil {
		tc.stats.NodesVisited++
		if depth > tc.stats.MaxDepth {
			tc.stats.MaxDepth = depth
		}
	}

	node, err := t.game.Node(&tc.deal, history)
	if err != nil {
		return 0, err
	}
	if node.Terminal {
		if tc.stats != nil {
			tc.stats.TerminalNodes++
		}
		return node.Utility[target], nil
	}
	if len(node.Actions) == 0 {
		return 0, unhandled(t.game.Name(), history)
	}

	key, err := t.game.InfoSetKey(&tc.deal, history, node.Player)
	if err != nil {
		return 0, err
	}
	entry := t.regrets.Get(key, node.Actions)
	strategy := entry.Strategy()[:len(node.Actions)]

	if node.Player == target {
		util := make([]float64, len(node.Actions))
		nodeUtil := 0.0
		for i, act := range node.Actions {
			u, err := t.traverse(tc, history+act, target, depth+1, reachPlayer*strategy[i], reachOthers)
			if err != nil {
				return 0, err
			}
			util[i] = u
			nodeUtil += strategy[i] * u
		}

		regrets := make([]float64, len(node.Actions))
		for i := range node.Actions {
			regrets[i] = (util[i] - nodeUtil) * reachOthers
		}
		entry.Update(regrets, strategy, reachPlayer, tc.updateOpts)
		return nodeUtil, nil
	}

	if t.trainCfg.Sampling == SamplingModeFullTraversal {
		nodeUtil := 0.0
		for i, act := range node.Actions {
			prob := strategy[i]
			if prob <= 0 {
				continue
			}
			u, err := t.traverse(tc, history+act, target, depth+1, reachPlayer, reachOthers*prob)
			if err != nil {
				return 0, err
			}
			nodeUtil += prob * u
		}
		return nodeUtil, nil
	}

	// External sampling: the sampled action stands in for the opponent's
	// whole distribution, so reachOthers is not scaled.
	idx, _ := sampleStrategyIndex(strategy, tc.sampler)
	return t.traverse(tc, history+node.Actions[idx], target, depth+1, reachPlayer, reachOthers)
}

func sampleStrategyIndex(strategy []float64, rng *rand.Rand) (int, float64) {
	if len(strategy) == 0 {
		return 0, 0
	}
	total := 0.0
	for _, v := range strategy {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		idx := rng.IntN(len(strategy))
		return idx, 1.0 / float64(len(strategy))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range strategy {
		if v <= 0 {
			continue
		}
		acc += v
		if r <= acc {
			return i, v / total
		}
	}
	return len(strategy) - 1, strategy[len(strategy)-1] / total
}
