package runtime

import (
	"errors"
	rand "math/rand/v2"
	"sort"
	"strings"

	"github.com/lox/drawsolver/sdk/solver"
)

// Policy exposes read-only access to a solver blueprint for sampling actions.
type Policy struct {
	blueprint *solver.Blueprint
}

// Load constructs a runtime policy from a stored blueprint file.
func Load(path string) (*Policy, error) {
	bp, err := solver.LoadBlueprint(path)
	if err != nil {
		return nil, err
	}
	return New(bp), nil
}

// New wraps an in-memory blueprint.
func New(bp *solver.Blueprint) *Policy {
	return &Policy{blueprint: bp}
}

// Blueprint returns the underlying blueprint metadata (read-only).
func (p *Policy) Blueprint() *solver.Blueprint {
	if p == nil {
		return nil
	}
	return p.blueprint
}

// ActionWeights returns the stored probability distribution for the provided
// info-set key and action count. When the key is missing, a uniform policy is
// returned to guarantee a valid distribution.
func (p *Policy) ActionWeights(key string, actionCount int) ([]float64, error) {
	if p == nil || p.blueprint == nil {
		return nil, errors.New("nil policy")
	}
	if actionCount <= 0 {
		return nil, errors.New("action count must be positive")
	}

	if strat, ok := p.blueprint.Strategy(key); ok {
		out := make([]float64, actionCount)
		copy(out, strat)
		if len(strat) >= actionCount {
			return out, nil
		}
		// Pad missing entries uniformly for remaining actions.
		uniform := 1.0 / float64(actionCount)
		for i := len(strat); i < actionCount; i++ {
			out[i] = uniform
		}
		return out, nil
	}

	out := make([]float64, actionCount)
	v := 1.0 / float64(actionCount)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

// Sample draws an action index from the stored distribution.
func (p *Policy) Sample(key string, actionCount int, rng *rand.Rand) (int, error) {
	weights, err := p.ActionWeights(key, actionCount)
	if err != nil {
		return 0, err
	}
	r := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i, nil
		}
	}
	return actionCount - 1, nil
}

// Entry is one info set as shown by the policy command.
type Entry struct {
	Key      string    `json:"key" yaml:"key"`
	Actions  []string  `json:"actions" yaml:"actions"`
	Strategy []float64 `json:"strategy" yaml:"strategy"`
}

// Entries lists info sets whose key starts with prefix, sorted by key.
func (p *Policy) Entries(prefix string) []Entry {
	if p == nil || p.blueprint == nil {
		return nil
	}
	var out []Entry
	for key, strat := range p.blueprint.Strategies {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		actions := make([]string, len(p.blueprint.Actions[key]))
		for i, a := range p.blueprint.Actions[key] {
			actions[i] = solver.ActionLabel(a)
		}
		out = append(out, Entry{Key: key, Actions: actions, Strategy: strat})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
