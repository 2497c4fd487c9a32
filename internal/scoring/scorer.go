// Package scoring holds the numeric trust policy: pillar weights, weighted
// aggregation, evidence-derived factors, confidence, temporal decay and the
// category thresholds. Everything here is a pure function of its inputs.
package scoring

import (
	"fmt"
	"math"
)

// Pillar is one of the six weighted trust dimensions.
type Pillar string

const (
	Technical    Pillar = "technical"
	Ethical      Pillar = "ethical"
	Operational  Pillar = "operational"
	Transparency Pillar = "transparency"
	Security     Pillar = "security"
	Compliance   Pillar = "compliance"
)

// Pillars lists every pillar in weight-table order.
var Pillars = []Pillar{Technical, Ethical, Operational, Transparency, Security, Compliance}

// Valid reports whether p is a known pillar.
func (p Pillar) Valid() bool {
	_, ok := DefaultWeights[p]
	return ok
}

// Weights maps each pillar to its share of the overall score.
type Weights map[Pillar]float64

// DefaultWeights is the production weight table. The weights sum to 1.0.
var DefaultWeights = Weights{
	Technical:    0.25,
	Ethical:      0.20,
	Operational:  0.15,
	Transparency: 0.15,
	Security:     0.15,
	Compliance:   0.10,
}

// Factors maps pillars to scores in [0,1]. Pillars may be absent.
type Factors map[Pillar]float64

// Validate checks that every key is a known pillar and every value is in [0,1].
func (f Factors) Validate() error {
	for p, v := range f {
		if !p.Valid() {
			return fmt.Errorf("unknown pillar %q", p)
		}
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("factor %q must be in [0,1], got %v", p, v)
		}
	}
	return nil
}

// Contribution is one pillar's share of an aggregated score.
type Contribution struct {
	Weight       float64 `json:"weight"`
	Average      float64 `json:"average"`
	Contribution float64 `json:"contribution"`
	Samples      int     `json:"samples"`
}

// Result is the outcome of weighting one or more factor sets.
type Result struct {
	// Overall is Σ contribution / Σ weight over the pillars present, in [0,1].
	Overall float64 `json:"overall"`

	// Breakdown holds weight × average for every pillar present.
	Breakdown map[Pillar]Contribution `json:"breakdown"`

	// WeightCovered is the total weight of the pillars present.
	WeightCovered float64 `json:"weight_covered"`
}

// Score weights a single factor set.
func (w Weights) Score(f Factors) Result {
	return w.Aggregate([]Factors{f})
}

// Aggregate averages each pillar over the factor sets that carry it, weights
// the averages, and renormalises by the weight of the pillars present.
// Pillars absent from every set are excluded rather than defaulted.
func (w Weights) Aggregate(sets []Factors) Result {
	res := Result{Breakdown: make(map[Pillar]Contribution)}

	var contributed float64
	for _, p := range Pillars {
		weight, ok := w[p]
		if !ok {
			continue
		}
		var sum float64
		n := 0
		for _, f := range sets {
			if v, ok := f[p]; ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			continue
		}
		avg := sum / float64(n)
		c := weight * avg
		res.Breakdown[p] = Contribution{Weight: weight, Average: avg, Contribution: c, Samples: n}
		contributed += c
		res.WeightCovered += weight
	}

	if res.WeightCovered > 0 {
		res.Overall = clamp01(contributed / res.WeightCovered)
	}
	return res
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
