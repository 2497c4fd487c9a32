package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// factorsFrom builds a factor set from six values and a bitmask selecting
// which pillars are present.
func factorsFrom(mask int, vals []float64) Factors {
	f := Factors{}
	for i, p := range Pillars {
		if mask&(1<<i) != 0 {
			f[p] = vals[i]
		}
	}
	return f
}

func TestScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	unit := gen.Float64Range(0, 1)

	properties.Property("overall stays within [0,1]", prop.ForAll(
		func(mask int, a, b, c, d, e, f float64) bool {
			res := DefaultWeights.Score(factorsFrom(mask, []float64{a, b, c, d, e, f}))
			return res.Overall >= 0 && res.Overall <= 1
		},
		gen.IntRange(0, 63), unit, unit, unit, unit, unit, unit,
	))

	properties.Property("uniform factors score their own value", prop.ForAll(
		func(mask int, v float64) bool {
			res := DefaultWeights.Score(factorsFrom(mask, []float64{v, v, v, v, v, v}))
			return math.Abs(res.Overall-v) < 1e-9
		},
		gen.IntRange(1, 63), unit,
	))

	properties.Property("decayed score never exceeds the overall", prop.ForAll(
		func(v float64, days int) bool {
			d := DefaultDecay.Apply(v, Day*time.Duration(days))
			return d >= 0 && d <= v
		},
		unit, gen.IntRange(0, 3650),
	))

	properties.TestingRun(t)
}
