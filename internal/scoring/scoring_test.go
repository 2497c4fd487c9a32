package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights_sumToOne(t *testing.T) {
	var sum float64
	for _, p := range Pillars {
		sum += DefaultWeights[p]
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Len(t, DefaultWeights, len(Pillars))
}

func TestCategoryFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Category
	}{
		{1, Excellent},
		{0.95, Excellent},
		{0.90, Excellent},
		{0.8999, Good},
		{0.75, Good},
		{0.74, Fair},
		{0.60, Fair},
		{0.40, Poor},
		{0.3999, Critical},
		{0, Critical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CategoryFor(tc.score), "score %v", tc.score)
	}
}

func TestScore_singlePillar(t *testing.T) {
	res := DefaultWeights.Score(Factors{Technical: 0.9})

	assert.InDelta(t, 0.9, res.Overall, 1e-12)
	require.Contains(t, res.Breakdown, Technical)
	assert.Equal(t, 0.25*0.9, res.Breakdown[Technical].Contribution)
	assert.Len(t, res.Breakdown, 1)
	assert.Equal(t, 0.25, res.WeightCovered)
}

func TestAggregate_averagesAcrossSetsAndRenormalises(t *testing.T) {
	res := DefaultWeights.Aggregate([]Factors{
		{Technical: 0.8, Security: 0.6},
		{Technical: 0.6},
	})

	assert.InDelta(t, 0.7, res.Breakdown[Technical].Average, 1e-12)
	assert.Equal(t, 2, res.Breakdown[Technical].Samples)
	assert.Equal(t, 1, res.Breakdown[Security].Samples)
	assert.InDelta(t, (0.25*0.7+0.15*0.6)/0.40, res.Overall, 1e-12)
	assert.NotContains(t, res.Breakdown, Ethical)
}

func TestAggregate_allPillarsPerfect(t *testing.T) {
	f := Factors{}
	for _, p := range Pillars {
		f[p] = 1
	}
	res := DefaultWeights.Score(f)
	assert.InDelta(t, 1.0, res.Overall, 1e-12)
	assert.InDelta(t, 1.0, res.WeightCovered, 1e-12)
}

func TestAggregate_empty(t *testing.T) {
	res := DefaultWeights.Aggregate(nil)
	assert.Zero(t, res.Overall)
	assert.Empty(t, res.Breakdown)
}

func TestFactorsValidate(t *testing.T) {
	assert.NoError(t, Factors{Technical: 0, Ethical: 1}.Validate())
	assert.Error(t, Factors{"reputation": 0.5}.Validate())
	assert.Error(t, Factors{Technical: 1.1}.Validate())
	assert.Error(t, Factors{Technical: -0.1}.Validate())
	assert.Error(t, Factors{Technical: math.NaN()}.Validate())
}

func TestEvidenceFactors(t *testing.T) {
	f := EvidenceFactors([]EvidenceSignal{
		{Type: EvidenceTechnical},
		{Type: EvidenceTechnical, Verifiable: true},
		{Type: EvidenceSecurity},
		{Type: "rumour"},
	})

	assert.InDelta(t, 1-(0.4*0.2), f[Technical], 1e-12)
	assert.InDelta(t, 0.6, f[Security], 1e-12)
	assert.Len(t, f, 2)
}

func TestConfidence(t *testing.T) {
	assert.Zero(t, Confidence(nil, 1))

	one := Confidence([]EvidenceSignal{{Type: EvidenceTechnical}}, 1)
	assert.InDelta(t, 0.5*0.25+0.3*0.25, one, 1e-12)

	richer := Confidence([]EvidenceSignal{
		{Type: EvidenceTechnical, Verifiable: true},
		{Type: EvidenceOperational, Verifiable: true},
		{Type: EvidenceCompliance},
		{Type: EvidenceSecurity, Verifiable: true},
	}, 1)
	assert.Greater(t, richer, one)
	assert.LessOrEqual(t, richer, 1.0)

	assert.InDelta(t, one/2, Confidence([]EvidenceSignal{{Type: EvidenceTechnical}}, 0.5), 1e-12)
}

func TestDecay(t *testing.T) {
	d := DefaultDecay
	assert.Equal(t, 1.0, d.Multiplier(0))
	assert.Equal(t, 1.0, d.Multiplier(-time.Hour))
	assert.InDelta(t, 0.95, d.Multiplier(30*Day), 1e-12)
	assert.InDelta(t, 0.9025, d.Multiplier(60*Day), 1e-12)
	assert.InDelta(t, 0.76, d.Apply(0.8, 30*Day), 1e-12)
	assert.Less(t, d.Multiplier(15*Day), 1.0)
	assert.Greater(t, d.Multiplier(15*Day), 0.95)
}

func TestParseTimeframe(t *testing.T) {
	good := map[string]int{"": 30, "30d": 30, "7d": 7, "2w": 14, "365d": 365, "1d": 1}
	for in, want := range good {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0d", "366d", "53w", "30", "-1d", "1m", "d"} {
		_, err := ParseTimeframe(in)
		assert.Error(t, err, in)
	}
}

func TestAssess(t *testing.T) {
	a := NewAssessor(nil)

	got := a.Assess(AssessInput{
		Assertion: "uptime above 99.9%",
		Factors:   Factors{Technical: 0.9, Security: 0.8},
	})
	assert.True(t, got.Verified)
	assert.InDelta(t, (0.25*0.9+0.15*0.8)/0.40, got.Score, 1e-12)
	assert.Equal(t, DefaultRequiredScore, got.RequiredScore)
	assert.Equal(t, Good, got.Category)

	var rules []string
	for _, f := range got.Rationale {
		rules = append(rules, f.Rule)
	}
	assert.Contains(t, rules, "missing_pillars")
	assert.Contains(t, rules, "threshold")

	strict := a.Assess(AssessInput{
		Factors:       Factors{Technical: 0.9, Security: 0.8},
		RequiredScore: 0.9,
	})
	assert.False(t, strict.Verified)
}

func TestAssess_fromEvidence(t *testing.T) {
	got := NewAssessor(nil).Assess(AssessInput{
		Evidence: []EvidenceSignal{{Type: EvidenceSecurity, Verifiable: true}},
	})
	assert.InDelta(t, 0.8, got.Score, 1e-12)
	assert.True(t, got.Verified)
	assert.Equal(t, "factor_source", got.Rationale[0].Rule)
}

func TestAssess_noEvidenceFails(t *testing.T) {
	got := NewAssessor(nil).Assess(AssessInput{Assertion: "trust me"})
	assert.False(t, got.Verified)
	assert.Zero(t, got.Score)
	assert.Equal(t, Critical, got.Category)
}
