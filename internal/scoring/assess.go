package scoring

import (
	"fmt"
	"strings"
)

// DefaultRequiredScore is the pass mark used when a caller does not set one.
const DefaultRequiredScore = 0.6

// Finding is one line of an assessment rationale.
type Finding struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
}

// Assessment is the result of scoring an ad-hoc assertion.
type Assessment struct {
	Verified      bool                    `json:"verified"`
	Score         float64                 `json:"score"`
	RequiredScore float64                 `json:"required_score"`
	Category      Category                `json:"category"`
	Breakdown     map[Pillar]Contribution `json:"breakdown"`
	Rationale     []Finding               `json:"rationale"`
}

// AssessInput is what an assessment looks at.
type AssessInput struct {
	Assertion     string
	Evidence      []EvidenceSignal
	Factors       Factors
	RequiredScore float64
}

// ruleFunc inspects an assessment and returns zero or more findings.
type ruleFunc func(in AssessInput, res Result) []Finding

// Assessor scores assertions and explains the result with a fixed rule set.
type Assessor struct {
	weights Weights
	rules   []ruleFunc
}

// NewAssessor returns an Assessor using w, or DefaultWeights when w is nil.
func NewAssessor(w Weights) *Assessor {
	if w == nil {
		w = DefaultWeights
	}
	return &Assessor{
		weights: w,
		rules: []ruleFunc{
			ruleFactorSource,
			ruleVerifiableEvidence,
			ruleMissingPillars,
		},
	}
}

// Assess computes the score with the same weighting as declarations. When no
// factors are supplied the evidence-derived factors are used.
func (a *Assessor) Assess(in AssessInput) Assessment {
	if in.RequiredScore <= 0 {
		in.RequiredScore = DefaultRequiredScore
	}
	factors := in.Factors
	if len(factors) == 0 {
		factors = EvidenceFactors(in.Evidence)
	}
	res := a.weights.Score(factors)

	var findings []Finding
	for _, r := range a.rules {
		findings = append(findings, r(in, res)...)
	}

	verified := res.Overall >= in.RequiredScore
	verdict := "meets"
	if !verified {
		verdict = "falls short of"
	}
	findings = append(findings, Finding{
		Rule:        "threshold",
		Description: fmt.Sprintf("score %.3f %s required %.3f", res.Overall, verdict, in.RequiredScore),
	})

	return Assessment{
		Verified:      verified,
		Score:         res.Overall,
		RequiredScore: in.RequiredScore,
		Category:      CategoryFor(res.Overall),
		Breakdown:     res.Breakdown,
		Rationale:     findings,
	}
}

// ── Rules ─────────────────────────────────────────────────────────────────────

func ruleFactorSource(in AssessInput, res Result) []Finding {
	if len(in.Factors) > 0 {
		return []Finding{{
			Rule:        "factor_source",
			Description: fmt.Sprintf("declared factors for %d pillar(s)", len(res.Breakdown)),
		}}
	}
	return []Finding{{
		Rule:        "factor_source",
		Description: fmt.Sprintf("factors derived from %d evidence item(s)", len(in.Evidence)),
	}}
}

func ruleVerifiableEvidence(in AssessInput, _ Result) []Finding {
	if len(in.Evidence) == 0 {
		return []Finding{{Rule: "evidence", Description: "no evidence supplied"}}
	}
	n := 0
	for _, e := range in.Evidence {
		if e.Verifiable {
			n++
		}
	}
	return []Finding{{
		Rule:        "evidence",
		Description: fmt.Sprintf("%d of %d evidence item(s) carry a verifiable URL", n, len(in.Evidence)),
	}}
}

func ruleMissingPillars(_ AssessInput, res Result) []Finding {
	var missing []string
	for _, p := range Pillars {
		if _, ok := res.Breakdown[p]; !ok {
			missing = append(missing, string(p))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []Finding{{
		Rule:        "missing_pillars",
		Description: "excluded from weighting: " + strings.Join(missing, ", "),
	}}
}
