package service

import (
	"context"

	"github.com/jmerrifield20/NexusTrust/internal/scoring"
	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
)

// VerifyAssertion scores an ad-hoc assertion with the declaration weighting
// and reports whether it reaches the required score. Nothing is stored.
func (e *Engine) VerifyAssertion(_ context.Context, in model.AssertionInput) (*scoring.Assessment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	res := e.assessor.Assess(scoring.AssessInput{
		Assertion:     in.Assertion,
		Evidence:      model.Signals(in.Evidence),
		Factors:       in.Factors,
		RequiredScore: in.RequiredScore,
	})
	return &res, nil
}
