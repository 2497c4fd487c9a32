package scoring

import "math"

// EvidenceType classifies a piece of supporting evidence.
type EvidenceType string

const (
	EvidenceTechnical   EvidenceType = "technical"
	EvidenceOperational EvidenceType = "operational"
	EvidenceCompliance  EvidenceType = "compliance"
	EvidenceSecurity    EvidenceType = "security"
)

// EvidenceTypes lists the accepted evidence types.
var EvidenceTypes = []EvidenceType{EvidenceTechnical, EvidenceOperational, EvidenceCompliance, EvidenceSecurity}

// Valid reports whether t is an accepted evidence type.
func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceTechnical, EvidenceOperational, EvidenceCompliance, EvidenceSecurity:
		return true
	}
	return false
}

// Pillar returns the pillar an evidence type supports.
func (t EvidenceType) Pillar() Pillar {
	return Pillar(t)
}

// EvidenceSignal is the part of an evidence record the scorer looks at.
type EvidenceSignal struct {
	Type EvidenceType
	// Verifiable is set when the evidence carries a URL that can be followed.
	Verifiable bool
}

// Per-item strength of a piece of evidence.
const (
	plainStrength      = 0.6
	verifiableStrength = 0.8
)

// EvidenceFactors derives pillar factors from evidence alone. Each item
// contributes a strength of 0.6, or 0.8 when verifiable, and items for the
// same pillar accumulate as 1 − Π(1 − strength). Pillars with no evidence
// are left out.
func EvidenceFactors(signals []EvidenceSignal) Factors {
	missing := make(map[Pillar]float64)
	for _, s := range signals {
		if !s.Type.Valid() {
			continue
		}
		p := s.Type.Pillar()
		if _, ok := missing[p]; !ok {
			missing[p] = 1
		}
		strength := plainStrength
		if s.Verifiable {
			strength = verifiableStrength
		}
		missing[p] *= 1 - strength
	}

	f := make(Factors, len(missing))
	for p, m := range missing {
		f[p] = clamp01(1 - m)
	}
	return f
}

// Confidence grows with the amount, type diversity and verifiability of the
// evidence and is scaled by recency (a multiplier in [0,1]):
//
//	volume     = 1 − 0.75ⁿ
//	diversity  = distinct types / 4
//	verifiable = verifiable items / n
//	confidence = (0.5·volume + 0.3·diversity + 0.2·verifiable) · recency
func Confidence(signals []EvidenceSignal, recency float64) float64 {
	n := 0
	verifiable := 0
	types := make(map[EvidenceType]struct{})
	for _, s := range signals {
		if !s.Type.Valid() {
			continue
		}
		n++
		types[s.Type] = struct{}{}
		if s.Verifiable {
			verifiable++
		}
	}
	if n == 0 {
		return 0
	}

	volume := 1 - math.Pow(0.75, float64(n))
	diversity := float64(len(types)) / float64(len(EvidenceTypes))
	verified := float64(verifiable) / float64(n)
	return clamp01((0.5*volume + 0.3*diversity + 0.2*verified) * clamp01(recency))
}
