package scoring

// Category is a human-readable trust label derived from a score.
type Category string

const (
	Excellent Category = "Excellent"
	Good      Category = "Good"
	Fair      Category = "Fair"
	Poor      Category = "Poor"
	Critical  Category = "Critical"
)

// CategoryFor maps a score to its category, checking thresholds from the
// highest down:
//
//	≥ 0.90 → Excellent
//	≥ 0.75 → Good
//	≥ 0.60 → Fair
//	≥ 0.40 → Poor
//	else   → Critical
func CategoryFor(score float64) Category {
	switch {
	case score >= 0.90:
		return Excellent
	case score >= 0.75:
		return Good
	case score >= 0.60:
		return Fair
	case score >= 0.40:
		return Poor
	default:
		return Critical
	}
}
