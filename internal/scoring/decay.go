package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Day is the unit that ages are measured in.
const Day = 24 * time.Hour

// DecayPolicy describes exponential temporal decay compounded per half-life.
type DecayPolicy struct {
	Factor   float64
	HalfLife time.Duration
}

// DefaultDecay loses 5% of the score for every 30 days of age.
var DefaultDecay = DecayPolicy{Factor: 0.95, HalfLife: 30 * Day}

// Multiplier returns Factor^(age / HalfLife). Negative ages count as zero.
func (p DecayPolicy) Multiplier(age time.Duration) float64 {
	if age <= 0 || p.HalfLife <= 0 {
		return 1
	}
	ageDays := age.Hours() / 24
	halfLifeDays := p.HalfLife.Hours() / 24
	return clamp01(math.Pow(p.Factor, ageDays/halfLifeDays))
}

// Apply decays score by the given age.
func (p DecayPolicy) Apply(score float64, age time.Duration) float64 {
	return clamp01(score * p.Multiplier(age))
}

// MaxTimeframeDays bounds trend windows.
const MaxTimeframeDays = 365

var timeframeRe = regexp.MustCompile(`^(\d+)([dw])$`)

// ParseTimeframe parses "30d" or "4w" into a number of days in
// [1, MaxTimeframeDays]. An empty string means 30 days.
func ParseTimeframe(s string) (int, error) {
	if s == "" {
		return 30, nil
	}
	m := timeframeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("timeframe %q must look like 30d or 4w", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("timeframe %q: %w", s, err)
	}
	if m[2] == "w" {
		n *= 7
	}
	if n < 1 || n > MaxTimeframeDays {
		return 0, fmt.Errorf("timeframe %q must be between 1 and %d days", s, MaxTimeframeDays)
	}
	return n, nil
}
