package reward

import (
	"github.com/halocircle/guardd/params"
	"github.com/shopspring/decimal"
)

// Rule is one row of the ordered reward table. Rules are evaluated in
// sequence with last-match-wins semantics for the token and score deltas;
// violation increments accumulate from every matching rule, so a later
// override never reverts an earlier violation.
type Rule struct {
	Name         string
	Match        func(speedMPH float64) bool
	TokensPerMin int64
	Score        decimal.Decimal
	Violation    bool
}

// DefaultRules builds the speed-band table. Order matters: the exercise
// band sits last so walking and running pace always takes the reward,
// whatever the speed bands said.
func DefaultRules(config params.RewardConfig) []Rule {
	return []Rule{
		{
			Name:         "safe",
			Match:        func(s float64) bool { return s <= config.SafeSpeedMaxMPH },
			TokensPerMin: config.SafeTokensPerMin,
			Score:        decimal.RequireFromString("0.2"),
		},
		{
			Name:         "caution",
			Match:        func(s float64) bool { return s > config.SafeSpeedMaxMPH && s <= config.CautionSpeedMaxMPH },
			TokensPerMin: config.CautionTokensPerMin,
			Score:        decimal.RequireFromString("-0.1"),
		},
		{
			Name:         "speeding",
			Match:        func(s float64) bool { return s > config.CautionSpeedMaxMPH },
			TokensPerMin: config.SpeedingTokensPerMin,
			Score:        decimal.RequireFromString("-0.8"),
			Violation:    true,
		},
		{
			Name:         "exercise",
			Match:        func(s float64) bool { return s >= config.ExerciseMinMPH && s <= config.ExerciseMaxMPH },
			TokensPerMin: config.ExerciseTokensPerMin,
			Score:        decimal.RequireFromString("0.1"),
		},
	}
}

// evaluate runs the table for one observation. wholeMinutes is the
// floor of the observed duration; rewards are minute-granular, so a
// sub-minute observation can legitimately earn zero tokens.
func evaluate(rules []Rule, speedMPH float64, wholeMinutes int64) (tokens int64, score decimal.Decimal, violations int) {
	matched := false
	for _, r := range rules {
		if !r.Match(speedMPH) {
			continue
		}
		matched = true
		tokens = wholeMinutes * r.TokensPerMin
		score = r.Score
		if r.Violation {
			violations++
		}
	}
	if !matched {
		return 0, decimal.Zero, 0
	}
	return tokens, score, violations
}
