package contextbuilder

import (
	"math"
	"unicode/utf8"
)

// DefaultTokensPerChar is the average token cost of one character of English text.
const DefaultTokensPerChar = 0.3

// TokenEstimator approximates the token cost of a text.
type TokenEstimator interface {
	Estimate(text string) int
}

// RatioEstimator charges ceil(chars * K) tokens per text.
type RatioEstimator struct {
	K float64
}

// Estimate implements TokenEstimator.
func (e RatioEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	k := e.K
	if k <= 0 {
		k = DefaultTokensPerChar
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) * k))
}

// EstimatorFunc adapts a function to TokenEstimator.
type EstimatorFunc func(text string) int

func (f EstimatorFunc) Estimate(text string) int { return f(text) }
