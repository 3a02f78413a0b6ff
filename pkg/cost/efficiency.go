package cost

import "github.com/storyeval/storyeval/pkg/models"

// CharsPerWord is the characters-per-word ratio used when no word count is known.
const CharsPerWord = 5

// EstimateWords approximates a word count from a character count.
// It is a fixed heuristic, not a tokenizer.
func EstimateWords(textLength int) float64 {
	if textLength <= 0 {
		return 0
	}
	return float64(textLength) / CharsPerWord
}

// Efficiency derives cost ratios using the characters-per-word estimate.
func Efficiency(totalCost float64, textLength int, qualityScore float64) models.CostEfficiency {
	return EfficiencyWithWords(totalCost, textLength, EstimateWords(textLength), qualityScore)
}

// EfficiencyWithWords derives cost ratios from a known word count. When words
// is not positive but text exists, it falls back to EstimateWords. Each ratio
// is zero when its own denominator is not positive.
func EfficiencyWithWords(totalCost float64, textLength int, words, qualityScore float64) models.CostEfficiency {
	if words <= 0 {
		words = EstimateWords(textLength)
	}

	var eff models.CostEfficiency
	if textLength > 0 {
		eff.CostPerCharacter = totalCost / float64(textLength)
	}
	if words > 0 {
		eff.CostPerWord = totalCost / words
	}
	if qualityScore > 0 {
		eff.CostPerQualityPoint = totalCost / qualityScore
	}
	if totalCost > 0 {
		eff.QualityPerDollar = qualityScore / totalCost
	}
	return eff
}
