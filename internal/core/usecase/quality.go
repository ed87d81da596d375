package usecase

import (
	"math"
	"strings"
	"unicode/utf8"
)

// QualityThreshold is the minimum OCR quality score a document needs to
// continue past the OCR stage.
const QualityThreshold = 45

// AssessQuality scores OCR output in [0,100] from the average token length.
// Illegible OCR output tends to fragment into short tokens.
func AssessQuality(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	total := 0
	for _, word := range words {
		total += utf8.RuneCountInString(word)
	}
	avg := float64(total) / float64(len(words))

	score := int(math.Round(avg * 10))
	if score > 100 {
		return 100
	}
	return score
}
