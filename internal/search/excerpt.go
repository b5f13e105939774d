package search

import (
	"strings"
	"unicode/utf8"
)

const maxExcerptLength = 200

// Excerpt picks the sentence of content that contains the most query words.
// Sentences are split on '.', words shorter than three bytes are ignored and
// the first sentence wins ties. Returns "" when no sentence matches.
func Excerpt(content, query string) string {
	words := strings.Split(strings.ToLower(query), " ")

	best, bestScore := "", 0
	for _, sentence := range strings.Split(content, ".") {
		lower := strings.ToLower(sentence)
		score := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(lower, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sentence, score
		}
	}

	best = strings.TrimSpace(best)
	if utf8.RuneCountInString(best) > maxExcerptLength {
		best = string([]rune(best)[:maxExcerptLength]) + "..."
	}
	return best
}
