// Package analyzer turns raw document or query text into an ordered sequence of
// stemmed terms, the single pipeline shared by index construction and query
// evaluation so that scoring stays consistent between build time and serve time.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/kljensen/porter2stemmer"
	"golang.org/x/text/unicode/norm"
)

// tokenPattern matches a Unicode letter followed by zero or more letters,
// digits, underscores, or apostrophes.
var tokenPattern = regexp.MustCompile(`\p{L}[\p{L}\p{N}_']*`)

// Token is a single accepted (stopword-filtered, stemmed) term paired with the
// position of the matched token among all matched tokens, stopwords included.
// Positions are not contiguous after filtering; they exist for diagnostics and
// potential future phrase support and are never consulted by scoring.
type Token struct {
	Stem     string
	Position int
}

// Analyze runs the full pipeline: NFKC normalization, lowercasing, token
// extraction, stopword filtering, and Porter2 stemming. For identical input
// bytes the output is identical across runs and platforms.
func Analyze(text string) []Token {
	normalized := strings.ToLower(norm.NFKC.String(text))

	matches := tokenPattern.FindAllString(normalized, -1)
	tokens := make([]Token, 0, len(matches))
	for pos, surface := range matches {
		if IsStopword(surface) {
			continue
		}
		stem := porter2stemmer.Stem(surface)
		tokens = append(tokens, Token{Stem: stem, Position: pos})
	}
	return tokens
}
