package query

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	snippetBefore = 100
	snippetAfter  = 200
)

// RawQueryTerms splits a query into the raw (untokenized, unstemmed) terms
// used for snippet matching and highlighting, mirroring the query string the
// user actually typed rather than its analyzed stems.
func RawQueryTerms(q string) []string {
	return strings.Fields(q)
}

// snippetFromFile reads a document's raw body and extracts a highlighted
// snippet around the first raw query term match, or the first 200 runes if
// no term matches.
func snippetFromFile(indexRoot, relPath string, rawTerms []string) (*string, error) {
	data, err := os.ReadFile(filepath.Join(indexRoot, relPath))
	if err != nil {
		return nil, err
	}
	text := string(data)
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	idx, found := firstMatchRuneIndex(runes, rawTerms)

	var window string
	if found {
		text = string(runes)
		anchor := len(string(runes[:idx]))
		start := anchor - snippetBefore
		if start < 0 {
			start = 0
		}
		for start > 0 && !utf8.RuneStart(text[start]) {
			start--
		}
		end := anchor + snippetAfter
		if end > len(text) {
			end = len(text)
		}
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		window = text[start:end]
	} else {
		end := snippetAfter
		if end > len(runes) {
			end = len(runes)
		}
		window = string(runes[:end])
	}

	highlighted := highlightTerms(window, rawTerms)
	return &highlighted, nil
}

// firstMatchRuneIndex searches the non-blank raw terms in query order and
// returns the rune index of the leftmost case-insensitive occurrence of the
// first term that occurs at all. Lowering rune by rune keeps that index valid
// against the original runes even where lowercasing changes byte lengths.
func firstMatchRuneIndex(runes []rune, rawTerms []string) (int, bool) {
	lowerRunes := make([]rune, len(runes))
	for i, r := range runes {
		lowerRunes[i] = toLowerRune(r)
	}

	for _, term := range rawTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		needle := []rune(strings.ToLower(term))
		idx := runeIndex(lowerRunes, needle)
		if idx == -1 {
			continue
		}
		return idx, true
	}
	return -1, false
}

func toLowerRune(r rune) rune {
	lowered := strings.ToLower(string(r))
	for _, l := range lowered {
		return l
	}
	return r
}

// runeIndex is a naive substring search over rune slices, analogous to
// strings.Index but immune to multibyte byte-offset pitfalls.
func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// highlightTerms wraps every case-insensitive occurrence of every non-blank
// raw term in <em> tags, preserving the original casing of the matched text.
func highlightTerms(snippet string, rawTerms []string) string {
	runes := []rune(snippet)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = toLowerRune(r)
	}

	marked := make([]bool, len(runes))
	for _, term := range rawTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		needle := []rune(strings.ToLower(term))
		if len(needle) == 0 {
			continue
		}
		for i := 0; i+len(needle) <= len(lower); i++ {
			match := true
			for j := range needle {
				if lower[i+j] != needle[j] {
					match = false
					break
				}
			}
			if match {
				for j := i; j < i+len(needle); j++ {
					marked[j] = true
				}
			}
		}
	}

	var b strings.Builder
	inEm := false
	for i, r := range runes {
		if marked[i] && !inEm {
			b.WriteString("<em>")
			inEm = true
		}
		if !marked[i] && inEm {
			b.WriteString("</em>")
			inEm = false
		}
		b.WriteRune(r)
	}
	if inEm {
		b.WriteString("</em>")
	}
	return b.String()
}
