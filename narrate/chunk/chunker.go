// Package chunk splits narration text into sentence-aligned chunks
// sized for synthesis requests.
package chunk

import (
	"strings"
	"unicode"
)

// DefaultMaxLen is the chunk size used when no limit is given. It
// keeps synthesis requests short enough that per-chunk latency stays
// low without fragmenting sentences.
const DefaultMaxLen = 200

// Split breaks text into chunks of at most maxLen characters without
// ever splitting a sentence. Sentences accumulate into a chunk until
// the next one would push it past maxLen. A single sentence longer
// than maxLen becomes its own oversized chunk.
//
// The result is never empty: blank input yields one chunk holding the
// trimmed input.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{trimmed}
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences(trimmed) {
		if current.Len() == 0 {
			current.WriteString(sentence)
			continue
		}
		if current.Len()+1+len(sentence) <= maxLen {
			current.WriteByte(' ')
			current.WriteString(sentence)
			continue
		}
		chunks = append(chunks, current.String())
		current.Reset()
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) == 0 {
		return []string{trimmed}
	}
	return chunks
}

// Sequence chunks a document for playback. When paragraph boundaries
// are known they win over raw text: each paragraph is chunked on its
// own so no chunk spans two paragraphs. Otherwise the full text is
// chunked directly.
func Sequence(text string, paragraphs []string, maxLen int) []string {
	kept := paragraphs[:0:0]
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return Split(text, maxLen)
	}

	var chunks []string
	for _, p := range kept {
		chunks = append(chunks, Split(p, maxLen)...)
	}
	return chunks
}

// sentences splits text into sentences using punctuation boundaries.
// Abbreviations, decimals and ellipses do not terminate a sentence.
func sentences(text string) []string {
	runes := []rune(text)
	var out []string
	lastStart := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}

		// Collect trailing punctuation like "?!" or "..."
		punctEnd := i + 1
		for punctEnd < len(runes) && (runes[punctEnd] == '.' || runes[punctEnd] == '!' || runes[punctEnd] == '?') {
			punctEnd++
		}

		// Closing quotes and brackets belong to the sentence
		for punctEnd < len(runes) && (runes[punctEnd] == '"' || runes[punctEnd] == '\'' || runes[punctEnd] == ')' || runes[punctEnd] == ']') {
			punctEnd++
		}

		if !isSentenceEnd(runes, i) {
			continue
		}

		s := strings.TrimSpace(string(runes[lastStart:punctEnd]))
		if s != "" {
			out = append(out, s)
		}

		for punctEnd < len(runes) && unicode.IsSpace(runes[punctEnd]) {
			punctEnd++
		}
		lastStart = punctEnd
		i = punctEnd - 1
	}

	if lastStart < len(runes) {
		s := strings.TrimSpace(string(runes[lastStart:]))
		if s != "" {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		out = append(out, strings.TrimSpace(text))
	}
	return out
}

// isSentenceEnd checks whether the punctuation at pos really ends a
// sentence.
func isSentenceEnd(runes []rune, pos int) bool {
	punct := runes[pos]

	// Word immediately before the punctuation, lowercased
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) {
		start--
	}
	wordBefore := strings.ToLower(string(runes[start+1 : pos+1]))

	if punct == '.' {
		wordNoPeriod := strings.TrimSuffix(wordBefore, ".")
		if abbreviations[wordNoPeriod] || abbreviations[wordBefore] {
			return false
		}
		// Multi-part abbreviations like "e.g." or "U.S."
		if strings.Count(wordBefore, ".") > 1 {
			return false
		}
		// Decimal numbers
		if pos > 0 && pos+1 < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1]) {
			return false
		}
		// Ellipsis
		if pos+2 < len(runes) && runes[pos+1] == '.' && runes[pos+2] == '.' {
			return false
		}
	}

	if pos+1 >= len(runes) {
		return true
	}

	// Skip closing quotes and brackets
	next := pos + 1
	for next < len(runes) && (runes[next] == '"' || runes[next] == '\'' || runes[next] == ')' || runes[next] == ']') {
		next++
	}
	if next >= len(runes) {
		return true
	}

	// A sentence boundary needs whitespace after the punctuation
	if !unicode.IsSpace(runes[next]) {
		return false
	}

	if punct == '!' || punct == '?' {
		return true
	}

	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	return next < len(runes) && unicode.IsUpper(runes[next])
}

var abbreviations = makeAbbreviationMap()

// makeAbbreviationMap creates a map of common abbreviations that do
// not end sentences.
func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr",
		"ph.d", "m.d", "b.a", "m.a", "b.s",
		"llc", "inc", "ltd", "co", "corp",
		"i.e", "e.g", "etc", "vs", "cf", "al",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri", "sat", "sun",
		"st", "rd", "ave", "blvd", "ln", "ct",
		"u.s", "u.k", "u.n", "e.u",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "min", "mins", "sec", "secs",
	}

	m := make(map[string]bool)
	for _, abbrev := range abbrevs {
		m[abbrev] = true
		if !strings.Contains(abbrev, ".") {
			m[abbrev+"."] = true
		}
	}
	return m
}
