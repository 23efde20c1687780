package document

import (
	"regexp"
	"strings"
)

var (
	parenURLPattern    = regexp.MustCompile(`\(https?://[^)]+\)`)
	bareURLPattern     = regexp.MustCompile(`https?://\S+`)
	repeatStopPattern  = regexp.MustCompile(`([.!?])+`)
	spaceBeforeStop    = regexp.MustCompile(`\s+([,.!?;:])`)
	missingStopSpacing = regexp.MustCompile(`([.!?])\s*([a-zA-Z])`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	blankLinePattern   = regexp.MustCompile(`\n[ \t]*\n+`)
)

// symbolReplacements maps written symbols to their spoken form. Compound
// symbols come first so they win over their single-character parts.
var symbolReplacements = []struct{ old, new string }{
	{">=", " greater than or equal to "},
	{"<=", " less than or equal to "},
	{"==", " equals "},
	{"!=", " not equals "},
	{"->", " arrow "},
	{"=>", " arrow "},
	{"&&", " and "},
	{"&", " and "},
	{"@", " at "},
	{"#", " hash "},
	{"%", " percent "},
	{"^", " caret "},
	{"*", " star "},
	{"~", " tilde "},
	{"|", " pipe "},
	{"<", " less than "},
	{">", " greater than "},
}

// PrepareNarration normalizes one paragraph of text for speech: URLs
// and symbols become words or vanish, punctuation and whitespace are
// tidied. Callers pass paragraphs separately, the collapse step does
// not preserve blank lines.
func PrepareNarration(text string) string {
	text = parenURLPattern.ReplaceAllString(text, "")
	text = bareURLPattern.ReplaceAllString(text, " link ")

	for _, r := range symbolReplacements {
		text = strings.ReplaceAll(text, r.old, r.new)
	}

	text = repeatStopPattern.ReplaceAllString(text, "$1")
	text = spaceBeforeStop.ReplaceAllString(text, "$1")
	text = missingStopSpacing.ReplaceAllString(text, "$1 $2")
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

func blankLineSplit(text string) []string {
	return blankLinePattern.Split(text, -1)
}
