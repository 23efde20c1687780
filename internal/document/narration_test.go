package document

import "testing"

func TestPrepareNarration(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain sentence", "Hello world.", "Hello world."},
		{"comparison symbols", "a >= b", "a greater than or equal to b"},
		{"inequality", "x != y", "x not equals y"},
		{"parenthesized url removed", "Read the docs (https://example.com/docs) now.", "Read the docs now."},
		{"bare url becomes link", "Visit https://example.com today.", "Visit link today."},
		{"ellipsis collapsed", "Wait... what?", "Wait. what?"},
		{"whitespace collapsed", "a\n  b\t c", "a b c"},
		{"space before punctuation", "Hello , world .", "Hello, world."},
		{"sentence spacing restored", "End.Next", "End. Next"},
		{"ampersands", "a && b & c", "a and b and c"},
		{"percent", "90% done", "90 percent done"},
		{"empty", "", ""},
		{"only whitespace", "  \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrepareNarration(tt.input); got != tt.want {
				t.Errorf("PrepareNarration(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
