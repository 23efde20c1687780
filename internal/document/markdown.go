package document

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

func (e *Extractor) extractMarkdown(source []byte) (*Extraction, error) {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(source))

	var (
		title      string
		paragraphs []string
	)

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		speech := e.blockSpeech(node, source)
		if speech == "" {
			continue
		}
		if title == "" {
			if h, ok := node.(*ast.Heading); ok && h.Level == 1 {
				title = e.inlineText(h, source)
			}
		}
		paragraphs = append(paragraphs, speech)
	}

	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("%w: no speakable content", narrate.ErrExtractionFailed)
	}

	return &Extraction{
		Title:         title,
		SourceText:    string(source),
		NarrationText: strings.Join(paragraphs, "\n\n"),
		Paragraphs:    paragraphs,
		Format:        "md",
	}, nil
}

// blockSpeech renders one top-level block as speakable text.
func (e *Extractor) blockSpeech(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.Heading:
		return ensureSentence(PrepareNarration(e.inlineText(n, source)))

	case *ast.Paragraph, *ast.TextBlock:
		return PrepareNarration(e.inlineText(n, source))

	case *ast.Blockquote:
		var parts []string
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if speech := e.blockSpeech(child, source); speech != "" {
				parts = append(parts, speech)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		return "Quote: " + strings.Join(parts, " ")

	case *ast.List:
		var items []string
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			var pieces []string
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				if speech := e.blockSpeech(child, source); speech != "" {
					pieces = append(pieces, speech)
				}
			}
			if len(pieces) > 0 {
				items = append(items, ensureSentence(strings.Join(pieces, " ")))
			}
		}
		return strings.Join(items, " ")

	case *ast.FencedCodeBlock:
		if !e.cfg.IncludeCode {
			return ""
		}
		lang := ""
		if n.Info != nil {
			lang = string(n.Info.Segment.Value(source))
		}
		body := blockLines(n, source)
		if lang != "" {
			return fmt.Sprintf("Code block in %s: %s", lang, body)
		}
		return "Code block: " + body

	case *ast.CodeBlock:
		if !e.cfg.IncludeCode {
			return ""
		}
		return "Code block: " + blockLines(n, source)

	case *ast.ThematicBreak, *ast.HTMLBlock:
		return ""

	default:
		return PrepareNarration(e.inlineText(node, source))
	}
}

// inlineText flattens the inline content of a node into plain text.
func (e *Extractor) inlineText(node ast.Node, source []byte) string {
	var b strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.CodeSpan:
			if e.cfg.IncludeCode {
				b.WriteString(e.inlineText(c, source))
			}
		case *ast.Link:
			text := e.inlineText(c, source)
			if e.cfg.AnnounceLinks && text != "" {
				b.WriteString("link to " + text)
			} else {
				b.WriteString(text)
			}
		case *ast.AutoLink:
			// Bare URLs read terribly, skip them.
		case *ast.Image:
			if e.cfg.AnnounceImages {
				if alt := e.inlineText(c, source); alt != "" {
					b.WriteString("image: " + alt)
				}
			}
		default:
			b.WriteString(e.inlineText(c, source))
		}
	}
	return strings.TrimSpace(b.String())
}

func blockLines(node ast.Node, source []byte) string {
	var lines []string
	for i := 0; i < node.Lines().Len(); i++ {
		segment := node.Lines().At(i)
		lines = append(lines, strings.TrimRight(string(segment.Value(source)), "\n"))
	}
	return strings.Join(lines, " ")
}

// ensureSentence gives fragments a terminal period so downstream
// chunking treats them as complete sentences.
func ensureSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	switch text[len(text)-1] {
	case '.', '!', '?', ':', ';':
		return text
	}
	return text + "."
}
