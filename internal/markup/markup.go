// Package markup turns the markdown-lite used in chat messages into typed
// spans. Only bold, bullet lines and line breaks are recognised; everything
// else is plain text and is escaped when rendered.
package markup

import (
	"html"
	"strings"
)

type Kind string

const (
	Plain     Kind = "plain"
	Bold      Kind = "bold"
	LineBreak Kind = "break"
	ListItem  Kind = "list_item"
)

// Span is one piece of formatted text. List items carry their inline spans
// in Children.
type Span struct {
	Kind     Kind   `json:"kind"`
	Text     string `json:"text,omitempty"`
	Children []Span `json:"children,omitempty"`
}

// Parse splits content into spans. A line starting with "* " or "- " is a
// list item; "**x**" is bold; unmatched "**" stays literal.
func Parse(content string) []Span {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	var out []Span
	for i, line := range lines {
		if item, ok := bullet(line); ok {
			out = append(out, Span{Kind: ListItem, Children: inline(item)})
			continue
		}
		out = append(out, inline(line)...)
		if i < len(lines)-1 {
			out = append(out, Span{Kind: LineBreak})
		}
	}
	return out
}

func bullet(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	for _, p := range []string{"* ", "- ", "• "} {
		if strings.HasPrefix(trimmed, p) {
			return strings.TrimSpace(trimmed[len(p):]), true
		}
	}
	return "", false
}

func inline(s string) []Span {
	var out []Span
	for s != "" {
		start := strings.Index(s, "**")
		if start < 0 {
			break
		}
		end := strings.Index(s[start+2:], "**")
		if end < 0 {
			break
		}
		if start > 0 {
			out = append(out, Span{Kind: Plain, Text: s[:start]})
		}
		if b := s[start+2 : start+2+end]; b != "" {
			out = append(out, Span{Kind: Bold, Text: b})
		}
		s = s[start+2+end+2:]
	}
	if s != "" {
		out = append(out, Span{Kind: Plain, Text: s})
	}
	return out
}

// PlainText flattens spans back to unformatted text.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		switch sp.Kind {
		case LineBreak:
			b.WriteByte('\n')
		case ListItem:
			b.WriteString("• ")
			b.WriteString(PlainText(sp.Children))
			b.WriteByte('\n')
		default:
			b.WriteString(sp.Text)
		}
	}
	return b.String()
}

// HTML renders spans with every text node escaped, so markup coming from the
// backend can never inject elements.
func HTML(spans []Span) string {
	var b strings.Builder
	inList := false
	for _, sp := range spans {
		if sp.Kind == ListItem && !inList {
			b.WriteString("<ul>")
			inList = true
		} else if sp.Kind != ListItem && inList {
			b.WriteString("</ul>")
			inList = false
		}
		switch sp.Kind {
		case Plain:
			b.WriteString(html.EscapeString(sp.Text))
		case Bold:
			b.WriteString("<strong>")
			b.WriteString(html.EscapeString(sp.Text))
			b.WriteString("</strong>")
		case LineBreak:
			b.WriteString("<br />")
		case ListItem:
			b.WriteString("<li>")
			b.WriteString(HTML(sp.Children))
			b.WriteString("</li>")
		}
	}
	if inList {
		b.WriteString("</ul>")
	}
	return b.String()
}
