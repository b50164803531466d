package source

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// ADFNode is one node of an Atlassian Document Format tree. Only the
// parts needed for plain text conversion are modelled.
type ADFNode struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []ADFNode      `json:"content,omitempty"`
}

// ExtractPlainText flattens an ADF tree depth first. Paragraphs and
// headings end with a newline, list items get "• " or "N. " prefixes,
// text is copied verbatim. Trailing newlines are dropped.
func ExtractPlainText(doc *ADFNode) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	writeADF(&b, *doc)
	return strings.TrimRight(b.String(), "\n")
}

func writeADF(b *strings.Builder, n ADFNode) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
	case "hardBreak":
		b.WriteString("\n")
	case "paragraph", "heading":
		for _, c := range n.Content {
			writeADF(b, c)
		}
		b.WriteString("\n")
	case "bulletList":
		for _, item := range n.Content {
			b.WriteString("• ")
			writeADF(b, item)
		}
	case "orderedList":
		start := 1
		if order, ok := n.Attrs["order"].(float64); ok && order > 0 {
			start = int(order)
		}
		for i, item := range n.Content {
			fmt.Fprintf(b, "%d. ", start+i)
			writeADF(b, item)
		}
	default:
		for _, c := range n.Content {
			writeADF(b, c)
		}
	}
}

// PlainTextToADF builds a document with one paragraph per line, the
// inverse of ExtractPlainText for text without list markers.
func PlainTextToADF(text string) ADFNode {
	doc := ADFNode{Type: "doc", Version: 1, Content: []ADFNode{}}
	if text == "" {
		return doc
	}
	for _, line := range strings.Split(text, "\n") {
		p := ADFNode{Type: "paragraph"}
		if line != "" {
			p.Content = []ADFNode{{Type: "text", Text: line}}
		}
		doc.Content = append(doc.Content, p)
	}
	return doc
}

// RichTextToPlain accepts a description field that is either a JSON
// string (legacy APIs), an ADF object, or null.
func RichTextToPlain(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	var doc ADFNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return ExtractPlainText(&doc)
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags from a string and collapses whitespace,
// providing a basic plain-text rendering of HTML rich text fields.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	// Replace common block-level tags with newlines.
	result := s
	for _, tag := range []string{"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>"} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	// Strip all remaining HTML tags.
	result = htmlTagPattern.ReplaceAllString(result, "")
	result = html.UnescapeString(result)

	// Collapse multiple consecutive blank lines.
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}

// TextToHTML renders plain text as one <div> per line.
func TextToHTML(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("<div>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</div>")
	}
	return b.String()
}
