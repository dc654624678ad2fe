package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// newMarkdown renders GFM. Raw HTML in model output is dropped, not passed through.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func (s *Server) renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		slog.Warn("Markdown render failed", "error", err)
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(buf.String())
}

// prettyText indents JSON documents and leaves any other text untouched.
func prettyText(text string) string {
	if !gjson.Valid(text) {
		return text
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() && !doc.IsArray() {
		return text
	}
	return strings.TrimSpace(gjson.Get(text, "@pretty").Raw)
}

func prettyArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
