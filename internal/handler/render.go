package handler

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicPattern = regexp.MustCompile(`(^|[^*])\*([^*\n]+)\*`)
)

// Renderer turns model output into display HTML. Models answer in loose
// markdown; only emphasis and paragraphs are kept.
type Renderer struct {
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em")
	return &Renderer{policy: p}
}

// Render escapes text, applies emphasis and paragraph breaks, and sanitizes
// the result.
func (r *Renderer) Render(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	escaped := html.EscapeString(strings.ReplaceAll(text, "\r\n", "\n"))
	escaped = boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>")
	escaped = italicPattern.ReplaceAllString(escaped, "$1<em>$2</em>")

	var b strings.Builder
	for _, para := range strings.Split(escaped, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(para, "\n", "<br>"))
		b.WriteString("</p>")
	}
	return r.policy.Sanitize(b.String())
}
