package transform

import (
	"mime"
	"strings"

	"github.com/joshsymonds/inboxsheet/internal/gmail"
)

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
)

// BodyText walks the part tree depth-first. At every node the order is:
// the node's own body, the first text/plain child, the first text/html
// child (converted to text), then nested multipart children in order.
func BodyText(p *gmail.Part) string {
	if p == nil {
		return ""
	}
	if len(p.Data) > 0 {
		return textOf(p)
	}
	for _, c := range p.Parts {
		if isLeaf(c, mimePlain) {
			return textOf(c)
		}
	}
	for _, c := range p.Parts {
		if isLeaf(c, mimeHTML) {
			return textOf(c)
		}
	}
	for _, c := range p.Parts {
		if c == nil || len(c.Parts) == 0 {
			continue
		}
		if text := BodyText(c); text != "" {
			return text
		}
	}
	return ""
}

func isLeaf(p *gmail.Part, mimeType string) bool {
	return p != nil && len(p.Parts) == 0 && len(p.Data) > 0 && mediaType(p.MimeType) == mimeType
}

func textOf(p *gmail.Part) string {
	s := strings.ToValidUTF8(string(p.Data), "\uFFFD")
	if mediaType(p.MimeType) == mimeHTML {
		return HTMLToText(s)
	}
	return s
}

func mediaType(raw string) string {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}
