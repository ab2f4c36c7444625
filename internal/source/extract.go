package source

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText strips a fetched filing document down to readable plain
// text for terminal preview. Filings arrive as HTML (or inline XBRL,
// which is HTML plus tagging); non-HTML bodies are returned as-is.
func ExtractText(doc []byte, maxRunes int) string {
	if !looksLikeHTML(doc) {
		return truncate(string(doc), maxRunes)
	}

	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return truncate(string(doc), maxRunes)
	}

	parsed.Find("script, style, head").Remove()

	var sb strings.Builder
	parsed.Find("body").Each(func(_ int, sel *goquery.Selection) {
		sb.WriteString(sel.Text())
	})
	text := sb.String()
	if text == "" {
		text = parsed.Text()
	}

	return truncate(collapseWhitespace(text), maxRunes)
}

func looksLikeHTML(doc []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(doc))
	if len(head) > 256 {
		head = head[:256]
	}
	return bytes.Contains(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<!doctype html")) ||
		bytes.Contains(head, []byte("<body"))
}

// collapseWhitespace squeezes runs of whitespace into single spaces,
// keeping paragraph breaks.
func collapseWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	lastSpace := true
	newlines := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			if r == '\n' {
				newlines++
			}
			lastSpace = true
			continue
		}
		if lastSpace && sb.Len() > 0 {
			if newlines >= 2 {
				sb.WriteString("\n\n")
			} else {
				sb.WriteByte(' ')
			}
		}
		newlines = 0
		lastSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "…"
}
