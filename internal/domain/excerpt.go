package domain

import (
	"strings"

	"golang.org/x/net/html"
)

// Excerpt returns the plain text of an HTML fragment with whitespace
// collapsed, cut to at most n runes. n <= 0 means no limit.
func Excerpt(fragment string, n int) string {
	if fragment == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return truncate(strings.Join(strings.Fields(b.String()), " "), n)
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
