package services

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxTitleLength   = 200
	maxContentLength = 20000
)

var (
	titlePolicy   = bluemonday.StrictPolicy()
	contentPolicy = bluemonday.UGCPolicy()
)

// sanitizeTitle strips every tag from a title and validates its length. The
// result is unescaped plain text, so entity-encoded markup such as
// "&lt;b&gt;" comes back as a literal "<b>". Titles must be escaped when
// rendered as HTML.
func sanitizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(raw)))
	if title == "" {
		return "", invalidInput("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", invalidInput("title must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

// sanitizeContent keeps user-generated markup that is safe to render.
func sanitizeContent(raw string) (string, error) {
	content := strings.TrimSpace(contentPolicy.Sanitize(raw))
	if content == "" {
		return "", invalidInput("content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "", invalidInput("content must be at most %d characters", maxContentLength)
	}
	return content, nil
}
