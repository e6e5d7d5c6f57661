package utils

import (
	"strings"

	"github.com/k3a/html2text"
	"github.com/microcosm-cc/bluemonday"
)

// PreviewLength is the maximum rune count of a derived list preview.
const PreviewLength = 100

var (
	// StrictPolicy removes all markup
	StrictPolicy *bluemonday.Policy
	// UGCPolicy is used when rendering stored email bodies
	UGCPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	UGCPolicy = bluemonday.UGCPolicy()

	// Allow additional safe elements for email content
	UGCPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	UGCPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	UGCPolicy.AllowElements("ul", "ol", "li")
	UGCPolicy.AllowElements("blockquote")
	UGCPolicy.AllowElements("a", "img")
	UGCPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	// Allow safe attributes
	UGCPolicy.AllowAttrs("href").OnElements("a")
	UGCPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	UGCPolicy.AllowAttrs("class", "id").Globally()
	UGCPolicy.AllowAttrs("style").OnElements("span", "div", "p")

	// Require URLs to be safe
	UGCPolicy.RequireParseableURLs(true)
	UGCPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeHTML sanitizes HTML content using the UGC policy
func SanitizeHTML(html string) string {
	return UGCPolicy.Sanitize(html)
}

// StripHTML removes all HTML tags from content
func StripHTML(html string) string {
	return StrictPolicy.Sanitize(html)
}

// MakePreview derives the plain-text list excerpt from a rich email body:
// markup is stripped, whitespace collapsed, and the result truncated to
// PreviewLength runes.
func MakePreview(content string) string {
	text := html2text.HTML2Text(content)
	// html2text leaves entity-free text but keeps newlines; the list view
	// wants a single line.
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > PreviewLength {
		return string(runes[:PreviewLength])
	}
	return text
}
