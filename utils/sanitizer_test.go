package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakePreviewStripsMarkup(t *testing.T) {
	preview := MakePreview("<p>Hello <b>world</b></p>")

	assert.Equal(t, "Hello world", preview)
	assert.NotContains(t, preview, "<")
}

func TestMakePreviewCollapsesWhitespace(t *testing.T) {
	preview := MakePreview("<div>line one</div><div>line\n\ntwo</div>")

	assert.NotContains(t, preview, "\n")
	assert.NotContains(t, preview, "  ")
}

func TestMakePreviewTruncatesToLimit(t *testing.T) {
	long := strings.Repeat("<p>Hello <b>world</b></p>", 40)

	preview := MakePreview(long)

	assert.Equal(t, PreviewLength, len([]rune(preview)))
	assert.NotContains(t, preview, "<")
}

func TestMakePreviewShortContentUntouched(t *testing.T) {
	assert.Equal(t, "short", MakePreview("short"))
	assert.Equal(t, "", MakePreview(""))
}

func TestSanitizeHTMLRemovesScripts(t *testing.T) {
	dirty := `<p>hi</p><script>alert(1)</script><img src="x" onerror="alert(1)">`

	clean := SanitizeHTML(dirty)

	assert.Contains(t, clean, "<p>hi</p>")
	assert.NotContains(t, clean, "script")
	assert.NotContains(t, clean, "onerror")
}

func TestSanitizeHTMLKeepsSafeMarkup(t *testing.T) {
	body := `<h1>Title</h1><a href="https://example.com">link</a><blockquote>quoted</blockquote>`

	clean := SanitizeHTML(body)

	assert.Contains(t, clean, "<h1>Title</h1>")
	assert.Contains(t, clean, `href="https://example.com"`)
	assert.Contains(t, clean, "<blockquote>quoted</blockquote>")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain", StripHTML("<em>plain</em>"))
}
