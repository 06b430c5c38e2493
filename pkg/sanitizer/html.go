// Package sanitizer reduces user-supplied markup to the plain text a slug is built from.
package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// bluemonday policies are safe for concurrent use once built.
var strict = bluemonday.StrictPolicy()

// StripMarkup returns the text of s with every element removed and entities
// decoded: "<b>Fish &amp; Chips</b>" becomes "Fish & Chips". Script and style
// bodies are dropped together with their tags.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return html.UnescapeString(strict.Sanitize(s))
}
