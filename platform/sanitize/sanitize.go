// Package sanitize strips markup from user-provided text before it is stored
// or rendered into outbound messages.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML removes HTML tags, decodes common entities and strips again so
// encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a single-line form field: markup removed and runs of
// whitespace collapsed to one space.
func Text(s string) string {
	return whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
}

// Fields applies Text to every value of a free-form attribute map. Keys are
// trimmed; entries whose key ends up empty are dropped.
func Fields(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = Text(v)
	}
	return out
}

// List applies Text to each item and drops the empty ones.
func List(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = Text(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
