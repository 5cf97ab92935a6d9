package domain

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// templateDefaults fill generic tokens that no lead attribute provides.
var templateDefaults = map[string]string{
	"solucao":         "nossa solução",
	"empresa_similar": "empresas parceiras",
}

// Render replaces {{name}} placeholders with values. Names without a value
// render as an empty string.
func Render(tpl string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		return templateDefaults[key]
	})
}
