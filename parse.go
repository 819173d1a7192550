package main

import (
	"regexp"
	"strings"
)

// {NAME} where NAME is a bare identifier
var tagPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces every {NAME} in text with the current value of tag
// NAME. Unknown tags are left verbatim. Substituted values are not
// rescanned.
func (s *TagStore) Expand(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return tagPattern.ReplaceAllStringFunc(text, func(match string) string {
		if value, ok := s.values[match[1:len(match)-1]]; ok {
			return value
		}
		return match
	})
}

// splitList splits a comma separated target list, dropping blanks.
func splitList(text string) []string {
	var out []string
	for _, item := range strings.Split(text, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
