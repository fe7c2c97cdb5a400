package flow

import (
	"regexp"
	"strings"
)

var bulletPrefix = regexp.MustCompile(`(?m)^\*+\s?`)

// CleanRecommendation strips leading "*" bullet markers from every line, turns any
// remaining "\n*" into a plain newline and trims surrounding whitespace
func CleanRecommendation(text string) string {
	text = bulletPrefix.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\n*", "\n")
	return strings.TrimSpace(text)
}
