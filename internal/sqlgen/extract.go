package sqlgen

import (
	"regexp"
	"strings"
)

// fencedRe matches a fenced code block (optionally tagged sql/sqlite) whose
// body begins with a query-initiating keyword. The trailing terminator is
// optional inside a fence.
var fencedRe = regexp.MustCompile("(?i)```(?:sql|sqlite)?\\s*`?(?:SELECT|WITH)[\\s\\S]*?```")

// fenceOpenRe strips the opening fence marker and optional language tag.
var fenceOpenRe = regexp.MustCompile("(?i)^```(?:sql|sqlite)?\\s*")

// rawRe matches a keyword-initiated run terminated by a semicolon anywhere
// in free text. RE2 has no lookbehind, so the preceding-backtick exclusion
// is checked explicitly on the match position.
var rawRe = regexp.MustCompile(`(?i)(?:SELECT|WITH)[\s\S]*?;`)

// ExtractQuery recovers a single well-formed query from raw model output.
// Fenced-block extraction is preferred; raw-text scanning is the fallback.
// Both return the first match. Fences and stray backticks are stripped; a
// missing terminator is never guessed. The second return is false when no
// query was found.
func ExtractQuery(raw string) (string, bool) {
	if m := fencedRe.FindString(raw); m != "" {
		q := fenceOpenRe.ReplaceAllString(m, "")
		q = strings.ReplaceAll(q, "```", "")
		q = strings.ReplaceAll(q, "`", "")
		return strings.TrimSpace(q), true
	}

	// Fallback: first keyword-initiated run ending in ';' that is not part
	// of an inline-backticked span.
	for _, loc := range rawRe.FindAllStringIndex(raw, -1) {
		if loc[0] > 0 && raw[loc[0]-1] == '`' {
			continue
		}
		return strings.TrimSpace(raw[loc[0]:loc[1]]), true
	}

	return "", false
}
