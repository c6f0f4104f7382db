// Package filter gates messages on their subject line.
package filter

import "strings"

// Allows reports whether subject passes the keyword allow-list. An empty
// list disables filtering.
func Allows(subject string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	s := strings.ToLower(subject)
	for _, k := range keywords {
		if strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Normalize trims keywords and drops blanks so an unset config value
// does not turn into a match-everything "" keyword.
func Normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}
