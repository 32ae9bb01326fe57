package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxHashtagLength bounds a normalised hashtag title.
const MaxHashtagLength = 50

// NormalizeHashtags trims whitespace and leading '#', lowercases, drops empty
// entries and collapses duplicates while keeping first-seen order.
// Entries may hold several comma separated tags.
func NormalizeHashtags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			title := strings.ToLower(strings.TrimLeft(strings.TrimSpace(part), "#"))
			title = strings.TrimSpace(title)
			if title == "" {
				continue
			}
			if utf8.RuneCountInString(title) > MaxHashtagLength {
				return nil, fmt.Errorf("hashtag %q exceeds %d characters", title, MaxHashtagLength)
			}
			if strings.ContainsAny(title, " \t\n") {
				return nil, fmt.Errorf("hashtag %q must not contain whitespace", title)
			}
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			out = append(out, title)
		}
	}
	return out, nil
}
