package websearch

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ResultQualityFilter decides whether a source result is worth passing on.
// Evaluate returns ok=false with a short reason when the result is rejected.
type ResultQualityFilter interface {
	Evaluate(text string) (ok bool, reason string)
}

// FilterFunc adapts a function to ResultQualityFilter.
type FilterFunc func(text string) (bool, string)

func (f FilterFunc) Evaluate(text string) (bool, string) { return f(text) }

// DefaultQualityFilter rejects a result when it is blank, shorter than
// MinLength runes after trimming, or contains any NoResultPhrases entry
// (case-insensitive).
type DefaultQualityFilter struct {
	MinLength       int
	NoResultPhrases []string
}

func (f DefaultQualityFilter) Evaluate(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, "empty result"
	}
	if n := utf8.RuneCountInString(trimmed); n < f.MinLength {
		return false, fmt.Sprintf("too short (%d < %d characters)", n, f.MinLength)
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range f.NoResultPhrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p != "" && strings.Contains(lower, p) {
			return false, fmt.Sprintf("no-result phrase %q", phrase)
		}
	}
	return true, ""
}

// AllOf accepts a result only if every filter accepts it. The first
// rejection's reason is returned.
func AllOf(filters ...ResultQualityFilter) ResultQualityFilter {
	return FilterFunc(func(text string) (bool, string) {
		for _, f := range filters {
			if f == nil {
				continue
			}
			if ok, reason := f.Evaluate(text); !ok {
				return false, reason
			}
		}
		return true, ""
	})
}
