package weather

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/pathfinder/internal/agent/routing"
)

// placeRegex captures the words after a locative preposition up to
// punctuation, a time word, or the end of the text.
var placeRegex = regexp.MustCompile(`(?i)\b(?:en|in|for|para|at)\s+(.+?)(?:\s*[,?!.;:]|\s+(?:hoy|today|ahora|now|mañana|manana|tomorrow|esta|este|this|tonight|right|currently|actualmente)\b|$)`)

var leadingArticles = []string{"la ciudad de ", "the city of ", "el ", "la ", "the "}

// notPlaces are first words that make a capture a time phrase, as in
// "en este momento" or "in the morning".
var notPlaces = map[string]bool{
	"este": true, "esta": true, "estos": true, "estas": true, "ese": true, "esa": true,
	"this": true, "that": true, "these": true,
	"el": true, "la": true, "los": true, "las": true, "the": true,
	"hoy": true, "ahora": true, "mañana": true, "manana": true, "tarde": true, "noche": true,
	"momento": true, "actualidad": true, "general": true,
	"today": true, "now": true, "tomorrow": true, "tonight": true,
	"morning": true, "afternoon": true, "evening": true, "moment": true,
}

// ExtractCity finds the city a weather question is about. It understands
// phrasings such as "clima en Quito, Ecuador" and "weather in London today",
// and accepts a bare city name. It returns defaultCity when no city is named.
func ExtractCity(text, defaultCity string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return defaultCity
	}
	// A time phrase is skipped and the search resumes inside it, so
	// "clima en este momento en Madrid" still finds Madrid.
	for rest := text; ; {
		m := placeRegex.FindStringSubmatchIndex(rest)
		if m == nil {
			break
		}
		if city := cleanCity(rest[m[2]:m[3]]); isPlace(city) {
			return city
		}
		rest = rest[m[2]:]
	}
	// Tool input is often just "Quito" or "Quito, Ecuador".
	if !routing.IsWeatherQuestion(text) && len(strings.Fields(text)) <= 4 {
		if city := cleanCity(strings.SplitN(text, ",", 2)[0]); isPlace(city) {
			return city
		}
	}
	return defaultCity
}

func isPlace(city string) bool {
	fields := strings.Fields(strings.ToLower(city))
	return len(fields) > 0 && !notPlaces[fields[0]]
}

func cleanCity(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `¿?¡!."'`)
	lower := strings.ToLower(s)
	for _, a := range leadingArticles {
		if strings.HasPrefix(lower, a) && len(s) > len(a) {
			s = s[len(a):]
			lower = lower[len(a):]
		}
	}
	return strings.TrimSpace(s)
}
