// Package routing decides how a query is answered: which dispatch path it
// takes and, absent an explicit choice, which backend serves it.
package routing

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/haasonsaas/pathfinder/pkg/models"
)

// Lexicons match against folded text: lower case, accents removed.
var (
	weatherRegex = regexp.MustCompile(`\b(clima|tiempo hace|el tiempo (en|hoy|manana)|temperatura|lluvia|llueve|llover|llovera|pronostico|humedad|weather|forecast|temperature|rain|raining|humidity)\b`)

	freshRegex = regexp.MustCompile(`\b(hoy|actual|actuales|actualmente|ultimo|ultima|ultimos|ultimas|noticias|precio|precios|ahora|reciente|recientes|cotizacion|esta semana|en vivo|today|current|currently|latest|news|price|prices|now|recent|recently|live|this week)\b`)

	yearRegex = regexp.MustCompile(`\b(202[4-9]|20[3-9][0-9])\b`)
)

// Classify maps a query to the dispatch path that should serve it. It is
// pure: the same query always yields the same path.
//
// Internet access gates everything. An explicit agent or search mode is
// honored as is; the default simple mode may be promoted by the weather and
// freshness lexicons, weather first.
func Classify(q models.Query) models.DispatchPath {
	if !q.InternetAllowed {
		return models.PathSimple
	}
	switch q.Mode {
	case models.ModeAgent:
		return models.PathAgent
	case models.ModeSearch:
		return models.PathSearch
	}

	text := Fold(q.Text)
	switch {
	case weatherRegex.MatchString(text):
		return models.PathWeather
	case NeedsFreshData(text):
		return models.PathAgent
	default:
		return models.PathSimple
	}
}

// NeedsFreshData reports whether folded text asks for current information.
func NeedsFreshData(folded string) bool {
	return freshRegex.MatchString(folded) || yearRegex.MatchString(folded)
}

// IsWeatherQuestion reports whether text mentions weather.
func IsWeatherQuestion(text string) bool {
	return weatherRegex.MatchString(Fold(text))
}

// Fold lower-cases text and strips diacritics, so "Pronóstico" matches
// "pronostico".
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}
