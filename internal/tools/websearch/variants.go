package websearch

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/pathfinder/internal/agent/routing"
	"github.com/haasonsaas/pathfinder/internal/tools/weather"
)

// Category is the kind of question a query variant list is tailored for.
type Category string

const (
	CategoryPrice   Category = "price"
	CategoryWeather Category = "weather"
	CategoryNews    Category = "news"
	CategoryGeneric Category = "generic"
)

// asset is a priced instrument the price category recognizes.
type asset struct {
	Name   string // as written in variants
	Symbol string
	Terms  []string // folded match terms
}

var assets = []asset{
	{Name: "Bitcoin", Symbol: "BTC", Terms: []string{"bitcoin", "btc"}},
	{Name: "Ethereum", Symbol: "ETH", Terms: []string{"ethereum", "ether", "eth"}},
	{Name: "Solana", Symbol: "SOL", Terms: []string{"solana"}},
	{Name: "Dólar", Symbol: "USD", Terms: []string{"dolar", "dollar", "usd"}},
	{Name: "Euro", Symbol: "EUR", Terms: []string{"euro", "eur"}},
	{Name: "Oro", Symbol: "XAU", Terms: []string{"oro", "gold", "xau"}},
	{Name: "Petróleo", Symbol: "WTI", Terms: []string{"petroleo", "oil", "crudo", "wti", "brent"}},
}

var (
	priceRegex = regexp.MustCompile(`\b(precio|precios|price|prices|cotizacion|vale|cuesta|valor|value|cost)\b`)
	newsRegex  = regexp.MustCompile(`\b(noticias|noticia|news|novedades|headlines|titulares)\b`)
	stopwords  = map[string]bool{"el": true, "la": true, "los": true, "las": true, "de": true, "del": true, "sobre": true, "the": true, "on": true, "about": true, "of": true, "a": true, "en": true, "y": true, "que": true, "cuales": true, "son": true, "what": true, "are": true, "is": true, "cual": true, "es": true, "dame": true, "ultimas": true, "latest": true, "news": true, "noticias": true, "hoy": true, "today": true, "mas": true, "recientes": true, "give": true, "me": true}
)

// VariantGenerator rewrites a query into an ordered list of search
// variants. It is deterministic for a given clock.
type VariantGenerator struct {
	max int
	now func() time.Time
}

// NewVariantGenerator caps output at maxVariants (default 3). A nil clock
// uses time.Now.
func NewVariantGenerator(maxVariants int, now func() time.Time) *VariantGenerator {
	if maxVariants <= 0 {
		maxVariants = 3
	}
	if now == nil {
		now = time.Now
	}
	return &VariantGenerator{max: maxVariants, now: now}
}

// Categorize returns the category of query and, for price and weather, the
// matched asset name or city.
func Categorize(query string) (Category, string) {
	folded := routing.Fold(query)
	if priceRegex.MatchString(folded) {
		if a, ok := findAsset(folded); ok {
			return CategoryPrice, a.Name
		}
	}
	if routing.IsWeatherQuestion(query) {
		return CategoryWeather, weather.ExtractCity(query, "")
	}
	if newsRegex.MatchString(folded) {
		return CategoryNews, topic(folded)
	}
	return CategoryGeneric, ""
}

// Generate returns de-duplicated variants, category variants first.
func (g *VariantGenerator) Generate(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	now := g.now()
	year := strconv.Itoa(now.Year())

	var candidates []string
	folded := routing.Fold(query)
	category, subject := Categorize(query)
	switch category {
	case CategoryPrice:
		a, _ := findAsset(folded)
		candidates = append(candidates,
			a.Name+" price USD current today",
			"precio "+a.Name+" actual dólares",
			a.Symbol+" price now current value",
		)
	case CategoryWeather:
		if subject != "" {
			candidates = append(candidates,
				"weather "+subject+" today",
				"clima "+subject+" hoy",
				subject+" temperature now",
			)
		}
	case CategoryNews:
		if subject != "" {
			candidates = append(candidates,
				subject+" latest news "+now.Format("January")+" "+year,
				"últimas noticias "+subject+" "+year,
				subject+" news today",
			)
		}
	}
	candidates = append(candidates, query)
	if !strings.Contains(query, year) {
		candidates = append(candidates, query+" "+year)
	}
	candidates = append(candidates, query+" latest")

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, g.max)
	for _, c := range candidates {
		key := strings.ToLower(strings.Join(strings.Fields(c), " "))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == g.max {
			break
		}
	}
	return out
}

func findAsset(folded string) (asset, bool) {
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, a := range assets {
		for _, term := range a.Terms {
			for _, w := range words {
				if w == term {
					return a, true
				}
			}
		}
	}
	return asset{}, false
}

// topic strips question words and freshness markers from a news query.
func topic(folded string) string {
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '?' || r == '¿' || r == ',' || r == '.' || r == '!' || r == '¡'
	})
	var kept []string
	for _, w := range words {
		if !stopwords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
