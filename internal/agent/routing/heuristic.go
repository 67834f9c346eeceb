package routing

import (
	"regexp"
	"strings"
)

var (
	codeRegex    = regexp.MustCompile(`\b(func|class|def|package|import|select|insert|update|delete|codigo|funcion|script)\b`)
	reasonRegex  = regexp.MustCompile(`\b(analyze|analiza|reason|razona|think through|derive|deriva|prove|demuestra|why|por que|tradeoff|compara)\b`)
	quickRegex   = regexp.MustCompile(`\b(what is|que es|define|quick|rapido|brief|breve|summary|resumen)\b`)
	markdownCode = regexp.MustCompile("```")
)

// Heuristic tags.
const (
	TagWeather   = "weather"
	TagFresh     = "fresh"
	TagCode      = "code"
	TagReasoning = "reasoning"
	TagQuick     = "quick"
)

// Tags returns the heuristic tags for text, for routing rules.
func Tags(text string) []string {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil
	}
	folded := Fold(content)
	var tags []string

	if weatherRegex.MatchString(folded) {
		tags = append(tags, TagWeather)
	}
	if NeedsFreshData(folded) {
		tags = append(tags, TagFresh)
	}
	if markdownCode.MatchString(folded) || codeRegex.MatchString(folded) {
		tags = append(tags, TagCode)
	}
	if reasonRegex.MatchString(folded) {
		tags = append(tags, TagReasoning)
	}
	if quickRegex.MatchString(folded) || len(folded) < 80 {
		tags = append(tags, TagQuick)
	}
	return tags
}
