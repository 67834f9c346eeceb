package routing

import (
	"slices"
	"testing"

	"github.com/haasonsaas/pathfinder/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		q    models.Query
		want models.DispatchPath
	}{
		{"definition offline", models.Query{Text: "qué es Java", Mode: models.ModeSimple}, models.PathSimple},
		{"definition online", models.Query{Text: "qué es Java", Mode: models.ModeSimple, InternetAllowed: true}, models.PathSimple},
		{"price", models.Query{Text: "precio actual bitcoin", Mode: models.ModeSimple, InternetAllowed: true}, models.PathAgent},
		{"price without internet", models.Query{Text: "precio actual bitcoin", InternetAllowed: false}, models.PathSimple},
		{"news english", models.Query{Text: "latest news on AI", InternetAllowed: true}, models.PathAgent},
		{"year", models.Query{Text: "¿quién ganó el mundial 2026?", InternetAllowed: true}, models.PathAgent},
		{"weather accent", models.Query{Text: "Pronóstico para Quito", InternetAllowed: true}, models.PathWeather},
		{"weather beats fresh", models.Query{Text: "¿Cuál es el clima actual en Quito, Ecuador?", InternetAllowed: true}, models.PathWeather},
		{"weather english", models.Query{Text: "weather in London today", InternetAllowed: true}, models.PathWeather},
		{"explicit agent", models.Query{Text: "qué es Java", Mode: models.ModeAgent, InternetAllowed: true}, models.PathAgent},
		{"explicit search beats weather", models.Query{Text: "clima en Lima", Mode: models.ModeSearch, InternetAllowed: true}, models.PathSearch},
		{"explicit agent offline", models.Query{Text: "noticias", Mode: models.ModeAgent}, models.PathSimple},
		{"word boundary", models.Query{Text: "what is a nowhere man", InternetAllowed: true}, models.PathSimple},
		{"empty mode", models.Query{Text: "news today", InternetAllowed: true}, models.PathAgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.q); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.q.Text, got, tt.want)
			}
		})
	}
}

func TestClassifyFreshnessNeverSimple(t *testing.T) {
	markers := []string{"hoy", "actual", "últimos", "noticias", "ahora", "today", "current", "latest", "news", "price", "now", "recent", "2025"}
	for _, m := range markers {
		q := models.Query{Text: "dime algo sobre " + m, Mode: models.ModeSimple, InternetAllowed: true}
		if got := Classify(q); got == models.PathSimple {
			t.Errorf("marker %q classified simple", m)
		}
	}
}

func TestFold(t *testing.T) {
	if got := Fold("¿Qué PRONÓSTICO hay en Bogotá, año?"); got != "¿que pronostico hay en bogota, ano?" {
		t.Errorf("Fold = %q", got)
	}
}

func TestTags(t *testing.T) {
	tags := Tags("Analiza este código: ```SELECT * FROM precios``` y el clima de hoy")
	for _, want := range []string{TagWeather, TagFresh, TagCode, TagReasoning, TagQuick} {
		if !slices.Contains(tags, want) {
			t.Errorf("tags %v missing %s", tags, want)
		}
	}
	if Tags("   ") != nil {
		t.Error("blank text should have no tags")
	}
}
