package orchestrator

import (
	"fmt"

	"github.com/haasonsaas/pathfinder/internal/tools/websearch"
)

// messages holds the fixed user-facing and prompt texts for one language.
type messages struct {
	simpleSystem   string
	guidanceSystem string
	weatherSystem  string
	weatherPrompt  string
	searchSystem   string
	searchPrompt   string
	iterationLimit string
	timeLimit      string
	parsingFailure string
	static         string
	staticHints    map[websearch.Category]string
}

var catalog = map[string]messages{
	"es": {
		simpleSystem: "Eres un asistente útil y amigable. Responde de manera clara y concisa.",
		guidanceSystem: "Eres un asistente útil y amigable. No fue posible obtener información actualizada de internet para esta pregunta. " +
			"Responde con lo que sepas, advierte que tu información puede no estar actualizada y " +
			"explica dónde puede el usuario consultar datos actuales sobre este tema (sitios oficiales, medios confiables o servicios especializados).",
		weatherSystem: "Eres un asistente meteorológico. Responde de forma clara y breve usando únicamente los datos del clima proporcionados.",
		weatherPrompt: "Pregunta: %s\n\nDatos del clima actual:\n%s",
		searchSystem: "Eres un asistente que resume resultados de búsqueda web. Responde la pregunta usando solo la información de los resultados " +
			"y menciona la fuente cuando sea posible. Si los resultados no responden la pregunta, dilo.",
		searchPrompt:   "Pregunta: %s\n\nResultados de búsqueda:\n%s",
		iterationLimit: "No pude completar la investigación dentro del límite de pasos permitido. Esta respuesta se basa en mi conocimiento general y puede no estar actualizada:\n\n",
		timeLimit:      "La investigación tardó más del tiempo permitido. Esta respuesta se basa en mi conocimiento general y puede no estar actualizada:\n\n",
		parsingFailure: "No pude completar la investigación. Esta respuesta se basa en mi conocimiento general y puede no estar actualizada:\n\n",
		static:         "Lo siento, en este momento ningún modelo de lenguaje está disponible para responder tu pregunta. Inténtalo de nuevo en unos minutos.",
		staticHints: map[websearch.Category]string{
			websearch.CategoryPrice:   "Para cotizaciones actuales puedes consultar Google Finance, CoinMarketCap o el sitio de tu banco.",
			websearch.CategoryWeather: "Para el clima actual puedes consultar https://wttr.in o el servicio meteorológico nacional de tu país.",
			websearch.CategoryNews:    "Para noticias recientes puedes consultar medios confiables o Google Noticias.",
			websearch.CategoryGeneric: "Mientras tanto, puedes buscar la información en un buscador web o en fuentes oficiales.",
		},
	},
	"en": {
		simpleSystem: "You are a helpful and friendly assistant. Answer clearly and concisely.",
		guidanceSystem: "You are a helpful and friendly assistant. Up-to-date information could not be retrieved from the internet for this question. " +
			"Answer with what you know, warn that your information may be out of date, and " +
			"explain where the user can find current data on this topic (official sites, reliable media or specialized services).",
		weatherSystem: "You are a weather assistant. Answer clearly and briefly using only the weather data provided.",
		weatherPrompt: "Question: %s\n\nCurrent weather data:\n%s",
		searchSystem: "You summarize web search results. Answer the question using only the information in the results " +
			"and cite the source when possible. If the results do not answer the question, say so.",
		searchPrompt:   "Question: %s\n\nSearch results:\n%s",
		iterationLimit: "I could not finish researching within the allowed number of steps. This answer is based on my general knowledge and may be out of date:\n\n",
		timeLimit:      "Researching took longer than allowed. This answer is based on my general knowledge and may be out of date:\n\n",
		parsingFailure: "I could not finish researching. This answer is based on my general knowledge and may be out of date:\n\n",
		static:         "Sorry, no language model is available to answer your question right now. Please try again in a few minutes.",
		staticHints: map[websearch.Category]string{
			websearch.CategoryPrice:   "For current quotes, check Google Finance, CoinMarketCap or your bank's website.",
			websearch.CategoryWeather: "For current weather, check https://wttr.in or your national weather service.",
			websearch.CategoryNews:    "For recent news, check reliable news outlets or Google News.",
			websearch.CategoryGeneric: "Meanwhile, you can look the information up with a web search engine or official sources.",
		},
	},
}

func messagesFor(lang string) messages {
	if m, ok := catalog[lang]; ok {
		return m
	}
	return catalog["es"]
}

func (m messages) weatherUser(question, report string) string {
	return fmt.Sprintf(m.weatherPrompt, question, report)
}

func (m messages) searchUser(question, results string) string {
	return fmt.Sprintf(m.searchPrompt, question, results)
}

// staticText is the backend-independent answer of last resort.
func (m messages) staticText(question string) string {
	category, _ := websearch.Categorize(question)
	if hint := m.staticHints[category]; hint != "" {
		return m.static + " " + hint
	}
	return m.static
}
