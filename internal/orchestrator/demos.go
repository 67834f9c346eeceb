package orchestrator

// ExampleQuestions are the built-in agent examples. The first one backs the
// /ejemplo-agente endpoint.
var ExampleQuestions = []string{
	"¿Cuál es el clima actual en Quito, Ecuador?",
	"¿Quién ganó la final de la Champions League más reciente?",
	"¿Cuáles son las últimas noticias sobre inteligencia artificial?",
	"¿Cuál es el precio actual del Bitcoin?",
}

// DefaultDemo is used for unknown demo types.
const DefaultDemo = "general"

var demoQuestions = map[string]string{
	"noticias": "¿Cuáles son las últimas noticias sobre inteligencia artificial?",
	"bitcoin":  "¿Cuál es el precio actual del Bitcoin?",
	"deportes": "¿Quién ganó la final de la Champions League más reciente?",
	"tech":     "¿Cuáles son las últimas noticias sobre OpenAI?",
	"economia": "¿Cuál es el precio actual del petróleo?",
	"general":  "¿Cuáles son las noticias más importantes de hoy?",
}

// DemoTypes lists the demo types in display order.
func DemoTypes() []string {
	return []string{"noticias", "bitcoin", "deportes", "tech", "economia", "general"}
}

// DemoQuestion returns the demo type actually used and its question.
func DemoQuestion(kind string) (string, string) {
	if q, ok := demoQuestions[kind]; ok {
		return kind, q
	}
	return DefaultDemo, demoQuestions[DefaultDemo]
}
