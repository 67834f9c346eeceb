package agent

import (
	"fmt"
	"strings"
)

// Language selects prompt and correction wording.
type Language string

const (
	LanguageSpanish Language = "es"
	LanguageEnglish Language = "en"
)

// ParseLanguage maps a config value to a Language, defaulting to Spanish.
func ParseLanguage(s string) Language {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "en") {
		return LanguageEnglish
	}
	return LanguageSpanish
}

type promptSet struct {
	system      string
	question    string
	thought     string
	action      string
	actionInput string
	observation string
	badFormat   string
	unknownTool string
}

var prompts = map[Language]promptSet{
	LanguageSpanish: {
		system: `Eres un asistente inteligente que puede ayudar con información actual y realizar búsquedas web cuando sea necesario.

Tienes acceso a las siguientes herramientas:
%s

Usa el siguiente formato:

Pregunta: la pregunta de entrada que debes responder
Pensamiento: siempre debes pensar sobre qué hacer
Acción: la acción a tomar, debe ser una de [%s]
Entrada de Acción: la entrada a la acción
Observación: el resultado de la acción
... (este Pensamiento/Acción/Entrada de Acción/Observación puede repetirse N veces)
Pensamiento: ahora sé la respuesta final
Respuesta Final: la respuesta final a la pregunta de entrada original

Escribe una sola Acción por turno y detente después de la Entrada de Acción. Nunca escribas la Observación tú mismo.`,
		question:    "Pregunta",
		thought:     "Pensamiento",
		action:      "Acción",
		actionInput: "Entrada de Acción",
		observation: "Observación",
		badFormat:   "Formato inválido (%s). Responde con 'Acción:' y 'Entrada de Acción:', o con 'Respuesta Final:'.",
		unknownTool: "%s no es una herramienta válida. Usa una de [%s].",
	},
	LanguageEnglish: {
		system: `You are an intelligent assistant that can help with current information and search the web when needed.

You have access to the following tools:
%s

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%s]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Write a single Action per turn and stop after the Action Input. Never write the Observation yourself.`,
		question:    "Question",
		thought:     "Thought",
		action:      "Action",
		actionInput: "Action Input",
		observation: "Observation",
		badFormat:   "Invalid format (%s). Reply with 'Action:' and 'Action Input:', or with 'Final Answer:'.",
		unknownTool: "%s is not a valid tool, try one of [%s].",
	},
}

func (p promptSet) systemPrompt(tools *ToolRegistry) string {
	return fmt.Sprintf(p.system, tools.Describe(), strings.Join(tools.Names(), ", "))
}

// scratchpad accumulates the transcript of the current run.
type scratchpad struct {
	p promptSet
	b strings.Builder
}

func (s *scratchpad) addAction(thought, action, input, observation string) {
	if thought != "" {
		fmt.Fprintf(&s.b, "%s: %s\n", s.p.thought, thought)
	}
	fmt.Fprintf(&s.b, "%s: %s\n%s: %s\n%s: %s\n", s.p.action, action, s.p.actionInput, input, s.p.observation, observation)
}

func (s *scratchpad) addCorrection(observation string) {
	fmt.Fprintf(&s.b, "%s: %s\n", s.p.observation, observation)
}

func (s *scratchpad) userPrompt(question string) string {
	return fmt.Sprintf("%s: %s\n%s%s:", s.p.question, question, s.b.String(), s.p.thought)
}
