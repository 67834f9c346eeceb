package agent

import (
	"errors"
	"regexp"
	"strings"
)

// StepKind is what one model turn asked for.
type StepKind int

const (
	StepAction StepKind = iota + 1
	StepFinal
)

// ParsedStep is one parsed model turn.
type ParsedStep struct {
	Kind        StepKind
	Thought     string
	Action      string
	ActionInput string
	FinalAnswer string
}

// Parse errors. They are fed back to the model as corrective observations.
var (
	errMissingAction      = errors.New("no action or final answer found")
	errMissingActionInput = errors.New("action given without an action input")
	errEmptyFinalAnswer   = errors.New("final answer is empty")
)

type markerKind int

const (
	markThought markerKind = iota
	markActionInput
	markAction
	markFinal
	markObservation
)

// Longer alternatives come first so "Action Input" never matches as "Action".
var markerPattern = regexp.MustCompile(`(?im)^[\s*#>_-]*(action\s+input|entrada\s+de\s+acci[oó]n|final\s+answer|respuesta\s+final|thought|pensamiento|action|acci[oó]n|observation|observaci[oó]n)\s*\**\s*:`)

func classifyMarker(label string) markerKind {
	l := strings.ToLower(strings.Join(strings.Fields(label), " "))
	switch {
	case strings.HasPrefix(l, "action input"), strings.HasPrefix(l, "entrada de acci"):
		return markActionInput
	case l == "final answer", l == "respuesta final":
		return markFinal
	case l == "thought", l == "pensamiento":
		return markThought
	case strings.HasPrefix(l, "observ"):
		return markObservation
	default:
		return markAction
	}
}

type segment struct {
	kind    markerKind
	content string
}

func splitSegments(text string) (lead string, segs []segment) {
	locs := markerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(text), nil
	}
	lead = strings.TrimSpace(text[:locs[0][0]])
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segs = append(segs, segment{
			kind:    classifyMarker(text[loc[2]:loc[3]]),
			content: strings.TrimSpace(strings.TrimLeft(text[loc[1]:end], "* \t")),
		})
	}
	return lead, segs
}

// ParseReAct parses one model turn written in the English or Spanish ReAct
// format. Anything after the first observation marker is ignored, since
// observations are only ever supplied by the executor.
func ParseReAct(text string) (*ParsedStep, error) {
	lead, segs := splitSegments(text)

	step := &ParsedStep{Thought: lead}
	actionIdx, inputIdx, finalIdx := -1, -1, -1
	for i, s := range segs {
		if s.kind == markObservation {
			break
		}
		switch s.kind {
		case markThought:
			if step.Thought == "" {
				step.Thought = s.content
			}
		case markAction:
			if actionIdx < 0 {
				actionIdx = i
				step.Action = normalizeToolName(s.content)
			}
		case markActionInput:
			if actionIdx >= 0 && inputIdx < 0 {
				inputIdx = i
				step.ActionInput = cleanActionInput(s.content)
			}
		case markFinal:
			if finalIdx < 0 {
				finalIdx = i
				step.FinalAnswer = s.content
			}
		}
	}

	switch {
	case actionIdx >= 0 && inputIdx >= 0 && (finalIdx < 0 || actionIdx < finalIdx):
		step.Kind = StepAction
		step.FinalAnswer = ""
		return step, nil
	case finalIdx >= 0:
		if step.FinalAnswer == "" {
			return nil, errEmptyFinalAnswer
		}
		step.Kind = StepFinal
		step.Action, step.ActionInput = "", ""
		return step, nil
	case actionIdx >= 0:
		return nil, errMissingActionInput
	default:
		return nil, errMissingAction
	}
}

func normalizeToolName(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), "`'\"[]*.")
	return strings.ToLower(strings.TrimSpace(s))
}

func cleanActionInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
