package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/haasonsaas/pathfinder/internal/orchestrator"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

const maxBodyBytes = 1 << 20

const errNoQuestion = "No se proporcionó ninguna pregunta"

// chatRequest accepts both the front end's Spanish field names and English ones.
type chatRequest struct {
	Pregunta string `json:"pregunta"`
	Question string `json:"question"`
	Modo     string `json:"modo"`
	Mode     string `json:"mode"`
	Modelo   string `json:"modelo"`
	Backend  string `json:"backend"`
	Internet *bool  `json:"internet"`
}

func (c chatRequest) query() models.Query {
	q := models.Query{
		Text:            strings.TrimSpace(firstNonEmpty(c.Pregunta, c.Question)),
		Mode:            models.ParseMode(firstNonEmpty(c.Modo, c.Mode)),
		BackendID:       strings.TrimSpace(firstNonEmpty(c.Modelo, c.Backend)),
		InternetAllowed: true,
	}
	if c.Internet != nil {
		q.InternetAllowed = *c.Internet
	}
	return q
}

type demoRequest struct {
	Tipo   string `json:"tipo"`
	Modelo string `json:"modelo"`
}

// legacyStep is the step shape the web front end renders.
type legacyStep struct {
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
	Observation string `json:"observation"`
}

// chatResponse is the envelope plus the fields the original front end reads.
type chatResponse struct {
	models.ResponseEnvelope

	Respuesta        string       `json:"respuesta"`
	Modo             string       `json:"modo"`
	ModeloUsado      string       `json:"modelo_usado"`
	PasosIntermedios []legacyStep `json:"pasos_intermedios"`
	Pregunta         string       `json:"pregunta,omitempty"`
	TipoDemo         string       `json:"tipo_demo,omitempty"`
}

func newChatResponse(env models.ResponseEnvelope) chatResponse {
	steps := []legacyStep{}
	if env.Trace != nil {
		for _, st := range env.Trace.Steps {
			steps = append(steps, legacyStep{Action: st.Tool, ActionInput: st.Input, Observation: st.Observation})
		}
	}
	return chatResponse{
		ResponseEnvelope: env,
		Respuesta:        env.Text,
		Modo:             legacyMode(env.DispatchPathUsed),
		ModeloUsado:      env.BackendUsed,
		PasosIntermedios: steps,
	}
}

func legacyMode(p models.DispatchPath) string {
	switch p {
	case models.PathAgent:
		return "agente"
	case models.PathSearch:
		return "busqueda_rapida"
	case models.PathWeather:
		return "clima"
	default:
		return "simple"
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, "")
}

func (s *Server) handleQuickSearch(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, models.ModeSearch)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request, force models.Mode) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := req.query()
	if q.Text == "" {
		respondError(w, http.StatusBadRequest, errNoQuestion)
		return
	}
	if force != "" {
		q.Mode = force
	}
	respondJSON(w, http.StatusOK, newChatResponse(s.manager.Resolve(r.Context(), q)))
}

func (s *Server) handleAgentExample(w http.ResponseWriter, r *http.Request) {
	question := orchestrator.ExampleQuestions[0]
	env := s.manager.Resolve(r.Context(), models.Query{Text: question, Mode: models.ModeAgent, InternetAllowed: true})
	resp := newChatResponse(env)
	resp.Pregunta = question
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentDemo(w http.ResponseWriter, r *http.Request) {
	var req demoRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, question := orchestrator.DemoQuestion(strings.ToLower(strings.TrimSpace(req.Tipo)))
	env := s.manager.Resolve(r.Context(), models.Query{
		Text:            question,
		Mode:            models.ModeAgent,
		BackendID:       strings.TrimSpace(req.Modelo),
		InternetAllowed: true,
	})
	resp := newChatResponse(env)
	resp.Pregunta = question
	resp.TipoDemo = kind
	respondJSON(w, http.StatusOK, resp)
}

type modelInfo struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Model     string `json:"model"`
	Locality  string `json:"locality"`
	Available bool   `json:"available"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	all := s.manager.Registry().All()
	out := make([]modelInfo, 0, len(all))
	for _, b := range all {
		out = append(out, modelInfo{
			ID:        b.ID,
			Kind:      b.Kind.String(),
			Model:     b.Model,
			Locality:  b.Locality().String(),
			Available: b.Available(),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"backends_available": len(s.manager.Registry().ListAvailable()),
	})
}

// decodeBody decodes a JSON body. An empty body leaves v at its zero value.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("cuerpo JSON inválido: " + err.Error())
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
