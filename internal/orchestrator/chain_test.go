package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/pathfinder/internal/agent"
	"github.com/haasonsaas/pathfinder/internal/agent/providers"
	"github.com/haasonsaas/pathfinder/internal/backend"
	"github.com/haasonsaas/pathfinder/internal/backoff"
	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/internal/tools/weather"
	"github.com/haasonsaas/pathfinder/internal/tools/websearch"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

var fixedNow = func() time.Time { return time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC) }

var es = catalog["es"]

// stubLLM answers through respond and counts calls.
type stubLLM struct {
	calls   atomic.Int32
	respond func(req *agent.CompletionRequest) (string, error)
}

func (p *stubLLM) Complete(_ context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.calls.Add(1)
	text, err := p.respond(req)
	ch := make(chan *agent.CompletionChunk, 2)
	if err != nil {
		ch <- &agent.CompletionChunk{Error: err}
	} else {
		ch <- &agent.CompletionChunk{Text: text}
		ch <- &agent.CompletionChunk{Done: true}
	}
	close(ch)
	return ch, nil
}

func (p *stubLLM) Name() string          { return "stub" }
func (p *stubLLM) Models() []agent.Model { return nil }

func replies(text string) *stubLLM {
	return &stubLLM{respond: func(*agent.CompletionRequest) (string, error) { return text, nil }}
}

func unreachable() *stubLLM {
	return &stubLLM{respond: func(*agent.CompletionRequest) (string, error) {
		return "", &providers.ProviderError{Reason: providers.FailoverNetwork, Provider: "stub", Message: "connection refused"}
	}}
}

func userText(req *agent.CompletionRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

// testBackend is a local backend whose probe result the test controls.
type testBackend struct {
	id     string
	llm    agent.LLMProvider
	down   atomic.Bool
	probes atomic.Int32
}

func newBackend(id string, llm agent.LLMProvider) *testBackend {
	return &testBackend{id: id, llm: llm}
}

func newRegistry(t *testing.T, tbs ...*testBackend) *backend.Registry {
	t.Helper()
	return newRegistryWith(t, backend.RegistryOptions{}, tbs...)
}

func newRegistryWith(t *testing.T, opts backend.RegistryOptions, tbs ...*testBackend) *backend.Registry {
	t.Helper()
	var backends []*backend.Backend
	for _, tb := range tbs {
		backends = append(backends, backend.New(tb.id, backend.KindOllama, "llama3", tb.llm, backend.Options{
			Policy: &backoff.Policy{Initial: time.Millisecond, Max: time.Millisecond, Factor: 1},
			Prober: backend.ProberFunc(func(context.Context) error {
				tb.probes.Add(1)
				if tb.down.Load() {
					return errors.New("daemon not running")
				}
				return nil
			}),
		}))
	}
	reg, err := backend.NewRegistry(context.Background(), backends, opts)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

// waitingLLM blocks until the caller's context is done.
type waitingLLM struct{}

func (waitingLLM) Complete(ctx context.Context, _ *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	ch := make(chan *agent.CompletionChunk, 1)
	go func() {
		defer close(ch)
		<-ctx.Done()
		ch <- &agent.CompletionChunk{Error: ctx.Err()}
	}()
	return ch, nil
}

func (waitingLLM) Name() string          { return "waiting" }
func (waitingLLM) Models() []agent.Model { return nil }

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	opts.Logger = observability.NewLogger(observability.LogConfig{Output: io.Discard})
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	m, err := NewManager(opts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

type stubSource struct {
	name    string
	respond func(variant string) (string, error)
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Search(_ context.Context, q string) (string, error) {
	return s.respond(q)
}

func newAggregator(sources ...websearch.Source) *websearch.Aggregator {
	return websearch.NewAggregator(sources, websearch.AggregatorConfig{MaxVariants: 3, Now: fixedNow})
}

type stubTool struct {
	name string
	fn   func(query string) (*agent.ToolResult, error)
}

func (s *stubTool) Name() string            { return s.name }
func (s *stubTool) Description() string     { return "stub " + s.name }
func (s *stubTool) Schema() json.RawMessage { return agent.SchemaFor(websearch.SearchParams{}) }
func (s *stubTool) Execute(_ context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p websearch.SearchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	return s.fn(p.Query)
}

func newExecutor(t *testing.T, maxIterations int, tools ...agent.Tool) *agent.Executor {
	t.Helper()
	reg := agent.NewToolRegistry()
	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			t.Fatal(err)
		}
	}
	return agent.NewExecutor(
		agent.NewToolExecutor(reg, agent.ToolExecConfig{Timeout: 5 * time.Second}),
		agent.LoopConfig{MaxIterations: maxIterations, MaxDuration: 10 * time.Second},
	)
}

func isReAct(req *agent.CompletionRequest) bool {
	return strings.Contains(req.System, "Entrada de Acción")
}

func TestResolveSimpleOffline(t *testing.T) {
	var system string
	llm := &stubLLM{respond: func(req *agent.CompletionRequest) (string, error) {
		system = req.System
		return "Java es un lenguaje de programación orientado a objetos.", nil
	}}
	m := newManager(t, Options{Registry: newRegistry(t, newBackend("llama3", llm))})

	env := m.Resolve(context.Background(), models.Query{Text: "qué es Java", Mode: models.ModeSimple})
	if env.DispatchPathUsed != models.PathSimple || env.DispatchPathClassified != models.PathSimple {
		t.Fatalf("paths = %s/%s", env.DispatchPathClassified, env.DispatchPathUsed)
	}
	if env.Degraded || env.DegradeReason != "" {
		t.Fatalf("degraded = %v (%s)", env.Degraded, env.DegradeReason)
	}
	if env.Text != "Java es un lenguaje de programación orientado a objetos." {
		t.Fatalf("text = %q", env.Text)
	}
	if env.BackendUsed != "llama3" || env.BackendSubstituted {
		t.Fatalf("backend = %s substituted=%v", env.BackendUsed, env.BackendSubstituted)
	}
	if env.Trace != nil || env.SearchAttempts != nil {
		t.Fatalf("simple path produced trace or attempts: %+v", env)
	}
	if system != es.simpleSystem {
		t.Fatalf("system prompt = %q", system)
	}
	if !env.Timing.StartedAt.Equal(fixedNow()) || env.Timing.DurationMs != 0 {
		t.Fatalf("timing = %+v", env.Timing)
	}
}

func TestResolveAgentUsesFirstAcceptedVariant(t *testing.T) {
	const quote = "Bitcoin cotiza hoy alrededor de 67.000 USD según CoinDesk y otras fuentes de mercado."
	source := &stubSource{name: "duckduckgo", respond: func(variant string) (string, error) {
		if variant == "precio Bitcoin actual dólares" {
			return quote, nil
		}
		return "sin resultados", nil
	}}
	tool := websearch.NewWebSearchTool(newAggregator(source))

	llm := &stubLLM{respond: func(req *agent.CompletionRequest) (string, error) {
		if !isReAct(req) {
			return "", errors.New("unexpected direct call")
		}
		if strings.Contains(userText(req), "67.000 USD") {
			return "Pensamiento: ahora sé la respuesta final\nRespuesta Final: El Bitcoin cotiza alrededor de 67.000 USD.", nil
		}
		return "Pensamiento: necesito el precio actual\nAcción: web_search\nEntrada de Acción: precio actual bitcoin", nil
	}}
	m := newManager(t, Options{
		Registry: newRegistry(t, newBackend("llama3", llm)),
		Executor: newExecutor(t, 3, tool),
	})

	env := m.Resolve(context.Background(), models.Query{Text: "precio actual bitcoin", Mode: models.ModeSimple, InternetAllowed: true})
	if env.DispatchPathUsed != models.PathAgent || env.Degraded {
		t.Fatalf("path = %s degraded = %v (%s)", env.DispatchPathUsed, env.Degraded, env.DegradeReason)
	}
	if env.Text != "El Bitcoin cotiza alrededor de 67.000 USD." {
		t.Fatalf("text = %q", env.Text)
	}
	if env.Trace == nil || len(env.Trace.Steps) != 1 || env.Trace.Steps[0].Tool != "web_search" {
		t.Fatalf("trace = %+v", env.Trace)
	}
	if env.Trace.TerminalReason != models.TerminalFinalAnswer {
		t.Fatalf("terminal reason = %s", env.Trace.TerminalReason)
	}

	wantVariants := []string{"Bitcoin price USD current today", "precio Bitcoin actual dólares"}
	if len(env.SearchAttempts) != len(wantVariants) {
		t.Fatalf("attempts = %+v", env.SearchAttempts)
	}
	for i, want := range wantVariants {
		if env.SearchAttempts[i].Variant != want {
			t.Errorf("attempt %d variant = %q, want %q", i, env.SearchAttempts[i].Variant, want)
		}
	}
	if env.SearchAttempts[0].Accepted || !env.SearchAttempts[1].Accepted {
		t.Fatalf("acceptance = %+v", env.SearchAttempts)
	}
}

func TestResolveSubstitutesUnavailableRequestedBackend(t *testing.T) {
	geminiLLM := replies("no debería responder")
	gemini := newBackend("gemini", geminiLLM)
	gemini.down.Store(true)
	llama := newBackend("llama3", replies("Respuesta de llama3."))
	m := newManager(t, Options{Registry: newRegistry(t, gemini, llama)})

	env := m.Resolve(context.Background(), models.Query{Text: "qué es Java", BackendID: "gemini"})
	if env.BackendRequested != "gemini" || env.BackendUsed != "llama3" || !env.BackendSubstituted {
		t.Fatalf("backend requested=%s used=%s substituted=%v", env.BackendRequested, env.BackendUsed, env.BackendSubstituted)
	}
	if env.Text != "Respuesta de llama3." || env.Degraded {
		t.Fatalf("text = %q degraded = %v", env.Text, env.Degraded)
	}
	if geminiLLM.calls.Load() != 0 {
		t.Fatalf("unavailable backend was called %d times", geminiLLM.calls.Load())
	}
}

func TestResolveRetriesOnSubstituteAfterCallFailure(t *testing.T) {
	gemini := newBackend("gemini", unreachable())
	llama := newBackend("llama3", replies("Respuesta de llama3."))
	reg := newRegistry(t, gemini, llama)
	gemini.down.Store(true)
	m := newManager(t, Options{Registry: reg})

	env := m.Resolve(context.Background(), models.Query{Text: "qué es Java", BackendID: "gemini"})
	if env.BackendUsed != "llama3" || !env.BackendSubstituted {
		t.Fatalf("backend used = %s substituted = %v", env.BackendUsed, env.BackendSubstituted)
	}
	if env.Text != "Respuesta de llama3." {
		t.Fatalf("text = %q", env.Text)
	}
	if b, _ := reg.Get("gemini"); b.Available() {
		t.Fatal("failed backend still marked available after re-probe")
	}
}

func TestResolveSubstitutesWhenFailureReportIsThrottled(t *testing.T) {
	// gemini's daemon answers probes but its completions fail; the startup
	// probe is recent, so the failure report cannot re-probe it.
	gemini := newBackend("gemini", unreachable())
	llm := replies("Respuesta de llama3.")
	reg := newRegistryWith(t, backend.RegistryOptions{MinProbeInterval: 10 * time.Second},
		gemini, newBackend("llama3", llm))
	m := newManager(t, Options{Registry: reg})

	env := m.Resolve(context.Background(), models.Query{Text: "qué es Java", BackendID: "gemini"})
	if env.BackendUsed != "llama3" || !env.BackendSubstituted {
		t.Fatalf("backend used = %s substituted = %v", env.BackendUsed, env.BackendSubstituted)
	}
	if env.Degraded || env.Text != "Respuesta de llama3." {
		t.Fatalf("degraded = %v (%s), text = %q", env.Degraded, env.DegradeReason, env.Text)
	}
	if got := llm.calls.Load(); got != 1 {
		t.Fatalf("llama3 calls = %d", got)
	}
	if got := gemini.probes.Load(); got != 1 {
		t.Fatalf("gemini probes = %d, want only the startup probe", got)
	}
}

func TestResolveExpiredRequestLeavesBackendsAvailable(t *testing.T) {
	llama := newBackend("llama3", waitingLLM{})
	reg := newRegistry(t, llama)
	m := newManager(t, Options{Registry: reg})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	env := m.Resolve(ctx, models.Query{Text: "qué es Java"})
	if env.Text == "" {
		t.Fatal("empty text")
	}
	if b, _ := reg.Get("llama3"); !b.Available() {
		t.Fatal("caller deadline marked a healthy backend unavailable")
	}
	if got := llama.probes.Load(); got != 1 {
		t.Fatalf("probes = %d, want only the startup probe", got)
	}
}

func TestResolveIterationLimitDemotes(t *testing.T) {
	tool := &stubTool{name: "web_search", fn: func(q string) (*agent.ToolResult, error) {
		return &agent.ToolResult{Content: "resultado parcial para " + q}, nil
	}}
	llm := &stubLLM{respond: func(req *agent.CompletionRequest) (string, error) {
		if isReAct(req) {
			return "Acción: web_search\nEntrada de Acción: noticias inteligencia artificial", nil
		}
		return "Respuesta basada en conocimiento general.", nil
	}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := newManager(t, Options{
		Registry: newRegistry(t, newBackend("llama3", llm)),
		Executor: newExecutor(t, 2, tool),
		Metrics:  metrics,
	})

	env := m.Resolve(context.Background(), models.Query{
		Text:            "¿Cuáles son las últimas noticias sobre inteligencia artificial?",
		InternetAllowed: true,
	})
	if env.DispatchPathClassified != models.PathAgent || env.DispatchPathUsed != models.PathSimple {
		t.Fatalf("paths = %s -> %s", env.DispatchPathClassified, env.DispatchPathUsed)
	}
	if !env.Degraded || env.DegradeReason != ReasonIterationLimit {
		t.Fatalf("degraded = %v reason = %q", env.Degraded, env.DegradeReason)
	}
	if want := es.iterationLimit + "Respuesta basada en conocimiento general."; env.Text != want {
		t.Fatalf("text = %q, want %q", env.Text, want)
	}
	if env.Trace == nil || env.Trace.TerminalReason != models.TerminalIterationLimit || len(env.Trace.Steps) != 2 {
		t.Fatalf("trace = %+v", env.Trace)
	}
	if got := testutil.ToFloat64(metrics.Demotions.WithLabelValues("agent", "simple", ReasonIterationLimit)); got != 1 {
		t.Fatalf("demotions = %v", got)
	}
	if got := testutil.ToFloat64(metrics.RequestCounter.WithLabelValues("simple", "true")); got != 1 {
		t.Fatalf("requests = %v", got)
	}
}

func TestResolveNoAcceptableResultGivesGuidance(t *testing.T) {
	source := &stubSource{name: "duckduckgo", respond: func(string) (string, error) { return "sin resultados", nil }}
	var guidanceCalls atomic.Int32
	llm := &stubLLM{respond: func(req *agent.CompletionRequest) (string, error) {
		if req.System == es.guidanceSystem {
			guidanceCalls.Add(1)
			return "No tengo datos actuales. Consulta CoinMarketCap para el precio del Bitcoin.", nil
		}
		return "", errors.New("unexpected prompt")
	}}
	m := newManager(t, Options{
		Registry: newRegistry(t, newBackend("llama3", llm)),
		Search:   newAggregator(source),
	})

	env := m.Resolve(context.Background(), models.Query{Text: "precio actual bitcoin", Mode: models.ModeSearch, InternetAllowed: true})
	if env.DispatchPathClassified != models.PathSearch || env.DispatchPathUsed != models.PathSimple {
		t.Fatalf("paths = %s -> %s", env.DispatchPathClassified, env.DispatchPathUsed)
	}
	if env.DegradeReason != ReasonNoAcceptableResult || !env.Degraded {
		t.Fatalf("reason = %q", env.DegradeReason)
	}
	if !strings.Contains(env.Text, "CoinMarketCap") || guidanceCalls.Load() != 1 {
		t.Fatalf("text = %q after %d guidance calls", env.Text, guidanceCalls.Load())
	}
	if len(env.SearchAttempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(env.SearchAttempts))
	}
	for _, at := range env.SearchAttempts {
		if at.Accepted || at.RejectionReason == "" {
			t.Fatalf("attempt = %+v", at)
		}
	}
}

func TestResolveSearchSummarizesAcceptedResult(t *testing.T) {
	const result = "Java es un lenguaje de programación creado por Sun Microsystems en 1995."
	source := &stubSource{name: "searxng", respond: func(string) (string, error) { return result, nil }}
	var user string
	llm := &stubLLM{respond: func(req *agent.CompletionRequest) (string, error) {
		if req.System != es.searchSystem {
			return "", errors.New("unexpected prompt")
		}
		user = userText(req)
		return "Java fue creado por Sun Microsystems en 1995.", nil
	}}
	m := newManager(t, Options{
		Registry: newRegistry(t, newBackend("llama3", llm)),
		Search:   newAggregator(source),
	})

	env := m.Resolve(context.Background(), models.Query{Text: "qué es Java", Mode: models.ModeSearch, InternetAllowed: true})
	if env.DispatchPathUsed != models.PathSearch || env.Degraded {
		t.Fatalf("path = %s degraded = %v", env.DispatchPathUsed, env.Degraded)
	}
	if env.Text != "Java fue creado por Sun Microsystems en 1995." {
		t.Fatalf("text = %q", env.Text)
	}
	if !strings.Contains(user, result) || !strings.HasPrefix(user, "Pregunta: qué es Java") {
		t.Fatalf("summary prompt = %q", user)
	}
	if len(env.SearchAttempts) != 1 || !env.SearchAttempts[0].Accepted || env.Trace != nil {
		t.Fatalf("envelope = %+v", env)
	}
}

const quitoJ1 = `{
  "current_condition": [{
    "FeelsLikeC": "13", "humidity": "72", "temp_C": "14",
    "weatherDesc": [{"value": "Partly cloudy"}],
    "lang_es": [{"value": "Parcialmente nublado"}],
    "winddir16Point": "NE", "windspeedKmph": "9",
    "localObsDateTime": "2026-10-17 10:00 AM"
  }],
  "nearest_area": [{"areaName": [{"value": "Quito"}], "country": [{"value": "Ecuador"}]}]
}`

func newWeatherClient(t *testing.T, status int, body string) *weather.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/Quito") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return weather.NewClient(weather.Config{BaseURL: srv.URL, DefaultCity: "Quito", Lang: "es"})
}

func TestResolveWeather(t *testing.T) {
	q := models.Query{Text: "¿Cuál es el clima actual en Quito, Ecuador?", InternetAllowed: true}

	t.Run("phrased by backend", func(t *testing.T) {
		llm := &stubLLM{respond: func(req *agent.CompletionRequest) (string, error) {
			if req.System != es.weatherSystem || !strings.Contains(userText(req), "14°C") {
				return "", errors.New("unexpected prompt")
			}
			return "En Quito hay 14°C y está parcialmente nublado.", nil
		}}
		m := newManager(t, Options{
			Registry: newRegistry(t, newBackend("llama3", llm)),
			Weather:  newWeatherClient(t, http.StatusOK, quitoJ1),
		})
		env := m.Resolve(context.Background(), q)
		if env.DispatchPathUsed != models.PathWeather || env.Degraded {
			t.Fatalf("path = %s degraded = %v (%s)", env.DispatchPathUsed, env.Degraded, env.DegradeReason)
		}
		if env.Text != "En Quito hay 14°C y está parcialmente nublado." {
			t.Fatalf("text = %q", env.Text)
		}
	})

	t.Run("formatted report when backend fails", func(t *testing.T) {
		m := newManager(t, Options{
			Registry: newRegistry(t, newBackend("llama3", unreachable())),
			Weather:  newWeatherClient(t, http.StatusOK, quitoJ1),
		})
		env := m.Resolve(context.Background(), q)
		if env.DispatchPathUsed != models.PathWeather {
			t.Fatalf("path = %s", env.DispatchPathUsed)
		}
		if !strings.HasPrefix(env.Text, "Clima en Quito, Ecuador:") {
			t.Fatalf("text = %q", env.Text)
		}
	})

	t.Run("lookup failure demotes", func(t *testing.T) {
		m := newManager(t, Options{
			Registry: newRegistry(t, newBackend("llama3", replies("Normalmente Quito tiene un clima templado."))),
			Weather:  newWeatherClient(t, http.StatusServiceUnavailable, "down"),
		})
		env := m.Resolve(context.Background(), q)
		if env.DispatchPathUsed != models.PathSimple || env.DegradeReason != ReasonWeatherLookup {
			t.Fatalf("path = %s reason = %q", env.DispatchPathUsed, env.DegradeReason)
		}
		if env.Text != "Normalmente Quito tiene un clima templado." {
			t.Fatalf("text = %q", env.Text)
		}
	})
}

func TestResolveNeverReturnsEmptyText(t *testing.T) {
	failingTool := &stubTool{name: "web_search", fn: func(string) (*agent.ToolResult, error) {
		return nil, errors.New("network down")
	}}
	failingSource := &stubSource{name: "duckduckgo", respond: func(string) (string, error) {
		return "", errors.New("network down")
	}}

	queries := []models.Query{
		{Text: "qué es Java"},
		{Text: "precio actual bitcoin", InternetAllowed: true},
		{Text: "precio actual bitcoin", Mode: models.ModeSearch, InternetAllowed: true},
		{Text: "¿Cuál es el clima actual en Quito, Ecuador?", InternetAllowed: true},
	}
	for _, q := range queries {
		t.Run(q.Text+"/"+string(q.Mode), func(t *testing.T) {
			m := newManager(t, Options{
				Registry: newRegistry(t, newBackend("llama3", unreachable()), newBackend("gemini", unreachable())),
				Executor: newExecutor(t, 3, failingTool),
				Search:   newAggregator(failingSource),
				Weather:  newWeatherClient(t, http.StatusInternalServerError, "boom"),
			})
			env := m.Resolve(context.Background(), q)
			if strings.TrimSpace(env.Text) == "" {
				t.Fatal("empty text")
			}
			if !env.Degraded || env.DegradeReason != ReasonStaticGuidance {
				t.Fatalf("degraded = %v reason = %q", env.Degraded, env.DegradeReason)
			}
			if env.Text != es.staticText(q.Text) {
				t.Fatalf("text = %q", env.Text)
			}
		})
	}
}

func TestResolveProtocolErrorOnSimpleIsStatic(t *testing.T) {
	llm := &stubLLM{respond: func(*agent.CompletionRequest) (string, error) {
		return "", &providers.ProviderError{Reason: providers.FailoverContentFilter, Provider: "stub", Message: "blocked"}
	}}
	otherLLM := replies("no debería usarse")
	m := newManager(t, Options{Registry: newRegistry(t, newBackend("llama3", llm), newBackend("gemini", otherLLM))})

	env := m.Resolve(context.Background(), models.Query{Text: "qué es Java"})
	if env.DegradeReason != ReasonStaticGuidance || env.BackendUsed != "llama3" {
		t.Fatalf("envelope = %+v", env)
	}
	if otherLLM.calls.Load() != 0 {
		t.Fatal("protocol errors must not trigger a substitute backend")
	}
	if llm.calls.Load() != 1 {
		t.Fatalf("calls = %d", llm.calls.Load())
	}
}

func TestResolveMissingCollaboratorDemotes(t *testing.T) {
	m := newManager(t, Options{Registry: newRegistry(t, newBackend("llama3", replies("Respuesta directa.")))})

	env := m.Resolve(context.Background(), models.Query{Text: "qué es Java", Mode: models.ModeAgent, InternetAllowed: true})
	if env.DispatchPathUsed != models.PathSimple || env.DegradeReason != ReasonStrategyError {
		t.Fatalf("path = %s reason = %q", env.DispatchPathUsed, env.DegradeReason)
	}
	if env.Text != "Respuesta directa." || env.Trace != nil {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestNewManagerRequiresRegistry(t *testing.T) {
	if _, err := NewManager(Options{}); err == nil {
		t.Fatal("expected error without registry")
	}
}
