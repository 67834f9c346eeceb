package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const quitoJ1 = `{
  "current_condition": [{
    "FeelsLikeC": "13",
    "humidity": "72",
    "temp_C": "14",
    "weatherDesc": [{"value": "Partly cloudy"}],
    "lang_es": [{"value": "Parcialmente nublado"}],
    "winddir16Point": "NE",
    "windspeedKmph": "9",
    "localObsDateTime": "2024-05-01 10:00 AM",
    "observation_time": "03:00 PM"
  }],
  "nearest_area": [{
    "areaName": [{"value": "Quito"}],
    "country": [{"value": "Ecuador"}]
  }]
}`

func newWttr(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var lastURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastURL = r.URL.String()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastURL
}

func TestExtractCity(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"clima en Quito, Ecuador", "Quito"},
		{"¿Cuál es el clima actual en Quito, Ecuador?", "Quito"},
		{"weather in London today", "London"},
		{"¿Qué tiempo hace en San José?", "San José"},
		{"Pronóstico para Bogotá", "Bogotá"},
		{"temperature in Paris right now", "Paris"},
		{"clima en la ciudad de México hoy", "México"},
		{"Quito", "Quito"},
		{"Buenos Aires, Argentina", "Buenos Aires"},
		{"¿Va a llover?", "Quito"},
		{"temperatura en este momento", "Quito"},
		{"¿Qué clima hace en este momento en Madrid?", "Madrid"},
		{"weather in the morning", "Quito"},
		{"clima en la mañana en Lima", "Lima"},
		{"clima", "Quito"},
		{"", "Quito"},
	}
	for _, tt := range tests {
		if got := ExtractCity(tt.text, "Quito"); got != tt.want {
			t.Errorf("ExtractCity(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	srv, lastURL := newWttr(t, http.StatusOK, quitoJ1)
	client := NewClient(Config{BaseURL: srv.URL, Lang: "es"})

	report, err := client.Lookup(context.Background(), "Quito")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !strings.Contains(*lastURL, "/Quito?") || !strings.Contains(*lastURL, "format=j1") || !strings.Contains(*lastURL, "lang=es") {
		t.Errorf("request url = %q", *lastURL)
	}
	want := Report{
		City: "Quito", Country: "Ecuador", TemperatureC: 14, FeelsLikeC: 13,
		Description: "Parcialmente nublado", Humidity: 72, WindSpeedKmph: 9,
		WindDirection: "NE", ObservedAt: "2024-05-01 10:00 AM",
	}
	if *report != want {
		t.Fatalf("report = %+v\nwant %+v", *report, want)
	}
	text := report.Format("es")
	for _, part := range []string{"Quito, Ecuador", "14°C", "humedad 72%", "9 km/h NE"} {
		if !strings.Contains(text, part) {
			t.Errorf("formatted report %q missing %q", text, part)
		}
	}
}

func TestLookupEnglishDescription(t *testing.T) {
	srv, _ := newWttr(t, http.StatusOK, quitoJ1)
	client := NewClient(Config{BaseURL: srv.URL, Lang: "en"})
	report, err := client.Lookup(context.Background(), "Quito")
	if err != nil {
		t.Fatal(err)
	}
	if report.Description != "Partly cloudy" {
		t.Fatalf("description = %q", report.Description)
	}
	if !strings.HasPrefix(report.Format("en"), "Weather in Quito, Ecuador") {
		t.Fatalf("format = %q", report.Format("en"))
	}
}

func TestLookupErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unknown location", http.StatusNotFound, "Unknown location; please try ~Atlantis"},
		{"not json", http.StatusOK, "<html>busy</html>"},
		{"no conditions", http.StatusOK, `{"current_condition": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newWttr(t, tt.status, tt.body)
			client := NewClient(Config{BaseURL: srv.URL})
			_, err := client.Lookup(context.Background(), "Atlantis")
			var lookupErr *LookupError
			if !errors.As(err, &lookupErr) {
				t.Fatalf("err = %v, want *LookupError", err)
			}
			if lookupErr.City != "Atlantis" || lookupErr.Message == "" || lookupErr.Cause == nil {
				t.Fatalf("lookup error = %+v", lookupErr)
			}
		})
	}
}

func TestLookupUsesDefaultCity(t *testing.T) {
	srv, lastURL := newWttr(t, http.StatusOK, quitoJ1)
	client := NewClient(Config{BaseURL: srv.URL, DefaultCity: "Quito"})
	if _, err := client.Lookup(context.Background(), " "); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(*lastURL, "/Quito?") {
		t.Fatalf("url = %q", *lastURL)
	}
}

func TestTool(t *testing.T) {
	srv, lastURL := newWttr(t, http.StatusOK, quitoJ1)
	tool := NewTool(NewClient(Config{BaseURL: srv.URL, DefaultCity: "Lima"}))

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"city":"clima en Quito, Ecuador"}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || !strings.Contains(res.Content, "Parcialmente nublado") {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(*lastURL, "/Quito?") {
		t.Fatalf("url = %q", *lastURL)
	}

	var schema map[string]any
	if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if req, _ := schema["required"].([]any); len(req) != 1 || req[0] != "city" {
		t.Fatalf("required = %v", schema["required"])
	}
}

func TestToolLookupFailureIsObservation(t *testing.T) {
	srv, _ := newWttr(t, http.StatusServiceUnavailable, "down")
	tool := NewTool(NewClient(Config{BaseURL: srv.URL, Lang: "en"}))
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"city":"Oslo"}`))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "Oslo") {
		t.Fatalf("result = %+v", res)
	}
}
