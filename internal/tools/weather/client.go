// Package weather looks up current conditions from wttr.in and exposes them
// to the agent as the weather tool.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config configures a Client.
type Config struct {
	// BaseURL defaults to https://wttr.in.
	BaseURL     string
	DefaultCity string
	// Lang selects description and message language ("es" or "en").
	Lang    string
	Timeout time.Duration
}

// Report is the current weather for a city.
type Report struct {
	City          string  `json:"city"`
	Country       string  `json:"country,omitempty"`
	TemperatureC  float64 `json:"temperatureC"`
	FeelsLikeC    float64 `json:"feelsLikeC"`
	Description   string  `json:"description"`
	Humidity      int     `json:"humidity"`
	WindSpeedKmph int     `json:"windSpeedKmph"`
	WindDirection string  `json:"windDirection"`
	ObservedAt    string  `json:"observedAt,omitempty"`
}

// Format renders the report as one sentence in lang.
func (r *Report) Format(lang string) string {
	place := r.City
	if r.Country != "" && !strings.EqualFold(r.Country, r.City) {
		place += ", " + r.Country
	}
	var b strings.Builder
	if lang == "en" {
		fmt.Fprintf(&b, "Weather in %s: %s, %s°C (feels like %s°C), humidity %d%%, wind %d km/h %s.",
			place, r.Description, formatTemp(r.TemperatureC), formatTemp(r.FeelsLikeC), r.Humidity, r.WindSpeedKmph, r.WindDirection)
		if r.ObservedAt != "" {
			fmt.Fprintf(&b, " Observed: %s.", r.ObservedAt)
		}
		return b.String()
	}
	fmt.Fprintf(&b, "Clima en %s: %s, %s°C (sensación térmica %s°C), humedad %d%%, viento %d km/h %s.",
		place, r.Description, formatTemp(r.TemperatureC), formatTemp(r.FeelsLikeC), r.Humidity, r.WindSpeedKmph, r.WindDirection)
	if r.ObservedAt != "" {
		fmt.Fprintf(&b, " Observado: %s.", r.ObservedAt)
	}
	return b.String()
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LookupError is a failed weather lookup. Message is safe to show to users.
type LookupError struct {
	City    string
	Cause   error
	Message string
}

func (e *LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("weather lookup for %q: %v", e.City, e.Cause)
	}
	return fmt.Sprintf("weather lookup for %q failed", e.City)
}

func (e *LookupError) Unwrap() error { return e.Cause }

// Client queries wttr.in's j1 JSON format.
type Client struct {
	baseURL     string
	defaultCity string
	lang        string
	httpClient  *http.Client
}

// NewClient creates a client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://wttr.in"
	}
	if cfg.Lang == "" {
		cfg.Lang = "es"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		defaultCity: cfg.DefaultCity,
		lang:        cfg.Lang,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// DefaultCity is used when a question names no city.
func (c *Client) DefaultCity() string { return c.defaultCity }

// Lang is the configured language.
func (c *Client) Lang() string { return c.lang }

type valueList []struct {
	Value string `json:"value"`
}

func (v valueList) first() string {
	if len(v) == 0 {
		return ""
	}
	return strings.TrimSpace(v[0].Value)
}

type j1Response struct {
	CurrentCondition []json.RawMessage `json:"current_condition"`
	NearestArea      []struct {
		AreaName valueList `json:"areaName"`
		Country  valueList `json:"country"`
	} `json:"nearest_area"`
}

type j1Condition struct {
	TempC            string    `json:"temp_C"`
	FeelsLikeC       string    `json:"FeelsLikeC"`
	Humidity         string    `json:"humidity"`
	WindSpeedKmph    string    `json:"windspeedKmph"`
	WindDir16Point   string    `json:"winddir16Point"`
	WeatherDesc      valueList `json:"weatherDesc"`
	LocalObsDateTime string    `json:"localObsDateTime"`
	ObservationTime  string    `json:"observation_time"`
}

// Lookup fetches current conditions for city. Every failure is a *LookupError.
func (c *Client) Lookup(ctx context.Context, city string) (*Report, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		city = c.defaultCity
	}
	if city == "" {
		return nil, c.lookupError(city, fmt.Errorf("no city given"))
	}

	q := url.Values{}
	q.Set("format", "j1")
	q.Set("lang", c.lang)
	endpoint := c.baseURL + "/" + url.PathEscape(city) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, c.lookupError(city, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pathfinder/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.lookupError(city, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, c.lookupError(city, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.lookupError(city, fmt.Errorf("wttr.in returned status %d", resp.StatusCode))
	}

	var parsed j1Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, c.lookupError(city, fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.CurrentCondition) == 0 {
		return nil, c.lookupError(city, fmt.Errorf("no current conditions"))
	}

	var cond j1Condition
	if err := json.Unmarshal(parsed.CurrentCondition[0], &cond); err != nil {
		return nil, c.lookupError(city, fmt.Errorf("parse current conditions: %w", err))
	}

	report := &Report{
		City:          city,
		TemperatureC:  atof(cond.TempC),
		FeelsLikeC:    atof(cond.FeelsLikeC),
		Humidity:      atoi(cond.Humidity),
		WindSpeedKmph: atoi(cond.WindSpeedKmph),
		WindDirection: cond.WindDir16Point,
		Description:   c.description(parsed.CurrentCondition[0], cond),
		ObservedAt:    cond.LocalObsDateTime,
	}
	if report.ObservedAt == "" && cond.ObservationTime != "" {
		report.ObservedAt = cond.ObservationTime + " UTC"
	}
	if len(parsed.NearestArea) > 0 {
		if name := parsed.NearestArea[0].AreaName.first(); name != "" {
			report.City = name
		}
		report.Country = parsed.NearestArea[0].Country.first()
	}
	return report, nil
}

// description prefers the localized lang_xx field wttr.in adds for non-English
// requests.
func (c *Client) description(raw json.RawMessage, cond j1Condition) string {
	if c.lang != "en" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err == nil {
			var localized valueList
			if data, ok := fields["lang_"+c.lang]; ok && json.Unmarshal(data, &localized) == nil {
				if v := localized.first(); v != "" {
					return v
				}
			}
		}
	}
	return cond.WeatherDesc.first()
}

func (c *Client) lookupError(city string, cause error) *LookupError {
	msg := fmt.Sprintf("No pude obtener el clima de %s en este momento.", city)
	if c.lang == "en" {
		msg = fmt.Sprintf("Could not get the weather for %s right now.", city)
	}
	if city == "" {
		msg = "No se indicó una ciudad para consultar el clima."
		if c.lang == "en" {
			msg = "No city was given for the weather lookup."
		}
	}
	return &LookupError{City: city, Cause: cause, Message: msg}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
