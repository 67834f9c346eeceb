package orchestrator

import (
	"strings"
	"time"

	"github.com/haasonsaas/pathfinder/pkg/models"
)

// Draft is the mutable, request-scoped state of an answer before it is
// frozen into an envelope.
type Draft struct {
	Text             string
	Classified       models.DispatchPath
	Used             models.DispatchPath
	BackendUsed      string
	BackendRequested string
	Substituted      bool
	Trace            *models.AgentTrace
	SearchAttempts   []models.SearchAttempt
	Degraded         bool
	DegradeReason    string
	StartedAt        time.Time
}

// Composer turns drafts into immutable envelopes.
type Composer struct {
	now        func() time.Time
	staticText func() string
}

// NewComposer creates a composer. staticText supplies the text used when a
// draft's text is blank.
func NewComposer(now func() time.Time, staticText func() string) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{now: now, staticText: staticText}
}

// Compose stamps timing in UTC, substitutes static text for blank text and
// copies every slice so the envelope shares no memory with the draft.
func (c *Composer) Compose(d Draft) models.ResponseEnvelope {
	end := c.now().UTC()
	start := d.StartedAt.UTC()
	if d.StartedAt.IsZero() {
		start = end
	}

	text := strings.TrimSpace(d.Text)
	degraded := d.Degraded || d.Used != d.Classified
	reason := d.DegradeReason
	if text == "" {
		if c.staticText != nil {
			text = c.staticText()
		}
		degraded = true
		if reason == "" {
			reason = ReasonEmptyResponse
		}
	}
	if !degraded {
		reason = ""
	}

	var attempts []models.SearchAttempt
	if len(d.SearchAttempts) > 0 {
		attempts = append([]models.SearchAttempt(nil), d.SearchAttempts...)
	}

	return models.ResponseEnvelope{
		Text:                   text,
		DispatchPathUsed:       d.Used,
		DispatchPathClassified: d.Classified,
		BackendUsed:            d.BackendUsed,
		BackendRequested:       d.BackendRequested,
		BackendSubstituted:     d.Substituted,
		Trace:                  d.Trace.Clone(),
		SearchAttempts:         attempts,
		Timing: models.Timing{
			StartedAt:  start,
			EndedAt:    end,
			DurationMs: end.Sub(start).Milliseconds(),
		},
		Degraded:      degraded,
		DegradeReason: reason,
	}
}
