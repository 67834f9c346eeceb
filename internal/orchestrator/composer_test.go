package orchestrator

import (
	"testing"
	"time"

	"github.com/haasonsaas/pathfinder/pkg/models"
)

func TestComposeStampsTimingInUTC(t *testing.T) {
	quito := time.FixedZone("ECT", -5*3600)
	start := time.Date(2026, time.October, 17, 7, 0, 0, 0, quito)
	end := start.Add(1500 * time.Millisecond)
	c := NewComposer(func() time.Time { return end }, nil)

	env := c.Compose(Draft{Text: "hola", Classified: models.PathSimple, Used: models.PathSimple, StartedAt: start})
	if env.Timing.StartedAt.Location() != time.UTC || env.Timing.EndedAt.Location() != time.UTC {
		t.Fatalf("timing not UTC: %+v", env.Timing)
	}
	if env.Timing.DurationMs != 1500 {
		t.Fatalf("duration = %d", env.Timing.DurationMs)
	}
	if env.Degraded || env.DegradeReason != "" {
		t.Fatalf("degraded = %v (%q)", env.Degraded, env.DegradeReason)
	}
}

func TestComposeBlankTextUsesStatic(t *testing.T) {
	c := NewComposer(fixedNow, func() string { return "texto estático" })

	env := c.Compose(Draft{Text: "  \n", Classified: models.PathAgent, Used: models.PathAgent})
	if env.Text != "texto estático" || !env.Degraded || env.DegradeReason != ReasonEmptyResponse {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestComposeDegradedWhenPathDiffers(t *testing.T) {
	c := NewComposer(fixedNow, nil)

	env := c.Compose(Draft{Text: "ok", Classified: models.PathAgent, Used: models.PathSimple, DegradeReason: ReasonTimeLimit})
	if !env.Degraded || env.DegradeReason != ReasonTimeLimit {
		t.Fatalf("envelope = %+v", env)
	}

	env = c.Compose(Draft{Text: "ok", Classified: models.PathSimple, Used: models.PathSimple, DegradeReason: "stale"})
	if env.Degraded || env.DegradeReason != "" {
		t.Fatalf("reason kept on healthy envelope: %+v", env)
	}
}

func TestComposeCopiesSlices(t *testing.T) {
	trace := &models.AgentTrace{Steps: []models.AgentStep{{Index: 1, Tool: "web_search"}}, Iterations: 1}
	attempts := []models.SearchAttempt{{Variant: "v", Source: "duckduckgo", Accepted: true}}
	c := NewComposer(fixedNow, nil)

	env := c.Compose(Draft{Text: "ok", Classified: models.PathAgent, Used: models.PathAgent, Trace: trace, SearchAttempts: attempts})
	trace.Steps[0].Tool = "mutated"
	attempts[0].Source = "mutated"
	if env.Trace.Steps[0].Tool != "web_search" || env.SearchAttempts[0].Source != "duckduckgo" {
		t.Fatalf("envelope aliases draft: %+v", env)
	}
}
