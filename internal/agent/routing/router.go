package routing

import (
	"strings"

	"github.com/haasonsaas/pathfinder/internal/backend"
	"github.com/haasonsaas/pathfinder/internal/config"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// Backends is the registry view the router needs.
type Backends interface {
	Get(id string) (*backend.Backend, bool)
	ListAvailable() []*backend.Backend
}

// Router picks a backend id for queries that do not name one.
type Router struct {
	defaultBackend string
	rules          []Rule
	preferLocal    bool
	backends       Backends
}

// Rule routes matching questions to a backend.
type Rule struct {
	Name    string
	Match   Match
	Backend string
}

// Match defines rule matching conditions. When both are set, a pattern and
// a tag must each match.
type Match struct {
	Patterns []string
	Tags     []string
}

// Config configures a Router.
type Config struct {
	DefaultBackend string
	PreferLocal    bool
	Rules          []Rule
}

// ConfigFrom converts the file configuration.
func ConfigFrom(cfg *config.Config) Config {
	rules := make([]Rule, 0, len(cfg.Routing.Rules))
	for _, r := range cfg.Routing.Rules {
		rules = append(rules, Rule{
			Name:    r.Name,
			Match:   Match{Patterns: r.Match.Patterns, Tags: r.Match.Tags},
			Backend: r.Backend,
		})
	}
	return Config{
		DefaultBackend: cfg.DefaultBackend,
		PreferLocal:    cfg.Routing.PreferLocal,
		Rules:          rules,
	}
}

// NewRouter creates a new Router.
func NewRouter(cfg Config, backends Backends) *Router {
	return &Router{
		defaultBackend: strings.TrimSpace(cfg.DefaultBackend),
		rules:          cfg.Rules,
		preferLocal:    cfg.PreferLocal,
		backends:       backends,
	}
}

// Select returns the backend id to request for q. An explicit id wins.
// Otherwise: the first matching rule whose backend is available, then the
// first available local backend when PreferLocal is set, then the default
// backend if available, then the first available backend. It returns ""
// when nothing is available; the registry then resolves a fallback.
func (r *Router) Select(q models.Query) string {
	if id := strings.TrimSpace(q.BackendID); id != "" {
		return id
	}

	if len(r.rules) > 0 {
		tags := Tags(q.Text)
		folded := Fold(q.Text)
		for _, rule := range r.rules {
			if ruleMatches(rule.Match, tags, folded) && r.available(rule.Backend) {
				return rule.Backend
			}
		}
	}

	available := r.backends.ListAvailable()
	if r.preferLocal {
		for _, b := range available {
			if b.Kind.IsLocal() {
				return b.ID
			}
		}
	}
	if r.defaultBackend != "" && r.available(r.defaultBackend) {
		return r.defaultBackend
	}
	if len(available) > 0 {
		return available[0].ID
	}
	return ""
}

func (r *Router) available(id string) bool {
	b, ok := r.backends.Get(id)
	return ok && b.Available()
}

func ruleMatches(match Match, tags []string, folded string) bool {
	if len(match.Patterns) == 0 && len(match.Tags) == 0 {
		return false
	}

	if len(match.Patterns) > 0 {
		patternMatch := false
		for _, pattern := range match.Patterns {
			p := Fold(strings.TrimSpace(pattern))
			if p == "" {
				continue
			}
			if strings.Contains(folded, p) {
				patternMatch = true
				break
			}
		}
		if !patternMatch {
			return false
		}
	}

	if len(match.Tags) > 0 {
		for _, tag := range match.Tags {
			if containsTag(tags, tag) {
				return true
			}
		}
		return false
	}

	return true
}

func containsTag(tags []string, tag string) bool {
	needle := strings.ToLower(strings.TrimSpace(tag))
	if needle == "" {
		return false
	}
	for _, t := range tags {
		if strings.EqualFold(t, needle) {
			return true
		}
	}
	return false
}
