package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RegistryOptions configures probing.
type RegistryOptions struct {
	// ProbeWithCompletion additionally requires a one-token completion from
	// cloud backends during scheduled and startup probes.
	ProbeWithCompletion bool

	// MinProbeInterval throttles ReportFailure re-probes per backend.
	MinProbeInterval time.Duration

	// ProbeTimeout bounds each probe. Default: 5s.
	ProbeTimeout time.Duration

	Logger *slog.Logger
}

// Registry owns the backends. The set and order are fixed at construction;
// availability flags change only through probe, which holds mu.
type Registry struct {
	backends []*Backend
	byID     map[string]*Backend
	opts     RegistryOptions
	logger   *slog.Logger

	mu        sync.Mutex
	lastProbe map[string]time.Time
	now       func() time.Time

	cronMu sync.Mutex
	cron   *cron.Cron
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Backend     *Backend
	Requested   string
	Substituted bool
}

// NewRegistry probes every backend in order. It returns an error wrapping
// ErrNoBackendsConfigured when none is available.
func NewRegistry(ctx context.Context, backends []*Backend, opts RegistryOptions) (*Registry, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackendsConfigured
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	r := &Registry{
		backends:  append([]*Backend(nil), backends...),
		byID:      make(map[string]*Backend, len(backends)),
		opts:      opts,
		logger:    opts.Logger,
		lastProbe: make(map[string]time.Time, len(backends)),
		now:       time.Now,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	for _, b := range backends {
		if _, dup := r.byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate backend id %q", b.ID)
		}
		r.byID[b.ID] = b
	}

	r.Refresh(ctx)
	if len(r.ListAvailable()) == 0 {
		ids := make([]string, 0, len(backends))
		for _, b := range backends {
			ids = append(ids, b.ID)
		}
		return nil, fmt.Errorf("%w: probed %s", ErrNoBackendsConfigured, strings.Join(ids, ", "))
	}
	return r, nil
}

// Get returns the backend registered under id.
func (r *Registry) Get(id string) (*Backend, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// All returns every backend in registration order.
func (r *Registry) All() []*Backend {
	return append([]*Backend(nil), r.backends...)
}

// ListAvailable returns available backends in registration order.
func (r *Registry) ListAvailable() []*Backend {
	var out []*Backend
	for _, b := range r.backends {
		if b.Available() {
			out = append(out, b)
		}
	}
	return out
}

// Resolve returns the requested backend when available, otherwise the first
// available one. With nothing available it returns the first registered
// backend so the call fails downstream. It never returns a nil Backend.
func (r *Registry) Resolve(requested string) Resolution {
	if b, ok := r.byID[requested]; ok && b.Available() {
		return Resolution{Backend: b, Requested: requested}
	}
	chosen := r.backends[0]
	if available := r.ListAvailable(); len(available) > 0 {
		chosen = available[0]
	}
	return Resolution{
		Backend:     chosen,
		Requested:   requested,
		Substituted: requested != "" && requested != chosen.ID,
	}
}

// ReportFailure re-probes a backend after a failed call, at most once per
// MinProbeInterval. The re-probe includes a completion for cloud backends
// and runs detached from ctx's cancellation, bounded by ProbeTimeout.
// probed is false when the report was throttled or ctx was already done;
// available is then the unchanged flag and says nothing about the failure.
func (r *Registry) ReportFailure(ctx context.Context, id string) (available, probed bool) {
	b, ok := r.byID[id]
	if !ok {
		return false, false
	}
	// The caller gave up; its failure is not evidence about the backend.
	if ctx.Err() != nil {
		return b.Available(), false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastProbe[id]; ok && r.now().Sub(last) < r.opts.MinProbeInterval {
		return b.Available(), false
	}
	return r.probeLocked(context.WithoutCancel(ctx), b, true), true
}

// Refresh re-probes every backend in registration order.
func (r *Registry) Refresh(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.backends {
		r.probeLocked(ctx, b, r.opts.ProbeWithCompletion)
	}
}

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// StartRefresher runs Refresh on schedule, e.g. "@every 1m". An empty
// schedule or "off" does nothing.
func (r *Registry) StartRefresher(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" || schedule == "off" {
		return nil
	}
	r.cronMu.Lock()
	defer r.cronMu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("refresher already running")
	}
	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(schedule, func() {
		timeout := r.opts.ProbeTimeout * time.Duration(len(r.backends)+1)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		r.Refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts the refresher and waits for a running refresh to finish.
func (r *Registry) Stop() {
	r.cronMu.Lock()
	c := r.cron
	r.cron = nil
	r.cronMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (r *Registry) probeLocked(ctx context.Context, b *Backend, withCompletion bool) bool {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
	defer cancel()

	err := b.prober.Probe(ctx)
	if err == nil && withCompletion && !b.Kind.IsLocal() {
		err = b.ping(ctx)
	}
	r.lastProbe[b.ID] = r.now()

	was := b.Available()
	b.setAvailable(err == nil)
	switch {
	case err != nil && was:
		r.logger.Warn("backend became unavailable", "backend", b.ID, "kind", b.Kind.String(), "error", err)
	case err != nil:
		r.logger.Debug("backend probe failed", "backend", b.ID, "kind", b.Kind.String(), "error", err)
	case !was:
		r.logger.Info("backend available", "backend", b.ID, "kind", b.Kind.String(), "model", b.Model)
	}
	return err == nil
}
