// Package router keeps every provider adapter and exposes a uniform
// generate/test contract over them.
package router

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/quiz"
)

// Router selects among registered adapters and tracks per-provider
// routing statistics. Adapters are process-lifetime singletons owned by
// the router.
type Router struct {
	mu       sync.Mutex
	adapters map[string]llm.Provider
	order    []string
	current  string
	fallback string // default provider from configuration
	loadErrs map[string]string
	stats    map[string]*Stats
	strategy Strategy
	rrCursor int
}

// Stats counts routed requests per provider.
type Stats struct {
	Requests  int           `json:"requests"`
	Failures  int           `json:"failures"`
	TotalTime time.Duration `json:"-"`
	MeanMs    float64       `json:"meanLatencyMs"`
}

// ProviderInfo describes one known adapter for listings.
type ProviderInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Configured  bool     `json:"configured"`
	Current     bool     `json:"current"`
	Models      []string `json:"supportedModels"`
	ActiveModel string   `json:"activeModel,omitempty"`
	LoadError   string   `json:"loadError,omitempty"`
}

// New builds a router over the given adapters. defaultProvider names
// the preferred adapter; when it is absent or unconfigured the first
// configured adapter becomes current.
func New(defaultProvider string, adapters ...llm.Provider) *Router {
	r := &Router{
		adapters: make(map[string]llm.Provider, len(adapters)),
		loadErrs: make(map[string]string),
		stats:    make(map[string]*Stats),
		strategy: StrategyPreferred,
		fallback: defaultProvider,
	}
	for _, a := range adapters {
		r.register(a.Name(), a)
	}
	r.current = r.pickInitial(defaultProvider)
	return r
}

func (r *Router) register(name string, p llm.Provider) {
	r.adapters[name] = p
	r.order = append(r.order, name)
	r.stats[name] = &Stats{}
}

// RecordLoadError notes an adapter that failed to initialize so that
// listings can still report it.
func (r *Router) RecordLoadError(name, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadErrs[name] = msg
}

func (r *Router) pickInitial(preferred string) string {
	if p, ok := r.adapters[preferred]; ok && p.IsConfigured() {
		return preferred
	}
	for _, name := range r.order {
		if r.adapters[name].IsConfigured() {
			return name
		}
	}
	return ""
}

// Current returns the current provider name, or "".
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Provider returns a registered adapter by name.
func (r *Router) Provider(name string) (llm.Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.adapters[name]
	return p, ok
}

// Generate delegates to options.Provider when set and configured, else
// to the current provider. Fails when no adapter is usable.
func (r *Router) Generate(ctx context.Context, text string, opts quiz.Options) (*quiz.Questionset, error) {
	p, err := r.Select(opts)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, text, opts)
}

// Select resolves the adapter a request with these options would use.
// The returned provider updates the routing counters on every Generate.
func (r *Router) Select(opts quiz.Options) (llm.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if opts.Provider != "" {
		p, ok := r.adapters[opts.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", opts.Provider)
		}
		if !p.IsConfigured() {
			return nil, &llm.ConfigurationError{Provider: opts.Provider, Reason: "not configured"}
		}
		return tracked{Provider: p, router: r}, nil
	}

	name := r.routeLocked()
	if name == "" {
		return nil, &llm.ConfigurationError{Provider: "router", Reason: "no provider configured"}
	}
	return tracked{Provider: r.adapters[name], router: r}, nil
}

// tracked counts every Generate against the routing statistics.
type tracked struct {
	llm.Provider
	router *Router
}

func (t tracked) Generate(ctx context.Context, text string, opts quiz.Options) (*quiz.Questionset, error) {
	start := time.Now()
	qs, err := t.Provider.Generate(ctx, text, opts)
	t.router.record(t.Provider.Name(), time.Since(start), err == nil)
	return qs, err
}

// Scorer returns the adapter used for quality scoring: the named
// provider when set and configured, otherwise the current one (which
// creates a deliberate generator-scores-itself loop; the caller is
// expected to surface that in configuration).
func (r *Router) Scorer(preferred string) (llm.Scorer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if preferred != "" {
		if p, ok := r.adapters[preferred]; ok && p.IsConfigured() {
			if s, ok := p.(llm.Scorer); ok {
				return s, true
			}
		}
	}
	if r.current == "" {
		return nil, false
	}
	if s, ok := r.adapters[r.current].(llm.Scorer); ok {
		return s, true
	}
	return nil, false
}

func (r *Router) record(name string, d time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	if !ok {
		s = &Stats{}
		r.stats[name] = s
	}
	s.Requests++
	if !success {
		s.Failures++
	}
	s.TotalTime += d
	s.MeanMs = float64(s.TotalTime.Milliseconds()) / float64(s.Requests)
}

// Switch makes the named adapter current. Rejected when the adapter is
// absent or unconfigured.
func (r *Router) Switch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.adapters[name]
	if !ok {
		return fmt.Errorf("unknown provider %q", name)
	}
	if !p.IsConfigured() {
		return &llm.ConfigurationError{Provider: name, Reason: "not configured"}
	}
	r.current = name
	return nil
}

// List reports every known adapter, including ones that failed to load.
func (r *Router) List() []ProviderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ProviderInfo, 0, len(r.order)+len(r.loadErrs))
	for _, name := range r.order {
		p := r.adapters[name]
		out = append(out, ProviderInfo{
			Name:        name,
			Description: p.Description(),
			Configured:  p.IsConfigured(),
			Current:     name == r.current,
			Models:      p.SupportedModels(),
			ActiveModel: p.CurrentModel(),
		})
	}

	names := make([]string, 0, len(r.loadErrs))
	for name := range r.loadErrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, ProviderInfo{Name: name, LoadError: r.loadErrs[name]})
	}
	return out
}

// TestAll probes every adapter in parallel. Probes are independent: one
// failure never hides another result.
func (r *Router) TestAll(ctx context.Context) map[string]llm.TestResult {
	r.mu.Lock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	results := make([]llm.TestResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		p, _ := r.Provider(name)
		g.Go(func() error {
			results[i] = p.TestConnection(gctx)
			return nil
		})
	}
	_ = g.Wait() // probes never return errors; results carry outcomes

	out := make(map[string]llm.TestResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// RoutingStats returns a copy of the per-provider counters.
func (r *Router) RoutingStats() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.stats))
	for name, s := range r.stats {
		out[name] = *s
	}
	return out
}

// ResetRoutingStats clears all counters.
func (r *Router) ResetRoutingStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.stats {
		r.stats[name] = &Stats{}
	}
}
