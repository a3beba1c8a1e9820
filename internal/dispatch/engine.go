// Package dispatch resolves a request's target (one handle or "all") and
// invokes the matching capability. Fan-out calls run concurrently across
// every registered handle with each outcome captured independently: one
// backend's failure never aborts or blocks its siblings, and the aggregate
// call only fails for structural reasons (uninitialized registry, empty
// handle set).
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llmd/internal/registry"
	"llmd/pkg/types"
)

// TargetAll selects every registered handle.
const TargetAll = "all"

type noModelsError struct{}

func (noModelsError) Error() string { return "no models registered" }

// ErrNoModels reports a fan-out against an empty handle set.
func ErrNoModels() error { return noModelsError{} }

// IsNoModels reports whether err indicates an empty handle set.
func IsNoModels(err error) bool {
	_, ok := err.(noModelsError)
	return ok
}

// Engine performs single-model and fan-out operations against a registry.
type Engine struct {
	reg *registry.Registry
	log zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger installs a structured logger for dispatch-level events.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New constructs an Engine over reg.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{reg: reg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the engine's registry to the HTTP layer for read-only
// reporting.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Outcome captures one handle's result inside a fan-out: exactly one of
// Value and Err is meaningful.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Fanout is the atomic join point of one fan-out call. Its key set equals
// the registry's handle name set at dispatch time; no completion ordering
// between entries is exposed.
type Fanout[T any] struct {
	Results     map[string]Outcome[T]
	CompletedAt time.Time
}

// Failed returns the sorted names whose outcome carries an error.
func (f *Fanout[T]) Failed() []string {
	var out []string
	for name, o := range f.Results {
		if o.Err != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// fanOut invokes fn concurrently against every registered handle and joins
// the per-name outcomes.
func fanOut[T any](ctx context.Context, e *Engine, op string, fn func(context.Context, *registry.Handle) (T, error)) (*Fanout[T], error) {
	handles, err := e.reg.All()
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, ErrNoModels()
	}
	start := time.Now()
	results := make(map[string]Outcome[T], len(handles))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, h := range handles {
		wg.Add(1)
		go func(name string, h *registry.Handle) {
			defer wg.Done()
			v, err := fn(ctx, h)
			mu.Lock()
			results[name] = Outcome[T]{Value: v, Err: err}
			mu.Unlock()
		}(name, h)
	}
	wg.Wait()
	out := &Fanout[T]{Results: results, CompletedAt: time.Now().UTC()}
	e.log.Debug().
		Str("op", op).
		Int("targets", len(results)).
		Strs("failed", out.Failed()).
		Dur("dur", time.Since(start)).
		Msg("fanout complete")
	return out, nil
}

// Generate dispatches one generation call; the handle's result or failure is
// returned unchanged.
func (e *Engine) Generate(ctx context.Context, name, prompt string, opts types.GenerateOptions) (string, error) {
	h, err := e.reg.Handle(name)
	if err != nil {
		return "", err
	}
	return h.Generate(ctx, prompt, opts)
}

// GenerateAll fans a generation call out across all handles.
func (e *Engine) GenerateAll(ctx context.Context, prompt string, opts types.GenerateOptions) (*Fanout[string], error) {
	return fanOut(ctx, e, "generate", func(ctx context.Context, h *registry.Handle) (string, error) {
		return h.Generate(ctx, prompt, opts)
	})
}

// Load dispatches one load call.
func (e *Engine) Load(ctx context.Context, name string) error {
	h, err := e.reg.Handle(name)
	if err != nil {
		return err
	}
	return h.Load(ctx)
}

// LoadAll fans a load out across all handles.
func (e *Engine) LoadAll(ctx context.Context) (*Fanout[struct{}], error) {
	return fanOut(ctx, e, "load", func(ctx context.Context, h *registry.Handle) (struct{}, error) {
		return struct{}{}, h.Load(ctx)
	})
}

// Unload dispatches one unload call.
func (e *Engine) Unload(name string) error {
	h, err := e.reg.Handle(name)
	if err != nil {
		return err
	}
	return h.Unload()
}

// UnloadAll fans an unload out across all handles.
func (e *Engine) UnloadAll(ctx context.Context) (*Fanout[struct{}], error) {
	return fanOut(ctx, e, "unload", func(ctx context.Context, h *registry.Handle) (struct{}, error) {
		return struct{}{}, h.Unload()
	})
}

// Train dispatches one training run.
func (e *Engine) Train(ctx context.Context, name string, examples []types.TrainExample, opts types.TrainOptions) (types.TrainResult, error) {
	h, err := e.reg.Handle(name)
	if err != nil {
		return types.TrainResult{}, err
	}
	return h.Train(ctx, examples, opts)
}

// TrainAll fans a training run out across all handles.
func (e *Engine) TrainAll(ctx context.Context, examples []types.TrainExample, opts types.TrainOptions) (*Fanout[types.TrainResult], error) {
	return fanOut(ctx, e, "train", func(ctx context.Context, h *registry.Handle) (types.TrainResult, error) {
		return h.Train(ctx, examples, opts)
	})
}

// Evaluate dispatches one evaluation pass.
func (e *Engine) Evaluate(ctx context.Context, name string, examples []types.TrainExample) (types.EvalMetrics, error) {
	h, err := e.reg.Handle(name)
	if err != nil {
		return types.EvalMetrics{}, err
	}
	return h.Evaluate(ctx, examples)
}

// Save dispatches one checkpoint write.
func (e *Engine) Save(ctx context.Context, name, path string) (string, error) {
	h, err := e.reg.Handle(name)
	if err != nil {
		return "", err
	}
	return h.Save(ctx, path)
}

// SaveAll fans a checkpoint write out across all handles; pathFor maps a
// model name to its target path.
func (e *Engine) SaveAll(ctx context.Context, pathFor func(name string) string) (*Fanout[string], error) {
	return fanOut(ctx, e, "save", func(ctx context.Context, h *registry.Handle) (string, error) {
		return h.Save(ctx, pathFor(h.Name()))
	})
}
