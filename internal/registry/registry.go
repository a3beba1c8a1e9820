package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"llmd/internal/backend"
	"llmd/pkg/types"
)

// Registry is the single source of truth for which models exist. One
// instance per process, constructed explicitly and passed by reference to
// the dispatch engine and scheduler. All operations other than Initialize
// fail fast until Initialize has run.
type Registry struct {
	mu          sync.RWMutex
	handles     map[string]*Handle
	initialized bool

	open OpenFunc
	pub  EventPublisher
	log  zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger installs a structured logger used by the registry and handles.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithPublisher installs an event publisher for handle lifecycle events.
func WithPublisher(p EventPublisher) Option {
	return func(r *Registry) { r.pub = p }
}

// WithOpenFunc overrides the backend factory; used by tests.
func WithOpenFunc(open OpenFunc) Option {
	return func(r *Registry) { r.open = open }
}

// New constructs an uninitialized Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		open: backend.Open,
		pub:  noopPublisher{},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize constructs one handle per configured backend and marks the
// registry initialized. Calling it twice re-creates handles and discards the
// prior ones; callers are expected to check Initialized first. Fails without
// side effects if any backend configuration is structurally invalid.
func (r *Registry) Initialize(cfgs []types.ModelConfig) error {
	handles := make(map[string]*Handle, len(cfgs))
	for _, cfg := range cfgs {
		name := strings.ToLower(strings.TrimSpace(cfg.Name))
		if name == "" {
			return ErrInitialization("model name is required")
		}
		if _, dup := handles[name]; dup {
			return ErrInitialization("duplicate model name: " + name)
		}
		switch strings.ToLower(cfg.Kind) {
		case backend.KindOllama:
			if cfg.RemoteModel == "" {
				return ErrInitialization("remote_model is required for model " + name)
			}
		default:
			if strings.TrimSpace(cfg.Path) == "" {
				return ErrInitialization("path is required for model " + name)
			}
		}
		handles[name] = newHandle(name, cfg, r.open, r.pub, r.log)
	}
	r.mu.Lock()
	r.handles = handles
	r.initialized = true
	r.mu.Unlock()
	r.log.Info().Int("models", len(handles)).Msg("registry initialized")
	return nil
}

// Initialized reports whether Initialize has completed.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Handle resolves a logical model name, case-insensitively.
func (r *Registry) Handle(name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, ErrNotInitialized()
	}
	h, ok := r.handles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrModelNotFound(name)
	}
	return h, nil
}

// All returns the full name → handle mapping as a copy.
func (r *Registry) All() (map[string]*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, ErrNotInitialized()
	}
	out := make(map[string]*Handle, len(r.handles))
	for name, h := range r.handles {
		out[name] = h
	}
	return out, nil
}

// Names returns the registered model names, sorted for stable output.
func (r *Registry) Names() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, ErrNotInitialized()
	}
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Infos returns {name, path, state} for every handle. Side-effect-free.
func (r *Registry) Infos() ([]types.ModelInfo, error) {
	r.mu.RLock()
	if !r.initialized {
		r.mu.RUnlock()
		return nil, ErrNotInitialized()
	}
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	infos := make([]types.ModelInfo, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, h.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Shutdown unloads every handle; used at process exit. Unload errors are
// logged, not returned, so one stuck backend cannot block the rest.
func (r *Registry) Shutdown(ctx context.Context) {
	handles, err := r.All()
	if err != nil {
		return
	}
	for name, h := range handles {
		select {
		case <-ctx.Done():
			r.log.Warn().Msg("shutdown deadline reached before all models unloaded")
			return
		default:
		}
		if err := h.Unload(); err != nil {
			r.log.Warn().Err(err).Str("model", name).Msg("unload on shutdown")
		}
	}
}
