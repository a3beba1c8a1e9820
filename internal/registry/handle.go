package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llmd/internal/backend"
	"llmd/pkg/types"
)

// State represents the lifecycle state of a handle.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateUnloading State = "unloading"
	StateFailed    State = "failed"
)

// OpenFunc constructs a backend instance for a config. The registry wires
// backend.Open by default; tests inject fakes.
type OpenFunc func(ctx context.Context, cfg types.ModelConfig) (backend.Backend, error)

// Handle owns one backend instance and its load state. State-changing calls
// (Load/Unload) are serialized per handle via transMu so at most one
// transition is in flight; capability calls on a loaded handle interleave
// freely, with mu guarding reads of state and the backend reference.
type Handle struct {
	name string
	cfg  types.ModelConfig

	transMu  sync.Mutex
	mu       sync.RWMutex
	state    State
	backend  backend.Backend
	lastUsed time.Time

	open OpenFunc
	pub  EventPublisher
	log  zerolog.Logger
}

func newHandle(name string, cfg types.ModelConfig, open OpenFunc, pub EventPublisher, log zerolog.Logger) *Handle {
	return &Handle{
		name:  name,
		cfg:   cfg,
		state: StateUnloaded,
		open:  open,
		pub:   pub,
		log:   log.With().Str("model", name).Logger(),
	}
}

// Name returns the logical model name.
func (h *Handle) Name() string { return h.name }

// Config returns the backend configuration the handle was built from.
func (h *Handle) Config() types.ModelConfig { return h.cfg }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Info returns the side-effect-free view of the handle. Never fails.
func (h *Handle) Info() types.ModelInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return types.ModelInfo{Name: h.name, Path: h.cfg.Path, State: string(h.state)}
}

// Load transitions the handle to loaded, initializing the backend instance.
// Re-entrant: loading an already-loaded handle is a no-op success. On backend
// failure the handle lands in failed and the error names the model and cause.
func (h *Handle) Load(ctx context.Context) error {
	h.transMu.Lock()
	defer h.transMu.Unlock()

	if h.State() == StateLoaded {
		return nil
	}
	start := time.Now()
	h.setState(StateLoading)
	h.pub.Publish(Event{Name: "load_start", Model: h.name})

	b, err := h.open(ctx, h.cfg)
	if err != nil {
		h.setState(StateFailed)
		h.log.Error().Err(err).Msg("load failed")
		h.pub.Publish(Event{Name: "load_error", Model: h.name, Fields: map[string]any{"error": err.Error()}})
		return ErrLoadFailure(h.name, err)
	}

	h.mu.Lock()
	h.backend = b
	h.state = StateLoaded
	h.lastUsed = time.Now()
	h.mu.Unlock()
	h.log.Info().Dur("dur", time.Since(start)).Msg("load ready")
	h.pub.Publish(Event{Name: "load_ready", Model: h.name, Fields: map[string]any{"dur_ms": int(time.Since(start) / time.Millisecond)}})
	return nil
}

// Unload releases the backend instance. Idempotent: unloading an
// already-unloaded handle is a no-op success. A failed handle unloads to
// unloaded as well.
func (h *Handle) Unload() error {
	h.transMu.Lock()
	defer h.transMu.Unlock()

	if h.State() == StateUnloaded {
		return nil
	}
	h.pub.Publish(Event{Name: "unload_start", Model: h.name})

	h.mu.Lock()
	h.state = StateUnloading
	b := h.backend
	h.backend = nil
	h.mu.Unlock()

	if b != nil {
		if err := b.Close(); err != nil {
			h.log.Warn().Err(err).Msg("backend close")
		}
	}
	h.setState(StateUnloaded)
	h.pub.Publish(Event{Name: "unload_done", Model: h.name})
	return nil
}

// ensureLoaded performs the implicit load transition for capability calls
// issued against an unloaded or failed handle.
func (h *Handle) ensureLoaded(ctx context.Context) (backend.Backend, error) {
	if h.State() != StateLoaded {
		if err := h.Load(ctx); err != nil {
			return nil, err
		}
	}
	h.mu.Lock()
	b := h.backend
	h.lastUsed = time.Now()
	h.mu.Unlock()
	if b == nil {
		// Concurrent unload won the race; surface it as the capability's
		// own failure rather than retrying.
		return nil, errors.New("model is not loaded")
	}
	return b, nil
}

// Generate runs one generation call. Requires loaded (auto-loads); the load
// state does not change on generation failure.
func (h *Handle) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (string, error) {
	b, err := h.ensureLoaded(ctx)
	if err != nil {
		if IsLoadFailure(err) {
			return "", err
		}
		return "", ErrGenerationFailure(h.name, err)
	}
	text, err := b.Generate(ctx, prompt, opts)
	if err != nil {
		return "", ErrGenerationFailure(h.name, err)
	}
	return text, nil
}

// Train runs one training pass over a non-empty example sequence.
func (h *Handle) Train(ctx context.Context, examples []types.TrainExample, opts types.TrainOptions) (types.TrainResult, error) {
	if len(examples) == 0 {
		return types.TrainResult{}, ErrTrainingFailure(h.name, errors.New("no training examples"))
	}
	b, err := h.ensureLoaded(ctx)
	if err != nil {
		if IsLoadFailure(err) {
			return types.TrainResult{}, err
		}
		return types.TrainResult{}, ErrTrainingFailure(h.name, err)
	}
	res, err := b.Train(ctx, examples, opts)
	if err != nil {
		return types.TrainResult{}, ErrTrainingFailure(h.name, err)
	}
	h.pub.Publish(Event{Name: "train_done", Model: h.name, Fields: map[string]any{"examples": len(examples), "epochs": res.Epochs}})
	return res, nil
}

// Evaluate computes metrics over the examples. Side-effect-free on the
// backend.
func (h *Handle) Evaluate(ctx context.Context, examples []types.TrainExample) (types.EvalMetrics, error) {
	b, err := h.ensureLoaded(ctx)
	if err != nil {
		if IsLoadFailure(err) {
			return types.EvalMetrics{}, err
		}
		return types.EvalMetrics{}, ErrEvaluationFailure(h.name, err)
	}
	m, err := b.Evaluate(ctx, examples)
	if err != nil {
		return types.EvalMetrics{}, ErrEvaluationFailure(h.name, err)
	}
	return m, nil
}

// Save persists backend state/metadata under path and returns the resolved
// path.
func (h *Handle) Save(ctx context.Context, path string) (string, error) {
	b, err := h.ensureLoaded(ctx)
	if err != nil {
		if IsLoadFailure(err) {
			return "", err
		}
		return "", ErrPersistenceFailure(h.name, err)
	}
	resolved, err := b.Save(ctx, path)
	if err != nil {
		return "", ErrPersistenceFailure(h.name, err)
	}
	h.pub.Publish(Event{Name: "save_done", Model: h.name, Fields: map[string]any{"path": resolved}})
	return resolved, nil
}
