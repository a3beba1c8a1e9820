package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"llmd/internal/backend"
	"llmd/internal/registry"
	"llmd/pkg/types"
)

// scriptedBackend fails selected capabilities and echoes otherwise.
type scriptedBackend struct {
	name   string
	genErr error
}

func (b *scriptedBackend) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (string, error) {
	if b.genErr != nil {
		return "", b.genErr
	}
	return b.name + ":" + prompt, nil
}

func (b *scriptedBackend) Train(ctx context.Context, examples []types.TrainExample, opts types.TrainOptions) (types.TrainResult, error) {
	return types.TrainResult{Status: "completed", Epochs: len(examples)}, nil
}

func (b *scriptedBackend) Evaluate(ctx context.Context, examples []types.TrainExample) (types.EvalMetrics, error) {
	return types.EvalMetrics{Accuracy: 0.5}, nil
}

func (b *scriptedBackend) Save(ctx context.Context, path string) (string, error) {
	return path, nil
}

func (b *scriptedBackend) Close() error { return nil }

// newTestEngine builds an engine over three models; failing names get
// backends whose Generate fails, loadFail names refuse to open at all.
func newTestEngine(t *testing.T, genFail, loadFail map[string]error) *Engine {
	t.Helper()
	open := func(ctx context.Context, cfg types.ModelConfig) (backend.Backend, error) {
		name := strings.ToLower(cfg.Name)
		if err, ok := loadFail[name]; ok {
			return nil, err
		}
		return &scriptedBackend{name: name, genErr: genFail[name]}, nil
	}
	reg := registry.New(registry.WithOpenFunc(open))
	cfgs := []types.ModelConfig{
		{Name: "alpha", Path: "alpha.bin"},
		{Name: "beta", Path: "beta.bin"},
		{Name: "gamma", Path: "gamma.bin"},
	}
	if err := reg.Initialize(cfgs); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return New(reg)
}

func TestGenerateAllIsolatesFailures(t *testing.T) {
	cause := errors.New("cuda out of memory")
	e := newTestEngine(t, map[string]error{"beta": cause}, nil)

	fan, err := e.GenerateAll(context.Background(), "hello", types.GenerateOptions{})
	if err != nil {
		t.Fatalf("fan-out itself must succeed, got %v", err)
	}
	if len(fan.Results) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(fan.Results))
	}
	for _, name := range []string{"alpha", "gamma"} {
		o := fan.Results[name]
		if o.Err != nil {
			t.Fatalf("%s should succeed, got %v", name, o.Err)
		}
		if o.Value != name+":hello" {
			t.Fatalf("%s unexpected value %q", name, o.Value)
		}
	}
	o := fan.Results["beta"]
	if o.Err == nil || !registry.IsGenerationFailure(o.Err) {
		t.Fatalf("beta should carry a generation failure, got %v", o.Err)
	}
	if !errors.Is(o.Err, cause) {
		t.Fatalf("beta error should wrap the backend cause, got %v", o.Err)
	}
	failed := fan.Failed()
	if len(failed) != 1 || failed[0] != "beta" {
		t.Fatalf("unexpected failed set %v", failed)
	}
	if fan.CompletedAt.IsZero() {
		t.Fatal("fan-out must stamp a completion time")
	}
}

func TestLoadAllIsolatesLoadFailures(t *testing.T) {
	e := newTestEngine(t, nil, map[string]error{"beta": errors.New("weights corrupt")})

	fan, err := e.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load fan-out: %v", err)
	}
	if len(fan.Failed()) != 1 || fan.Failed()[0] != "beta" {
		t.Fatalf("unexpected failed set %v", fan.Failed())
	}
	if !registry.IsLoadFailure(fan.Results["beta"].Err) {
		t.Fatalf("beta should carry a load failure, got %v", fan.Results["beta"].Err)
	}
	for _, name := range []string{"alpha", "gamma"} {
		h, err := e.Registry().Handle(name)
		if err != nil {
			t.Fatalf("handle %s: %v", name, err)
		}
		if h.State() != registry.StateLoaded {
			t.Fatalf("%s should be loaded despite beta failing, got %s", name, h.State())
		}
	}
	bh, _ := e.Registry().Handle("beta")
	if bh.State() != registry.StateFailed {
		t.Fatalf("beta should be failed, got %s", bh.State())
	}
}

func TestFanOutOnEmptyRegistry(t *testing.T) {
	reg := registry.New()
	if err := reg.Initialize(nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	e := New(reg)
	_, err := e.GenerateAll(context.Background(), "p", types.GenerateOptions{})
	if err == nil || !IsNoModels(err) {
		t.Fatalf("expected no-models error, got %v", err)
	}
}

func TestFanOutBeforeInitialize(t *testing.T) {
	e := New(registry.New())
	_, err := e.GenerateAll(context.Background(), "p", types.GenerateOptions{})
	if err == nil || !registry.IsNotInitialized(err) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}
}

func TestSingleDispatchPropagatesErrors(t *testing.T) {
	e := newTestEngine(t, map[string]error{"alpha": errors.New("boom")}, nil)

	if _, err := e.Generate(context.Background(), "nosuch", "p", types.GenerateOptions{}); !registry.IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
	if _, err := e.Generate(context.Background(), "alpha", "p", types.GenerateOptions{}); !registry.IsGenerationFailure(err) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	out, err := e.Generate(context.Background(), "beta", "p", types.GenerateOptions{})
	if err != nil {
		t.Fatalf("generate beta: %v", err)
	}
	if out != "beta:p" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTrainAllAndSaveAll(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	examples := []types.TrainExample{{Input: "q", Output: "a"}}

	fan, err := e.TrainAll(context.Background(), examples, types.TrainOptions{})
	if err != nil {
		t.Fatalf("train fan-out: %v", err)
	}
	if len(fan.Failed()) != 0 {
		t.Fatalf("unexpected failures %v", fan.Failed())
	}

	saves, err := e.SaveAll(context.Background(), func(name string) string { return "/ckpt/" + name })
	if err != nil {
		t.Fatalf("save fan-out: %v", err)
	}
	for name, o := range saves.Results {
		if o.Err != nil {
			t.Fatalf("save %s: %v", name, o.Err)
		}
		if o.Value != "/ckpt/"+name {
			t.Fatalf("save %s resolved to %q", name, o.Value)
		}
	}
}
