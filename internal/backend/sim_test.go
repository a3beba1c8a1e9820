package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"llmd/pkg/types"
)

// helper: create a small weights file to satisfy path checks.
func createWeightsFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	return p
}

func TestOpenSimMissingPath(t *testing.T) {
	_, err := Open(context.Background(), types.ModelConfig{Name: "m", Kind: KindSim, Path: "/does/not/exist.gguf"})
	if err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), types.ModelConfig{Name: "m", Kind: "tensorflow"})
	if err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestSimGenerateDeterministic(t *testing.T) {
	p := createWeightsFile(t, t.TempDir(), "m.gguf")
	b, err := Open(context.Background(), types.ModelConfig{Name: "m", Kind: KindSim, Path: p})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	a1, err := b.Generate(ctx, "hello", types.GenerateOptions{MaxTokens: 8})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	a2, err := b.Generate(ctx, "hello", types.GenerateOptions{MaxTokens: 8})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a1 == "" || a1 != a2 {
		t.Fatalf("expected stable non-empty output, got %q vs %q", a1, a2)
	}
}

func TestSimGenerateAfterClose(t *testing.T) {
	p := createWeightsFile(t, t.TempDir(), "m.gguf")
	b, err := Open(context.Background(), types.ModelConfig{Name: "m", Kind: KindSim, Path: p})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := b.Generate(context.Background(), "hi", types.GenerateOptions{}); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestSimTrainAndEvaluate(t *testing.T) {
	p := createWeightsFile(t, t.TempDir(), "m.gguf")
	b, err := Open(context.Background(), types.ModelConfig{Name: "m", Kind: KindSim, Path: p})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	examples := []types.TrainExample{{Input: "a", Output: "b"}, {Input: "c", Output: "d"}}
	res, err := b.Train(context.Background(), examples, types.TrainOptions{Epochs: 2})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if res.Status != "completed" || res.Epochs != 2 {
		t.Fatalf("unexpected train result: %+v", res)
	}
	if res.Loss <= 0 || res.Timestamp.IsZero() {
		t.Fatalf("train result missing metrics: %+v", res)
	}
	ev, err := b.Evaluate(context.Background(), examples)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.Perplexity <= 0 || ev.Timestamp.IsZero() {
		t.Fatalf("unexpected eval metrics: %+v", ev)
	}
}

func TestSimSaveWritesCheckpointMeta(t *testing.T) {
	dir := t.TempDir()
	p := createWeightsFile(t, dir, "m.gguf")
	b, err := Open(context.Background(), types.ModelConfig{Name: "m", Kind: KindSim, Path: p})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Nested target path: intermediate directories must be created.
	target := filepath.Join(dir, "checkpoints", "nested", "m")
	resolved, err := b.Save(context.Background(), target)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(resolved + ".meta.json")
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta checkpointMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("parse meta: %v", err)
	}
	if meta.Type != KindSim || meta.Version != checkpointVersion {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if meta.Timestamp.IsZero() || meta.Config.Name != "m" {
		t.Fatalf("meta missing fields: %+v", meta)
	}
}
