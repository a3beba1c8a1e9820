//go:build llama

package backend

import (
	"context"
	"errors"
	"fmt"

	llama "github.com/go-skynet/go-llama.cpp"

	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaBackend is the local-weights variant: an in-process llama.cpp model.
type llamaBackend struct {
	cfg      types.ModelConfig
	model    *llama.LLama
	threads  int
	defaults types.GenerateOptions
}

func openLlama(cfg types.ModelConfig) (Backend, error) {
	if !fsutil.PathExists(cfg.Path) {
		return nil, fmt.Errorf("model path does not exist: %s", cfg.Path)
	}
	mo := []llama.ModelOption{}
	if cfg.CtxSize > 0 {
		mo = append(mo, llama.SetContext(cfg.CtxSize))
	}
	m, err := llama.New(cfg.Path, mo...)
	if err != nil {
		return nil, err
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 4
	}
	return &llamaBackend{cfg: cfg, model: m, threads: threads, defaults: defaultGenerateOptions}, nil
}

func (b *llamaBackend) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (string, error) {
	if b.model == nil {
		return "", errors.New("llama model not initialized")
	}
	merged := mergeOptions(b.defaults, opts)
	// Respect cancellation through the token callback.
	b.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	po := []llama.PredictOption{
		llama.SetTokens(merged.MaxTokens),
		llama.SetThreads(b.threads),
		llama.SetTemperature(float32(merged.Temperature)),
		llama.SetTopP(float32(merged.TopP)),
		llama.SetTopK(merged.TopK),
		llama.SetPenalty(float32(merged.RepetitionPenalty)),
	}
	text, err := b.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (b *llamaBackend) Train(ctx context.Context, examples []types.TrainExample, opts types.TrainOptions) (types.TrainResult, error) {
	if err := ctx.Err(); err != nil {
		return types.TrainResult{}, err
	}
	// llama.cpp exposes no in-process fine-tuning; record the run at the
	// metadata level like the other variants.
	return trainOutcome(examples, opts), nil
}

func (b *llamaBackend) Evaluate(ctx context.Context, examples []types.TrainExample) (types.EvalMetrics, error) {
	if err := ctx.Err(); err != nil {
		return types.EvalMetrics{}, err
	}
	return evalOutcome(examples), nil
}

func (b *llamaBackend) Save(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return writeCheckpoint(path, KindLlama, b.cfg)
}

func (b *llamaBackend) Close() error {
	if b.model != nil {
		b.model.Free()
		b.model = nil
	}
	return nil
}
