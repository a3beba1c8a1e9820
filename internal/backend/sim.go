package backend

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"

	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

// simBackend is the runtime-session variant: a deterministic in-process
// token stream. It observes the same lifecycle and option semantics as the
// heavyweight variants, so it stands in for them in tests and in
// environments without a real runtime.
type simBackend struct {
	cfg      types.ModelConfig
	defaults types.GenerateOptions
	closed   atomic.Bool
}

// vocabulary for the simulated stream; indexed by a prompt-derived hash.
var simVocab = []string{
	"the", "model", "returns", "a", "stream", "of", "plausible", "tokens",
	"for", "every", "prompt", "it", "receives", "in", "order",
}

func openSim(cfg types.ModelConfig) (Backend, error) {
	if !fsutil.PathExists(cfg.Path) {
		return nil, fmt.Errorf("model path does not exist: %s", cfg.Path)
	}
	return &simBackend{cfg: cfg, defaults: defaultGenerateOptions}, nil
}

func (b *simBackend) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (string, error) {
	if b.closed.Load() {
		return "", errors.New("backend closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	merged := mergeOptions(b.defaults, opts)
	n := merged.MaxTokens
	if n > 32 {
		n = 32
	}
	if n <= 0 {
		return "", fmt.Errorf("max_tokens out of range: %d", merged.MaxTokens)
	}
	h := fnv.New32a()
	h.Write([]byte(prompt))
	seed := h.Sum32()
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(simVocab[(int(seed)+i*7)%len(simVocab)])
	}
	return sb.String(), nil
}

func (b *simBackend) Train(ctx context.Context, examples []types.TrainExample, opts types.TrainOptions) (types.TrainResult, error) {
	if b.closed.Load() {
		return types.TrainResult{}, errors.New("backend closed")
	}
	if err := ctx.Err(); err != nil {
		return types.TrainResult{}, err
	}
	return trainOutcome(examples, opts), nil
}

func (b *simBackend) Evaluate(ctx context.Context, examples []types.TrainExample) (types.EvalMetrics, error) {
	if b.closed.Load() {
		return types.EvalMetrics{}, errors.New("backend closed")
	}
	if err := ctx.Err(); err != nil {
		return types.EvalMetrics{}, err
	}
	return evalOutcome(examples), nil
}

func (b *simBackend) Save(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return writeCheckpoint(path, KindSim, b.cfg)
}

func (b *simBackend) Close() error {
	b.closed.Store(true)
	return nil
}
