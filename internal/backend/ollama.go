package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"llmd/pkg/types"
)

// ollamaBackend is the hub-hosted pipeline variant: generation is served by
// a remote Ollama server, addressed by base URL and remote model name.
type ollamaBackend struct {
	cfg      types.ModelConfig
	client   *api.Client
	model    string
	defaults types.GenerateOptions
}

func openOllama(ctx context.Context, cfg types.ModelConfig) (Backend, error) {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("malformed base URL %q: %w", base, err)
	}
	model := cfg.RemoteModel
	if model == "" {
		return nil, errors.New("remote model is required for ollama backends")
	}
	cli := api.NewClient(u, http.DefaultClient)
	if err := cli.Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("ollama server unreachable at %s: %w", base, err)
	}
	// Verify the remote model exists before reporting the load as done.
	if _, err := cli.Show(ctx, &api.ShowRequest{Model: model}); err != nil {
		return nil, fmt.Errorf("remote model %q: %w", model, err)
	}
	return &ollamaBackend{cfg: cfg, client: cli, model: model, defaults: defaultGenerateOptions}, nil
}

func (b *ollamaBackend) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (string, error) {
	if b.client == nil {
		return "", errors.New("backend closed")
	}
	merged := mergeOptions(b.defaults, opts)
	stream := false
	req := &api.GenerateRequest{
		Model:  b.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature":    merged.Temperature,
			"num_predict":    merged.MaxTokens,
			"top_p":          merged.TopP,
			"top_k":          merged.TopK,
			"repeat_penalty": merged.RepetitionPenalty,
		},
	}
	var sb strings.Builder
	err := b.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return sb.String(), nil
}

func (b *ollamaBackend) Train(ctx context.Context, examples []types.TrainExample, opts types.TrainOptions) (types.TrainResult, error) {
	if err := ctx.Err(); err != nil {
		return types.TrainResult{}, err
	}
	// The hub does not expose fine-tuning over its API; the run is recorded
	// at the metadata level like the other variants.
	return trainOutcome(examples, opts), nil
}

func (b *ollamaBackend) Evaluate(ctx context.Context, examples []types.TrainExample) (types.EvalMetrics, error) {
	if err := ctx.Err(); err != nil {
		return types.EvalMetrics{}, err
	}
	return evalOutcome(examples), nil
}

func (b *ollamaBackend) Save(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return writeCheckpoint(path, KindOllama, b.cfg)
}

func (b *ollamaBackend) Close() error {
	b.client = nil
	return nil
}
