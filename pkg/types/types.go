package types

import "time"

// ModelConfig describes one configured backend.
type ModelConfig struct {
	// Logical name, unique within the registry (lookup is case-insensitive).
	// example: llama
	Name string `json:"name" yaml:"name" toml:"name" example:"llama"`
	// Backend kind: "sim", "llama", or "ollama".
	// example: llama
	Kind string `json:"kind" yaml:"kind" toml:"kind" example:"llama"`
	// Path to model weights on disk (required for file-backed kinds).
	// example: /home/user/models/llama-7b.Q4_K_M.gguf
	Path string `json:"path" yaml:"path" toml:"path" example:"/home/user/models/llama-7b.Q4_K_M.gguf"`
	// Context window size in tokens.
	// example: 4096
	CtxSize int `json:"ctx_size,omitempty" yaml:"ctx_size" toml:"ctx_size" example:"4096"`
	// Worker threads for local inference.
	// example: 8
	Threads int `json:"threads,omitempty" yaml:"threads" toml:"threads" example:"8"`
	// Base URL for hub-hosted backends (e.g. an Ollama server).
	// example: http://localhost:11434
	BaseURL string `json:"base_url,omitempty" yaml:"base_url" toml:"base_url" example:"http://localhost:11434"`
	// Remote model identifier for hub-hosted backends.
	// example: llama3.1:8b
	RemoteModel string `json:"remote_model,omitempty" yaml:"remote_model" toml:"remote_model" example:"llama3.1:8b"`
	// Arbitrary backend-specific options passed through verbatim.
	Options map[string]any `json:"options,omitempty" yaml:"options" toml:"options"`
}

// GenerateOptions are sampling parameters for one generation call.
// Zero values mean "unset"; the backend's defaults apply. Out-of-range
// values are passed through to the backend unvalidated.
type GenerateOptions struct {
	Temperature       float64 `json:"temperature,omitempty" example:"0.7"`
	MaxTokens         int     `json:"max_tokens,omitempty" example:"128"`
	TopP              float64 `json:"top_p,omitempty" example:"0.9"`
	TopK              int     `json:"top_k,omitempty" example:"40"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty" example:"1.1"`
}

// TrainExample is one supervised training pair.
type TrainExample struct {
	Input    string         `json:"input"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TrainOptions tune a training run.
type TrainOptions struct {
	Epochs       int     `json:"epochs,omitempty" example:"3"`
	LearningRate float64 `json:"learning_rate,omitempty" example:"0.0001"`
	BatchSize    int     `json:"batch_size,omitempty" example:"8"`
}

// TrainResult is the record returned by a completed training run.
type TrainResult struct {
	Status    string    `json:"status" example:"completed"`
	Epochs    int       `json:"epochs" example:"3"`
	Loss      float64   `json:"loss" example:"0.42"`
	Accuracy  float64   `json:"accuracy" example:"0.87"`
	Timestamp time.Time `json:"timestamp"`
}

// EvalMetrics is the record returned by an evaluation pass.
type EvalMetrics struct {
	Perplexity float64   `json:"perplexity" example:"12.4"`
	Accuracy   float64   `json:"accuracy" example:"0.85"`
	F1Score    float64   `json:"f1_score" example:"0.81"`
	Timestamp  time.Time `json:"timestamp"`
}

// ModelInfo is the side-effect-free view of one handle.
type ModelInfo struct {
	// example: llama
	Name string `json:"name" example:"llama"`
	// example: /home/user/models/llama-7b.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/llama-7b.Q4_K_M.gguf"`
	// Lifecycle state: unloaded, loading, loaded, unloading, failed.
	// example: loaded
	State string `json:"state" example:"loaded"`
}
