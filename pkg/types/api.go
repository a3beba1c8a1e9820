package types

import "time"

// GenerateRequest is the payload for POST /models/{name}/generate and the
// fan-out variant POST /models/generate.
type GenerateRequest struct {
	// Required prompt text.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Optional sampling parameters; unset fields use backend defaults.
	Options GenerateOptions `json:"options,omitempty"`
}

// GenerateResponse is returned by single-model generation.
type GenerateResponse struct {
	// example: llama
	Model string `json:"model" example:"llama"`
	Text  string `json:"text"`
	// example: 1250
	DurationMs int64 `json:"duration_ms" example:"1250"`
}

// FanoutEntry is one model's outcome inside a fan-out response. Exactly one
// of Text/Result and Error is set.
type FanoutEntry struct {
	Text string `json:"text,omitempty"`
	// example: generation failed: gptj: backend unavailable
	Error string `json:"error,omitempty"`
}

// FanoutResponse aggregates per-model outcomes of a fan-out call.
type FanoutResponse struct {
	Results map[string]FanoutEntry `json:"results"`
	// Completion time of the whole fan-out.
	Timestamp time.Time `json:"timestamp"`
}

// TrainRequest is the payload for POST /models/{name}/train.
type TrainRequest struct {
	Examples []TrainExample `json:"examples"`
	Options  TrainOptions   `json:"options,omitempty"`
}

// EvaluateRequest is the payload for POST /models/{name}/evaluate.
type EvaluateRequest struct {
	Examples []TrainExample `json:"examples"`
}

// SaveRequest is the payload for POST /models/{name}/save.
type SaveRequest struct {
	// Target checkpoint path; intermediate directories are created.
	// example: /var/lib/llmd/checkpoints/llama
	Path string `json:"path" example:"/var/lib/llmd/checkpoints/llama"`
}

// SaveResponse carries the resolved checkpoint path.
type SaveResponse struct {
	// example: /var/lib/llmd/checkpoints/llama
	Path string `json:"path" example:"/var/lib/llmd/checkpoints/llama"`
}

// ScheduleRequest creates a periodic retraining job.
type ScheduleRequest struct {
	// Target model name or "all".
	// example: all
	Model string `json:"model" example:"all"`
	// Firing interval in milliseconds.
	// example: 3600000
	IntervalMs int64 `json:"interval_ms" example:"3600000"`
}

// ScheduleResponse identifies a created job.
type ScheduleResponse struct {
	// example: 9f4c7dd2-31b2-4a41-9c1e-8f2a0d7c55aa
	JobID string `json:"job_id" example:"9f4c7dd2-31b2-4a41-9c1e-8f2a0d7c55aa"`
}

// JobStatus summarizes one scheduled retraining job.
type JobStatus struct {
	ID string `json:"id"`
	// example: all
	Model string `json:"model" example:"all"`
	// example: 3600000
	IntervalMs int64 `json:"interval_ms" example:"3600000"`
	// Number of completed firings since creation.
	// example: 4
	Firings uint64 `json:"firings" example:"4"`
}

// ModelsResponse wraps the list returned by GET /models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Models []ModelInfo `json:"models"`
	Jobs   []JobStatus `json:"jobs"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ErrorResponse is the consistent JSON error payload.
type ErrorResponse struct {
	// example: model not found: gptj
	Error string `json:"error" example:"model not found: gptj"`
	// example: 404
	Code int `json:"code" example:"404"`
}
