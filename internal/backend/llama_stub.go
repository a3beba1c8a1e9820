//go:build !llama

package backend

import (
	"errors"

	"llmd/pkg/types"
)

// This file provides a no-CGO stub compiled when the 'llama' build tag is
// NOT set, keeping default builds and CI CGO-free. The real adapter lives in
// llama.go (tagged 'llama').

var llamaBuilt = false

// ErrLlamaNotBuilt is returned when a llama-kind model is opened in a binary
// built without the 'llama' tag. No mocked inference in production builds.
var ErrLlamaNotBuilt = errors.New("llama support not built (missing 'llama' build tag)")

func openLlama(cfg types.ModelConfig) (Backend, error) {
	return nil, ErrLlamaNotBuilt
}
