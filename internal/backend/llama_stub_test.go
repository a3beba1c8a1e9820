//go:build !llama

package backend

import (
	"context"
	"errors"
	"testing"

	"llmd/pkg/types"
)

func TestOpenLlamaWithoutTag(t *testing.T) {
	_, err := Open(context.Background(), types.ModelConfig{Name: "l", Kind: KindLlama, Path: "w.gguf"})
	if !errors.Is(err, ErrLlamaNotBuilt) {
		t.Fatalf("expected not-built error, got %v", err)
	}
}
