package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"llmd/pkg/types"
)

// checkpointVersion is bumped when the metadata layout changes.
const checkpointVersion = 1

// checkpointMeta is the sidecar written next to every checkpoint as
// {path}.meta.json. The core treats it as an opaque blob thereafter.
type checkpointMeta struct {
	Type      string            `json:"type"`
	Version   int               `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Config    types.ModelConfig `json:"config"`
}

// writeCheckpoint persists checkpoint metadata for a backend under path,
// creating intermediate directories as needed. Returns the resolved absolute
// target path.
func writeCheckpoint(path, kind string, cfg types.ModelConfig) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}
	meta := checkpointMeta{
		Type:      kind,
		Version:   checkpointVersion,
		Timestamp: time.Now().UTC(),
		Config:    cfg,
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode checkpoint meta: %w", err)
	}
	if err := os.WriteFile(abs+".meta.json", b, 0o644); err != nil {
		return "", fmt.Errorf("write checkpoint meta: %w", err)
	}
	return abs, nil
}
