package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

// TrainingFileExt is the recognized extension for training-data files: JSON
// arrays of {input, output, metadata} objects.
const TrainingFileExt = ".json"

// DiscoverTrainingFiles scans dir for training-data files. A missing or
// empty directory yields no files and no error; a firing with no files is a
// skip, not a failure.
func DiscoverTrainingFiles(dir string) ([]string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), TrainingFileExt) {
			continue
		}
		files = append(files, filepath.Join(base, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// MergeTrainingFiles concatenates the example arrays from every file,
// preserving per-file order, then file order.
func MergeTrainingFiles(paths []string) ([]types.TrainExample, error) {
	var merged []types.TrainExample
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var examples []types.TrainExample
		if err := json.Unmarshal(b, &examples); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		merged = append(merged, examples...)
	}
	return merged, nil
}
