package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmd/internal/backend"
	"llmd/internal/dispatch"
	"llmd/internal/registry"
	"llmd/pkg/types"
)

// countingBackend records training runs and checkpoint paths.
type countingBackend struct {
	trains atomic.Int32

	mu    sync.Mutex
	saved []string
}

func (b *countingBackend) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (string, error) {
	return "", nil
}

func (b *countingBackend) Train(ctx context.Context, examples []types.TrainExample, opts types.TrainOptions) (types.TrainResult, error) {
	b.trains.Add(1)
	return types.TrainResult{Status: "completed", Epochs: 1}, nil
}

func (b *countingBackend) Evaluate(ctx context.Context, examples []types.TrainExample) (types.EvalMetrics, error) {
	return types.EvalMetrics{}, nil
}

func (b *countingBackend) Save(ctx context.Context, path string) (string, error) {
	b.mu.Lock()
	b.saved = append(b.saved, path)
	b.mu.Unlock()
	return path, nil
}

func (b *countingBackend) Close() error { return nil }

func (b *countingBackend) savedPaths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.saved))
	copy(out, b.saved)
	return out
}

// backendTable tracks the backends opened by the scheduler's goroutines.
type backendTable struct {
	mu sync.Mutex
	m  map[string]*countingBackend
}

func (bt *backendTable) get(name string) *countingBackend {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.m[name]
}

func newTestScheduler(t *testing.T, cfg Config, models ...string) (*Scheduler, *backendTable) {
	t.Helper()
	backends := &backendTable{m: make(map[string]*countingBackend, len(models))}
	open := func(ctx context.Context, mc types.ModelConfig) (backend.Backend, error) {
		b := &countingBackend{}
		backends.mu.Lock()
		backends.m[mc.Name] = b
		backends.mu.Unlock()
		return b, nil
	}
	cfgs := make([]types.ModelConfig, 0, len(models))
	for _, m := range models {
		cfgs = append(cfgs, types.ModelConfig{Name: m, Path: m + ".bin"})
	}
	reg := registry.New(registry.WithOpenFunc(open))
	require.NoError(t, reg.Initialize(cfgs))
	s := New(dispatch.New(reg), cfg)
	t.Cleanup(s.Close)
	return s, backends
}

func writeTrainingData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "batch.json", `[{"input":"q","output":"a"}]`)
	return dir
}

func TestScheduleRejectsUnknownSelector(t *testing.T) {
	s, _ := newTestScheduler(t, Config{}, "alpha")
	_, err := s.Schedule("ghost", time.Second)
	require.Error(t, err)
	assert.True(t, registry.IsModelNotFound(err))
}

func TestScheduledJobFiresRepeatedly(t *testing.T) {
	cfg := Config{DataDir: writeTrainingData(t), CheckpointDir: t.TempDir()}
	s, backends := newTestScheduler(t, cfg, "alpha")

	job, err := s.Schedule("alpha", 30*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return job.Firings() >= 2 }, 2*time.Second, 10*time.Millisecond)

	b := backends.get("alpha")
	require.NotNil(t, b)
	assert.GreaterOrEqual(t, b.trains.Load(), int32(2))
	saved := b.savedPaths()
	require.NotEmpty(t, saved)
	assert.Equal(t, filepath.Join(cfg.CheckpointDir, "alpha"), saved[0])
}

func TestFiringWithoutDataIsASkip(t *testing.T) {
	cfg := Config{DataDir: filepath.Join(t.TempDir(), "absent")}
	s, backends := newTestScheduler(t, cfg, "alpha")

	job, err := s.Schedule("alpha", 20*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return job.Firings() >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, backends.get("alpha"), "no training data means no backend activity")
}

func TestAllSelectorTrainsEveryModel(t *testing.T) {
	cfg := Config{DataDir: writeTrainingData(t), CheckpointDir: t.TempDir()}
	s, backends := newTestScheduler(t, cfg, "alpha", "beta")

	_, err := s.Schedule(dispatch.TargetAll, 30*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, b := backends.get("alpha"), backends.get("beta")
		return a != nil && b != nil && a.trains.Load() >= 1 && b.trains.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelStopsFutureFirings(t *testing.T) {
	cfg := Config{DataDir: writeTrainingData(t), CheckpointDir: t.TempDir()}
	s, _ := newTestScheduler(t, cfg, "alpha")

	job, err := s.Schedule("alpha", 20*time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return job.Firings() >= 1 }, 2*time.Second, 5*time.Millisecond)

	require.True(t, s.Cancel(job.ID))
	<-job.Done()

	n := job.Firings()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, job.Firings(), "cancelled job must not fire again")
	assert.Empty(t, s.Jobs())
}

func TestCancelUnknownJob(t *testing.T) {
	s, _ := newTestScheduler(t, Config{}, "alpha")
	assert.False(t, s.Cancel("no-such-id"))
}

func TestJobsSnapshot(t *testing.T) {
	s, _ := newTestScheduler(t, Config{}, "alpha")

	j1, err := s.Schedule("alpha", time.Minute)
	require.NoError(t, err)
	j2, err := s.Schedule(dispatch.TargetAll, 2*time.Minute)
	require.NoError(t, err)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	byID := map[string]types.JobStatus{jobs[0].ID: jobs[0], jobs[1].ID: jobs[1]}
	assert.Equal(t, "alpha", byID[j1.ID].Model)
	assert.Equal(t, int64(60000), byID[j1.ID].IntervalMs)
	assert.Equal(t, dispatch.TargetAll, byID[j2.ID].Model)
}

func TestCloseStopsAllJobs(t *testing.T) {
	cfg := Config{DataDir: writeTrainingData(t), CheckpointDir: t.TempDir()}
	s, _ := newTestScheduler(t, cfg, "alpha")

	j1, err := s.Schedule("alpha", 20*time.Millisecond)
	require.NoError(t, err)
	j2, err := s.Schedule(dispatch.TargetAll, 20*time.Millisecond)
	require.NoError(t, err)

	s.Close()
	select {
	case <-j1.Done():
	default:
		t.Fatal("job 1 loop still running after Close")
	}
	select {
	case <-j2.Done():
	default:
		t.Fatal("job 2 loop still running after Close")
	}
	assert.Empty(t, s.Jobs())
}
