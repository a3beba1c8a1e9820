// Package scheduler drives cancellable periodic retraining jobs. Each
// firing independently locates training-data files, merges them, dispatches
// training against the job's selector, and checkpoints the trained models.
// A firing's failure is reported and dropped; the schedule keeps ticking.
package scheduler

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llmd/internal/dispatch"
	"llmd/pkg/types"
)

// Config holds scheduler tunables.
type Config struct {
	// DataDir is scanned for training-data files on each firing.
	DataDir string
	// CheckpointDir receives one checkpoint per model after training.
	CheckpointDir string
}

// Job is one scheduled retraining task. Cancellation stops future firings;
// an in-flight firing runs to completion.
type Job struct {
	ID       string
	Selector string
	Interval time.Duration

	cancel  context.CancelFunc
	done    chan struct{}
	firings atomic.Uint64
}

// Firings reports completed firings since the job was created.
func (j *Job) Firings() uint64 { return j.firings.Load() }

// Done is closed once the job's loop has exited after cancellation.
func (j *Job) Done() <-chan struct{} { return j.done }

// Scheduler owns the job table and the per-job tick loops.
type Scheduler struct {
	engine *dispatch.Engine
	cfg    Config
	log    zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger installs a structured logger for tick-level events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New constructs an idle Scheduler.
func New(engine *dispatch.Engine, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine: engine,
		cfg:    cfg,
		log:    zerolog.Nop(),
		jobs:   make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule creates a job firing every interval against selector (a model
// name or "all"). The selector is resolved eagerly so an unknown name fails
// here rather than on the first tick.
func (s *Scheduler) Schedule(selector string, interval time.Duration) (*Job, error) {
	if selector != dispatch.TargetAll {
		if _, err := s.engine.Registry().Handle(selector); err != nil {
			return nil, err
		}
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:       uuid.NewString(),
		Selector: selector,
		Interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, job)
	s.log.Info().Str("job", job.ID).Str("selector", selector).Dur("interval", interval).Msg("retraining scheduled")
	return job, nil
}

// Cancel stops future firings of the job. Returns false for unknown ids.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	s.log.Info().Str("job", id).Msg("retraining cancelled")
	return true
}

// Jobs returns a snapshot of the scheduled jobs, sorted by id.
func (s *Scheduler) Jobs() []types.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, types.JobStatus{
			ID:         j.ID,
			Model:      j.Selector,
			IntervalMs: j.Interval.Milliseconds(),
			Firings:    j.Firings(),
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Close cancels every job and waits for in-flight firings to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	for id, job := range s.jobs {
		job.cancel()
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, job *Job) {
	defer s.wg.Done()
	defer close(job.done)
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Detached context: cancellation stops rescheduling, it does
			// not abort a firing already in flight.
			s.fire(context.Background(), job)
			job.firings.Add(1)
		}
	}
}

// fire executes one firing. All failures are contained here.
func (s *Scheduler) fire(ctx context.Context, job *Job) {
	log := s.log.With().Str("job", job.ID).Str("selector", job.Selector).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("retraining tick panicked")
		}
	}()

	files, err := DiscoverTrainingFiles(s.cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Msg("training data discovery failed")
		return
	}
	if len(files) == 0 {
		log.Debug().Str("dir", s.cfg.DataDir).Msg("no training data, skipping tick")
		return
	}
	examples, err := MergeTrainingFiles(files)
	if err != nil {
		log.Error().Err(err).Msg("training data merge failed")
		return
	}
	log.Info().Int("files", len(files)).Int("examples", len(examples)).Msg("retraining tick")

	if job.Selector == dispatch.TargetAll {
		res, err := s.engine.TrainAll(ctx, examples, types.TrainOptions{})
		if err != nil {
			log.Error().Err(err).Msg("train dispatch failed")
			return
		}
		for _, name := range res.Failed() {
			log.Warn().Str("model", name).Err(res.Results[name].Err).Msg("train failed")
		}
		if _, err := s.engine.SaveAll(ctx, s.checkpointPath); err != nil {
			log.Error().Err(err).Msg("checkpoint dispatch failed")
		}
		return
	}

	if _, err := s.engine.Train(ctx, job.Selector, examples, types.TrainOptions{}); err != nil {
		log.Warn().Err(err).Msg("train failed")
		return
	}
	if _, err := s.engine.Save(ctx, job.Selector, s.checkpointPath(job.Selector)); err != nil {
		log.Warn().Err(err).Msg("checkpoint failed")
	}
}

func (s *Scheduler) checkpointPath(model string) string {
	return filepath.Join(s.cfg.CheckpointDir, model)
}
