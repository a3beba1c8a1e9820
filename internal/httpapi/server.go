package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llmd/internal/dispatch"
	"llmd/internal/ratelimit"
	"llmd/internal/scheduler"
	"llmd/pkg/types"
)

// maxBodyBytes controls the maximum allowed request body size for JSON
// endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

type server struct {
	engine *dispatch.Engine
	sched  *scheduler.Scheduler
	start  time.Time
}

// NewMux builds the HTTP router. Model and training routes sit behind the
// rate limiter; health and metrics do not.
func NewMux(engine *dispatch.Engine, sched *scheduler.Scheduler, limiter *ratelimit.Limiter) http.Handler {
	s := &server{engine: engine, sched: sched, start: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	r.Group(func(gr chi.Router) {
		gr.Use(RateLimitMiddleware(limiter))
		gr.Get("/models", s.listModels)
		gr.Get("/status", s.status)
		gr.Post("/models/load", s.loadAll)
		gr.Post("/models/unload", s.unloadAll)
		gr.Post("/models/generate", s.generateAll)
		gr.Post("/models/{name}/load", s.load)
		gr.Post("/models/{name}/unload", s.unload)
		gr.Post("/models/{name}/generate", s.generate)
		gr.Post("/models/{name}/train", s.train)
		gr.Post("/models/{name}/evaluate", s.evaluate)
		gr.Post("/models/{name}/save", s.save)
		gr.Post("/training/jobs", s.scheduleJob)
		gr.Get("/training/jobs", s.listJobs)
		gr.Delete("/training/jobs/{id}", s.cancelJob)
	})

	return r
}

// decodeJSON enforces content type and body size before decoding into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.engine.Registry().Initialized() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("initializing"))
}

// listModels godoc
// @Summary  List registered models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /models [get]
func (s *server) listModels(w http.ResponseWriter, r *http.Request) {
	infos, err := s.engine.Registry().Infos()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, types.ModelsResponse{Models: infos})
}

// status godoc
// @Summary  Service status: handle states, jobs, uptime
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (s *server) status(w http.ResponseWriter, r *http.Request) {
	infos, err := s.engine.Registry().Infos()
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now()
	writeJSON(w, types.StatusResponse{
		Models:         infos,
		Jobs:           s.sched.Jobs(),
		UptimeSeconds:  int64(now.Sub(s.start).Seconds()),
		ServerTimeUnix: now.Unix(),
	})
}

// generate godoc
// @Summary  Generate text with one model
// @Accept   json
// @Produce  json
// @Param    name    path  string                 true "model name"
// @Param    request body  types.GenerateRequest  true "prompt and options"
// @Success  200 {object} types.GenerateResponse
// @Failure  404 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Failure  502 {object} types.ErrorResponse
// @Router   /models/{name}/generate [post]
func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	start := time.Now()
	text, err := s.engine.Generate(r.Context(), name, req.Prompt, req.Options)
	observeModelOp("generate", err)
	if err != nil {
		status := writeError(w, err)
		logRequest(r, "generate", name, status, start, err)
		return
	}
	logRequest(r, "generate", name, http.StatusOK, start, nil)
	writeJSON(w, types.GenerateResponse{
		Model:      name,
		Text:       text,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// generateAll godoc
// @Summary  Fan a generation out across all models
// @Accept   json
// @Produce  json
// @Param    request body types.GenerateRequest true "prompt and options"
// @Success  200 {object} types.FanoutResponse
// @Router   /models/generate [post]
func (s *server) generateAll(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	start := time.Now()
	res, err := s.engine.GenerateAll(r.Context(), req.Prompt, req.Options)
	if err != nil {
		status := writeError(w, err)
		logRequest(r, "generate_all", dispatch.TargetAll, status, start, err)
		return
	}
	out := types.FanoutResponse{Results: make(map[string]types.FanoutEntry, len(res.Results)), Timestamp: res.CompletedAt}
	for name, o := range res.Results {
		observeModelOp("generate", o.Err)
		if o.Err != nil {
			out.Results[name] = types.FanoutEntry{Error: o.Err.Error()}
			continue
		}
		out.Results[name] = types.FanoutEntry{Text: o.Value}
	}
	logRequest(r, "generate_all", dispatch.TargetAll, http.StatusOK, start, nil)
	writeJSON(w, out)
}

// load godoc
// @Summary  Load one model
// @Produce  json
// @Param    name path string true "model name"
// @Success  200 {object} types.ModelInfo
// @Failure  404 {object} types.ErrorResponse
// @Router   /models/{name}/load [post]
func (s *server) load(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()
	err := s.engine.Load(r.Context(), name)
	observeModelOp("load", err)
	if err != nil {
		status := writeError(w, err)
		logRequest(r, "load", name, status, start, err)
		return
	}
	logRequest(r, "load", name, http.StatusOK, start, nil)
	s.writeModelInfo(w, name)
}

// unload godoc
// @Summary  Unload one model
// @Produce  json
// @Param    name path string true "model name"
// @Success  200 {object} types.ModelInfo
// @Router   /models/{name}/unload [post]
func (s *server) unload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()
	err := s.engine.Unload(name)
	observeModelOp("unload", err)
	if err != nil {
		status := writeError(w, err)
		logRequest(r, "unload", name, status, start, err)
		return
	}
	logRequest(r, "unload", name, http.StatusOK, start, nil)
	s.writeModelInfo(w, name)
}

func (s *server) writeModelInfo(w http.ResponseWriter, name string) {
	h, err := s.engine.Registry().Handle(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, h.Info())
}

// loadAll godoc
// @Summary  Load all models
// @Produce  json
// @Success  200 {object} types.FanoutResponse
// @Router   /models/load [post]
func (s *server) loadAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.LoadAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, unitFanout(res, "load"))
}

// unloadAll godoc
// @Summary  Unload all models
// @Produce  json
// @Success  200 {object} types.FanoutResponse
// @Router   /models/unload [post]
func (s *server) unloadAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.UnloadAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, unitFanout(res, "unload"))
}

// unitFanout converts a value-free fan-out into the wire shape; success
// entries carry no text.
func unitFanout(res *dispatch.Fanout[struct{}], op string) types.FanoutResponse {
	out := types.FanoutResponse{Results: make(map[string]types.FanoutEntry, len(res.Results)), Timestamp: res.CompletedAt}
	for name, o := range res.Results {
		observeModelOp(op, o.Err)
		if o.Err != nil {
			out.Results[name] = types.FanoutEntry{Error: o.Err.Error()}
			continue
		}
		out.Results[name] = types.FanoutEntry{}
	}
	return out
}

// train godoc
// @Summary  Train one model on the posted examples
// @Accept   json
// @Produce  json
// @Param    name    path string             true "model name"
// @Param    request body types.TrainRequest true "examples and options"
// @Success  200 {object} types.TrainResult
// @Failure  404 {object} types.ErrorResponse
// @Router   /models/{name}/train [post]
func (s *server) train(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req types.TrainRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Examples) == 0 {
		writeJSONError(w, http.StatusBadRequest, "examples are required")
		return
	}
	start := time.Now()
	res, err := s.engine.Train(r.Context(), name, req.Examples, req.Options)
	observeModelOp("train", err)
	if err != nil {
		status := writeError(w, err)
		logRequest(r, "train", name, status, start, err)
		return
	}
	logRequest(r, "train", name, http.StatusOK, start, nil)
	writeJSON(w, res)
}

// evaluate godoc
// @Summary  Evaluate one model on the posted examples
// @Accept   json
// @Produce  json
// @Param    name    path string                true "model name"
// @Param    request body types.EvaluateRequest true "examples"
// @Success  200 {object} types.EvalMetrics
// @Router   /models/{name}/evaluate [post]
func (s *server) evaluate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req types.EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.Evaluate(r.Context(), name, req.Examples)
	observeModelOp("evaluate", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

// save godoc
// @Summary  Persist one model's checkpoint
// @Accept   json
// @Produce  json
// @Param    name    path string            true "model name"
// @Param    request body types.SaveRequest true "target path"
// @Success  200 {object} types.SaveResponse
// @Router   /models/{name}/save [post]
func (s *server) save(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req types.SaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}
	resolved, err := s.engine.Save(r.Context(), name, req.Path)
	observeModelOp("save", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, types.SaveResponse{Path: resolved})
}

// scheduleJob godoc
// @Summary  Create a periodic retraining job
// @Accept   json
// @Produce  json
// @Param    request body types.ScheduleRequest true "target model and interval"
// @Success  200 {object} types.ScheduleResponse
// @Failure  404 {object} types.ErrorResponse
// @Router   /training/jobs [post]
func (s *server) scheduleJob(w http.ResponseWriter, r *http.Request) {
	var req types.ScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Model == "" {
		req.Model = dispatch.TargetAll
	}
	if req.IntervalMs <= 0 {
		writeJSONError(w, http.StatusBadRequest, "interval_ms must be positive")
		return
	}
	job, err := s.sched.Schedule(req.Model, time.Duration(req.IntervalMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, types.ScheduleResponse{JobID: job.ID})
}

// listJobs godoc
// @Summary  List scheduled retraining jobs
// @Produce  json
// @Success  200 {array} types.JobStatus
// @Router   /training/jobs [get]
func (s *server) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sched.Jobs())
}

// cancelJob godoc
// @Summary  Cancel a retraining job
// @Param    id path string true "job id"
// @Success  204 "cancelled"
// @Failure  404 {object} types.ErrorResponse
// @Router   /training/jobs/{id} [delete]
func (s *server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sched.Cancel(id) {
		writeJSONError(w, http.StatusNotFound, "job not found: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
