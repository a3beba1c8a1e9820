package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// logRequest emits one structured line for a completed model operation.
func logRequest(r *http.Request, op, model string, status int, start time.Time, err error) {
	if zlog == nil {
		if err != nil {
			log.Printf("%s model=%s status=%d dur=%s err=%v", op, model, status, time.Since(start), err)
		} else {
			log.Printf("%s model=%s status=%d dur=%s", op, model, status, time.Since(start))
		}
		return
	}
	z := zlog.Info().
		Str("op", op).
		Str("model", model).
		Int("status", status).
		Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg(op + " end")
}
