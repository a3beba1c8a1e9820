//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "llmd/docs"
)

// MountSwagger serves the generated OpenAPI document at /swagger/. The docs
// package is produced by `swag init -g cmd/llmd/docs.go -o docs`.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler())
}
