package controllers

import (
	"net/http"

	"github.com/emrmusicgroup/tape16-api/api/responses"
	"github.com/emrmusicgroup/tape16-api/pkg/config"
)

// Health reports service liveness.
func Health(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg != nil {
			w.Header().Set("X-Tape16-Env", cfg.App.Env)
		}
		responses.WriteSuccess(w, map[string]any{
			"ok":      true,
			"service": "tape16-api",
		})
	}
}
