package controllers

import (
	"context"
	"net/http"

	"github.com/mintaro-labs/mintaro-backend/api/responses"
	"github.com/mintaro-labs/mintaro-backend/pkg/config"
	pkgerrors "github.com/mintaro-labs/mintaro-backend/pkg/errors"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mintaro-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes each named dependency and fails fast on the first
// one that does not answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mintaro-Env", cfg.App.Env)

		for name, ping := range deps {
			if ping == nil {
				continue
			}
			if err := ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]string{"dependency": name}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
