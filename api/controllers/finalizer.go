package controllers

import (
	"net/http"

	"github.com/mintaro-labs/mintaro-backend/api/responses"
	"github.com/mintaro-labs/mintaro-backend/internal/finalizer"
	pkgerrors "github.com/mintaro-labs/mintaro-backend/pkg/errors"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
)

func FinalizerStatus(engine *finalizer.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "finalizer unavailable"))
			return
		}
		responses.WriteSuccess(w, engine.Status())
	}
}

func FinalizerStatistics(engine *finalizer.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "finalizer unavailable"))
			return
		}

		stats, err := engine.Statistics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// FinalizerTrigger runs one pass synchronously. A run already in flight
// answers 409 rather than queuing.
func FinalizerTrigger(engine *finalizer.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "finalizer unavailable"))
			return
		}

		report, err := engine.TriggerManual(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
