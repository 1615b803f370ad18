package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/mintaro-labs/mintaro-backend/api/responses"
	pkgerrors "github.com/mintaro-labs/mintaro-backend/pkg/errors"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	"github.com/mintaro-labs/mintaro-backend/pkg/storage/pinning"
)

// PinListingAsset uploads a multipart "file" part to the pinning gateway
// and returns the content-addressed URI to use as image_url at mint time.
func PinListingAsset(pinner *pinning.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pinning client unavailable"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart field 'file' is required"))
			return
		}
		defer file.Close()

		result, err := pinner.PinFile(r.Context(), header.Filename, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PinListingMetadata pins an arbitrary JSON document and returns the URI
// to use as metadata_uri at mint time.
func PinListingMetadata(pinner *pinning.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pinning client unavailable"))
			return
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid metadata document"))
			return
		}
		if len(payload) == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "metadata document cannot be empty"))
			return
		}

		result, err := pinner.PinJSON(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
