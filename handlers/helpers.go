package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/middleware"
	"craftMaxxingAPI/utils"
)

const (
	requestTimeout = 5 * time.Second
	aiTimeout      = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, kind apperr.Kind, message string) {
	respondWithJSON(w, code, map[string]string{"error": message, "kind": string(kind)})
}

// writeError renders a service error. Internal causes are logged, never shown.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("Internal server error", err)
	}

	status := appErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("kind", string(appErr.Kind)).Msg("writeError: request failed")
	}
	respondWithError(w, status, appErr.Kind, appErr.Message)
}

// decodeJSON reads a size-limited JSON body into dst and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, apperr.KindInvalidArgument, "Request body is required")
		} else {
			respondWithError(w, http.StatusBadRequest, apperr.KindInvalidArgument, "Invalid request body")
		}
		return false
	}
	if err := utils.Validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, apperr.KindInvalidArgument, utils.ValidationMessage(err))
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "User not authenticated")
	}
	return userID, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, apperr.KindInvalidArgument, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
