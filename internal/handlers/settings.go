package handlers

import (
	"errors"
	"net/http"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/pages"
	"studybuddy-backend/internal/services"
)

// SettingsHandler serves the page catalog, display settings and the
// subscription record.
type SettingsHandler struct {
	state *services.AppState
	log   *logger.Logger
}

func NewSettingsHandler(state *services.AppState, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{state: state, log: log.With("handler", "settings")}
}

func (h *SettingsHandler) Pages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"pages": pages.All()})
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.state.Settings(r.Context())
	if err != nil {
		h.log.Error("failed to read settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := h.state.SetLanguage(r.Context(), req.Language)
	if err != nil {
		if errors.Is(err, services.ErrEmptyLanguage) {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"language": "Language is required"}, r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"language": h.state.Language(),
		"status":   status,
	})
}

func (h *SettingsHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.state.Subscription(r.Context())
	if err != nil {
		h.log.Error("failed to read subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
