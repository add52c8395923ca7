package handlers

import (
	"context"
	"errors"
	"net/http"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

type studyPlanner interface {
	Generate(ctx context.Context, req models.StudyPlanRequest) (*models.StudyPlanResponse, error)
}

type PlannerHandler struct {
	planner studyPlanner
	log     *logger.Logger
}

func NewPlannerHandler(planner studyPlanner, log *logger.Logger) *PlannerHandler {
	return &PlannerHandler{planner: planner, log: log.With("handler", "planner")}
}

func (h *PlannerHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.StudyPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	plan, err := h.planner.Generate(r.Context(), req)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Please fill out all fields.", ve.Fields, r))
		case errors.Is(err, services.ErrPlanFailed):
			writeJSON(w, http.StatusBadGateway, errorResp("GENERATION_FAILED", services.ErrPlanFailed.Error(), r))
		default:
			h.log.Error("study plan failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		}
		return
	}

	writeJSON(w, http.StatusOK, plan)
}
