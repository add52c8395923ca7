package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/pages"
)

// ErrPlanFailed is the only failure the planner reports to the user.
var ErrPlanFailed = errors.New("Sorry, I couldn't generate a plan. Please check your connection and try again.")

// OneShotGenerator is a single request/response call with no session.
type OneShotGenerator interface {
	GenerateOnce(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// ValidationError lists the missing or invalid request fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

type PlannerService struct {
	gen   OneShotGenerator
	state *AppState
	log   *logger.Logger
}

func NewPlannerService(gen OneShotGenerator, state *AppState, log *logger.Logger) *PlannerService {
	return &PlannerService{gen: gen, state: state, log: log.With("component", "planner")}
}

// Generate produces a study plan in the current display language. There are
// no retries; any generation failure becomes ErrPlanFailed.
func (p *PlannerService) Generate(ctx context.Context, req models.StudyPlanRequest) (*models.StudyPlanResponse, error) {
	req = trimPlanRequest(req)
	if err := validatePlanRequest(req); err != nil {
		return nil, err
	}

	language := p.state.Language()
	instruction := pages.SystemInstruction(pages.StudyPlanner, language, p.state.Plan(ctx))

	plan, err := p.gen.GenerateOnce(ctx, instruction, BuildStudyPlanPrompt(req))
	if err != nil {
		p.log.Error("study plan generation failed", "exam", req.ExamName, "error", err)
		return nil, ErrPlanFailed
	}

	return &models.StudyPlanResponse{Plan: plan, Language: language}, nil
}

func BuildStudyPlanPrompt(req models.StudyPlanRequest) string {
	var b strings.Builder
	b.WriteString("Please create a study plan based on the following details:\n")
	b.WriteString(fmt.Sprintf("- Exam/Goal: %s\n", req.ExamName))
	b.WriteString(fmt.Sprintf("- Subjects: %s\n", req.Subjects))
	b.WriteString(fmt.Sprintf("- Exam Date: %s\n", req.ExamDate))
	b.WriteString(fmt.Sprintf("- Daily Study Hours: %s", req.StudyHours))
	return b.String()
}

func trimPlanRequest(req models.StudyPlanRequest) models.StudyPlanRequest {
	req.ExamName = strings.TrimSpace(req.ExamName)
	req.Subjects = strings.TrimSpace(req.Subjects)
	req.ExamDate = strings.TrimSpace(req.ExamDate)
	req.StudyHours = strings.TrimSpace(req.StudyHours)
	return req
}

func validatePlanRequest(req models.StudyPlanRequest) error {
	fields := map[string]string{}
	if req.ExamName == "" {
		fields["exam_name"] = "Exam or goal is required"
	}
	if req.Subjects == "" {
		fields["subjects"] = "Subjects are required"
	}
	if req.ExamDate == "" {
		fields["exam_date"] = "Exam date is required"
	}
	if req.StudyHours == "" {
		fields["study_hours"] = "Daily study hours are required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
