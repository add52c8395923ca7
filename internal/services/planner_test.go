package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

type stubOneShot struct {
	instruction string
	prompt      string
	reply       string
	err         error
	calls       int
}

func (s *stubOneShot) GenerateOnce(ctx context.Context, instruction, prompt string) (string, error) {
	s.calls++
	s.instruction = instruction
	s.prompt = prompt
	return s.reply, s.err
}

func newPlannerForTest(gen OneShotGenerator, language string) *PlannerService {
	state := NewAppState(language, &stubSubs{state: models.SubscriptionState{Plan: models.PlanFree}}, &capturePublisher{}, logger.Nop())
	return NewPlannerService(gen, state, logger.Nop())
}

func TestBuildStudyPlanPrompt(t *testing.T) {
	got := BuildStudyPlanPrompt(models.StudyPlanRequest{
		ExamName:   "MDCAT",
		Subjects:   "Biology, Chemistry",
		ExamDate:   "2026-11-20",
		StudyHours: "4",
	})

	want := "Please create a study plan based on the following details:\n" +
		"- Exam/Goal: MDCAT\n" +
		"- Subjects: Biology, Chemistry\n" +
		"- Exam Date: 2026-11-20\n" +
		"- Daily Study Hours: 4"
	if got != want {
		t.Fatalf("unexpected prompt:\n%s", got)
	}
}

func TestPlanner_Generate(t *testing.T) {
	gen := &stubOneShot{reply: "Week 1: Cells"}
	p := newPlannerForTest(gen, "Urdu")

	resp, err := p.Generate(context.Background(), models.StudyPlanRequest{
		ExamName: " MDCAT ", Subjects: "Biology", ExamDate: "2026-11-20", StudyHours: "4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Plan != "Week 1: Cells" || resp.Language != "Urdu" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.HasSuffix(gen.instruction, "all communication in the user's preferred language, which is: Urdu.") {
		t.Fatalf("planner instruction must carry the language, got %q", gen.instruction)
	}
	if !strings.Contains(gen.prompt, "- Exam/Goal: MDCAT\n") {
		t.Fatalf("fields must be trimmed, got %q", gen.prompt)
	}
}

func TestPlanner_ValidationListsMissingFields(t *testing.T) {
	gen := &stubOneShot{}
	p := newPlannerForTest(gen, "English")

	_, err := p.Generate(context.Background(), models.StudyPlanRequest{ExamName: "SAT", Subjects: "  "})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"subjects", "exam_date", "study_hours"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected %s to be reported", field)
		}
	}
	if gen.calls != 0 {
		t.Fatal("no request may be made for an invalid form")
	}
}

func TestPlanner_FailureIsNotRetried(t *testing.T) {
	gen := &stubOneShot{err: errors.New("offline")}
	p := newPlannerForTest(gen, "English")

	_, err := p.Generate(context.Background(), models.StudyPlanRequest{
		ExamName: "SAT", Subjects: "Math", ExamDate: "June", StudyHours: "2",
	})
	if !errors.Is(err, ErrPlanFailed) {
		t.Fatalf("expected ErrPlanFailed, got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("expected exactly one request, got %d", gen.calls)
	}
}
