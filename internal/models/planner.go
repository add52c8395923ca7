package models

// StudyPlanRequest is the study planner form. All fields are required.
type StudyPlanRequest struct {
	ExamName   string `json:"exam_name"`
	Subjects   string `json:"subjects"`
	ExamDate   string `json:"exam_date"`
	StudyHours string `json:"study_hours"`
}

type StudyPlanResponse struct {
	Plan     string `json:"plan"`
	Language string `json:"language"`
}
