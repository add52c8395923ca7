package pages

import (
	"fmt"
	"strings"

	"studybuddy-backend/internal/models"
)

type ID string

const (
	Dashboard       ID = "dashboard"
	QuestionSolver  ID = "question-solver"
	NotesSummarizer ID = "notes-summarizer"
	StudyPlanner    ID = "study-planner"
	Profile         ID = "profile"
	Support         ID = "support"
	Library         ID = "library"
)

// Page is one entry of the catalog. Chat pages own a chat session per mount.
type Page struct {
	ID      ID     `json:"id"`
	Title   string `json:"title"`
	Chat    bool   `json:"chat"`
	Welcome string `json:"welcome,omitempty"`

	instruction string
}

var catalog = []Page{
	{ID: Dashboard, Title: "Dashboard", Chat: true, Welcome: dashboardWelcome, instruction: dashboardInstruction},
	{ID: QuestionSolver, Title: "Question Solver", Chat: true, Welcome: questionSolverWelcome, instruction: questionSolverInstruction},
	{ID: NotesSummarizer, Title: "Notes Summarizer", Chat: true, Welcome: notesSummarizerWelcome, instruction: notesSummarizerInstruction},
	{ID: StudyPlanner, Title: "Study Planner", instruction: studyPlannerInstruction},
	{ID: Profile, Title: "Profile", Chat: true, Welcome: profileWelcome, instruction: profileInstruction},
	{ID: Support, Title: "Support", Chat: true, Welcome: supportWelcome, instruction: supportInstruction},
	{ID: Library, Title: "Library"},
}

// SuggestedLanguages is the settings-page list. Any other label is accepted.
var SuggestedLanguages = []string{
	"English", "Urdu", "Roman Urdu", "Hindi", "Arabic",
	"Chinese", "Spanish", "French", "German", "Sindhi",
}

const sindhiConfirmation = "✅ توھانجي پسند جي ٻولي سنڌي مقرر ڪئي وئي آهي. هاڻي مان اوهانجي سوالن جا جواب سنڌي ۾ ڏيندس."

func All() []Page {
	out := make([]Page, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id string) (Page, bool) {
	for _, p := range catalog {
		if string(p.ID) == id {
			return p, true
		}
	}
	return Page{}, false
}

// SystemInstruction builds the final instruction sent to the generation
// service: the page's base instruction followed by the language directive.
// The profile page also states the current subscription plan.
func SystemInstruction(page ID, language string, plan models.Plan) string {
	p, ok := Lookup(string(page))
	if !ok || p.instruction == "" {
		return ""
	}

	switch page {
	case Profile:
		return fmt.Sprintf("%s\n\nIMPORTANT: The user's current subscription plan is: %s. You must respond in the user's preferred language, which is: %s.", p.instruction, plan, language)
	case StudyPlanner:
		return fmt.Sprintf("%s\n\nIMPORTANT: You must generate the plan and all communication in the user's preferred language, which is: %s.", p.instruction, language)
	default:
		return fmt.Sprintf("%s\n\nIMPORTANT: You must respond in the user's preferred language, which is: %s.", p.instruction, language)
	}
}

// LanguageChangedMessage is the confirmation shown after a language change.
func LanguageChangedMessage(language string) models.StatusMessage {
	if strings.EqualFold(language, "Sindhi") {
		return models.StatusMessage{Type: models.StatusSuccess, Text: sindhiConfirmation}
	}
	return models.StatusMessage{
		Type: models.StatusSuccess,
		Text: fmt.Sprintf("✅ Your preferred language has been set to %s.", language),
	}
}
