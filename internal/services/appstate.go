package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/pages"
)

var ErrEmptyLanguage = errors.New("language must not be empty")

// SubscriptionReader returns the current entitlement record.
type SubscriptionReader interface {
	Get(ctx context.Context) (models.SubscriptionState, error)
}

// EventPublisher fans an app-wide event out to every connected client.
type EventPublisher interface {
	Publish(ctx context.Context, msg models.WSMessage)
}

// AppState is the process-wide UI state shared by every page: display
// language, focus mode and a read view of the subscription.
type AppState struct {
	mu       sync.RWMutex
	language string
	focus    bool

	subs   SubscriptionReader
	events EventPublisher
	log    *logger.Logger
}

func NewAppState(defaultLanguage string, subs SubscriptionReader, events EventPublisher, log *logger.Logger) *AppState {
	if strings.TrimSpace(defaultLanguage) == "" {
		defaultLanguage = "English"
	}
	return &AppState{
		language: strings.TrimSpace(defaultLanguage),
		subs:     subs,
		events:   events,
		log:      log.With("component", "app_state"),
	}
}

func (a *AppState) Language() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.language
}

// SetLanguage changes the display language for sessions created from now on.
// Sessions already running keep the instruction they started with.
func (a *AppState) SetLanguage(ctx context.Context, language string) (models.StatusMessage, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return models.StatusMessage{}, ErrEmptyLanguage
	}

	a.mu.Lock()
	a.language = language
	a.mu.Unlock()

	status := pages.LanguageChangedMessage(language)
	a.events.Publish(ctx, models.WSMessage{
		Type:    models.EventLanguageChanged,
		Payload: models.LanguageChangedEvent{Language: language, Status: status},
	})
	a.log.Info("language changed", "language", language)
	return status, nil
}

func (a *AppState) FocusMode() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.focus
}

// SetFocusMode reports whether the flag changed. Only changes are published.
func (a *AppState) SetFocusMode(ctx context.Context, on bool) bool {
	a.mu.Lock()
	if a.focus == on {
		a.mu.Unlock()
		return false
	}
	a.focus = on
	a.mu.Unlock()

	a.events.Publish(ctx, models.WSMessage{Type: models.EventFocusMode, Payload: models.FocusModeEvent{On: on}})
	return true
}

func (a *AppState) Subscription(ctx context.Context) (models.SubscriptionState, error) {
	return a.subs.Get(ctx)
}

// Plan falls back to Free when the store cannot be read.
func (a *AppState) Plan(ctx context.Context) models.Plan {
	sub, err := a.subs.Get(ctx)
	if err != nil {
		a.log.Warn("failed to read subscription", "error", err)
		return models.PlanFree
	}
	return sub.Plan
}

func (a *AppState) Settings(ctx context.Context) (models.Settings, error) {
	sub, err := a.subs.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return models.Settings{
		Language:           a.Language(),
		SuggestedLanguages: append([]string(nil), pages.SuggestedLanguages...),
		Plan:               sub.Plan,
		FocusMode:          a.FocusMode(),
	}, nil
}
