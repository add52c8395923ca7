package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/notify"
)

// GenerationErrorMessage replaces the model reply when a send fails.
const GenerationErrorMessage = "Sorry, I encountered an error. Please try again. If the problem persists, check your API key and network connection."

var (
	ErrBusy          = errors.New("a message is already being sent")
	ErrSessionClosed = errors.New("chat session closed")
)

type Config struct {
	Welcome string
	// Instruction is read once, when the remote session is created on the
	// first send.
	Instruction func() string
	Generator   Generator
	Normalizer  *Normalizer
	// OnEvent receives transcript and state events in order. It is called
	// with the engine lock held and must not call back into the Engine.
	OnEvent func(models.WSMessage)
	// OnFocus is the focus-mode signal. It only fires on changes and runs
	// after the engine lock is released, in order.
	OnFocus func(on bool)
	Logger  *logger.Logger
}

// Engine is the chat session of one page instance: transcript, staged
// attachment, the lazily created remote session and the busy state.
type Engine struct {
	cfg Config
	log *logger.Logger

	mu       sync.Mutex
	messages []models.Message
	state    models.ChatState
	staged   *Staged
	session  RemoteSession
	focused  bool
	closed   bool

	// focus signals queued under mu, delivered by unlock
	pending []bool
	signals notify.Sequencer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(ctx context.Context, cfg Config) *Engine {
	if cfg.OnEvent == nil {
		cfg.OnEvent = func(models.WSMessage) {}
	}
	if cfg.OnFocus == nil {
		cfg.OnFocus = func(bool) {}
	}
	if cfg.Instruction == nil {
		cfg.Instruction = func() string { return "" }
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Engine{
		cfg:      cfg,
		log:      log,
		messages: []models.Message{{Role: models.RoleModel, Content: cfg.Welcome}},
		state:    models.ChatIdle,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Messages returns a copy of the transcript.
func (e *Engine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

func (e *Engine) State() models.ChatState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Staged() *Staged {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staged
}

// Snapshot is the transcript event sent when a client (re)attaches.
func (e *Engine) Snapshot() models.WSMessage {
	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := make([]models.Message, len(e.messages))
	copy(msgs, e.messages)
	return models.WSMessage{
		Type:    models.EventTranscript,
		Payload: models.TranscriptEvent{Messages: msgs, State: e.state},
	}
}

// Focus marks the start of composing.
func (e *Engine) Focus() {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return
	}
	e.setFocus(true)
}

// Blur lowers focus mode when composing is abandoned: nothing typed and
// nothing staged.
func (e *Engine) Blur(input string) {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return
	}
	if strings.TrimSpace(input) == "" && e.staged == nil {
		e.setFocus(false)
	}
}

// Stage normalises and stages a file, replacing any previous one. A
// rejected file leaves the current staged attachment untouched.
func (e *Engine) Stage(u Upload) error {
	staged, err := e.cfg.Normalizer.Normalize(u)

	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return ErrSessionClosed
	}

	if err != nil {
		e.log.Debug("attachment rejected", "name", u.Name, "mime_type", u.MimeType, "error", err)
		e.emit(models.EventInputError, models.InputErrorEvent{Message: InputErrorMessage(err)})
		return err
	}

	e.staged = staged
	e.emit(models.EventAttachmentStaged, models.AttachmentStagedEvent{
		Name:       staged.Name,
		MimeType:   staged.MimeType,
		Kind:       string(staged.Kind),
		PreviewURL: staged.PreviewURL,
	})
	e.setFocus(true)
	return nil
}

func (e *Engine) RemoveAttachment(input string) {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return
	}

	if e.staged != nil {
		e.staged = nil
		e.emit(models.EventAttachmentClear, nil)
	}
	if strings.TrimSpace(input) == "" {
		e.setFocus(false)
	}
}

// Submit appends the user message immediately and starts the streamed reply
// in the background. It returns ErrEmptyPrompt or ErrBusy without touching
// the transcript when there is nothing to send or a send is outstanding.
func (e *Engine) Submit(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrSessionClosed
	}
	if e.state != models.ChatIdle {
		return ErrBusy
	}

	typed := strings.TrimSpace(text)
	parts, err := Compose(typed, e.staged)
	if err != nil {
		return err
	}

	e.append(models.Message{
		Role:       models.RoleUser,
		Content:    typed,
		Attachment: e.staged.DisplayAttachment(),
	})
	if e.staged != nil {
		e.staged = nil
		e.emit(models.EventAttachmentClear, nil)
	}
	e.setState(models.ChatSending)

	if e.session == nil {
		e.session = e.cfg.Generator.NewSession(e.cfg.Instruction())
	}

	e.wg.Add(1)
	go e.stream(e.session, parts)
	return nil
}

// Wait blocks until no send is in flight.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close tears the session down: any in-flight send is cancelled and no more
// events are emitted. The remote session is discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.session = nil
	e.cancel()
}

func (e *Engine) stream(session RemoteSession, parts []models.Part) {
	defer e.wg.Done()

	stream, err := session.SendStream(e.ctx, parts)
	if err != nil {
		e.fail(-1, err)
		return
	}
	defer stream.Close()

	modelIndex := -1
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.fail(modelIndex, err)
			return
		}

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		if modelIndex < 0 {
			modelIndex = e.append(models.Message{Role: models.RoleModel})
			e.setState(models.ChatStreaming)
		}
		e.messages[modelIndex].Content += chunk
		e.emit(models.EventMessageUpdated, models.MessageUpdatedEvent{
			Index:   modelIndex,
			Content: e.messages[modelIndex].Content,
			Delta:   chunk,
		})
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return
	}
	if modelIndex < 0 {
		e.append(models.Message{Role: models.RoleModel})
	}
	e.finish()
}

// fail replaces the partial reply, if any, with the error message so a
// failed send adds at most one message after the user's.
func (e *Engine) fail(modelIndex int, err error) {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return
	}

	e.log.Warn("chat send failed", "error", err)

	if modelIndex >= 0 {
		e.messages[modelIndex].Content = GenerationErrorMessage
		e.emit(models.EventMessageUpdated, models.MessageUpdatedEvent{Index: modelIndex, Content: GenerationErrorMessage})
	} else {
		e.append(models.Message{Role: models.RoleModel, Content: GenerationErrorMessage})
	}
	e.finish()
}

func (e *Engine) finish() {
	e.setState(models.ChatIdle)
	e.setFocus(false)
}

func (e *Engine) append(msg models.Message) int {
	e.messages = append(e.messages, msg)
	idx := len(e.messages) - 1
	e.emit(models.EventMessageAppended, models.MessageAppendedEvent{Index: idx, Message: msg})
	return idx
}

func (e *Engine) setState(state models.ChatState) {
	if e.state == state {
		return
	}
	e.state = state
	e.emit(models.EventStateChanged, models.StateChangedEvent{State: state})
}

func (e *Engine) setFocus(on bool) {
	if e.focused == on {
		return
	}
	e.focused = on
	e.pending = append(e.pending, on)
}

// unlock releases mu and then delivers the focus signals queued while it
// was held.
func (e *Engine) unlock() {
	pending := e.pending
	e.pending = nil
	if len(pending) == 0 {
		e.mu.Unlock()
		return
	}
	ticket := e.signals.Ticket()
	e.mu.Unlock()

	fns := make([]func(), len(pending))
	for i, on := range pending {
		on := on
		fns[i] = func() { e.cfg.OnFocus(on) }
	}
	e.signals.Run(ticket, fns)
}

func (e *Engine) emit(eventType string, payload interface{}) {
	e.cfg.OnEvent(models.WSMessage{Type: eventType, Payload: payload})
}
