package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studybuddy-backend/internal/chat"
	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/pages"
	"studybuddy-backend/internal/services"
)

// Client → server message types on the chat socket.
const (
	msgFocus            = "focus"
	msgBlur             = "blur"
	msgStageAttachment  = "stage_attachment"
	msgRemoveAttachment = "remove_attachment"
	msgSend             = "send"
)

// chatOutboundSize is larger than the event hub's: a streamed reply emits
// one event per chunk.
const chatOutboundSize = 512

type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type inputPayload struct {
	Input string `json:"input"`
}

type stagePayload struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type sendPayload struct {
	Text string `json:"text"`
}

// ChatHandler serves one chat session per connection. Connecting mounts the
// page; disconnecting unmounts it and abandons any in-flight send.
type ChatHandler struct {
	generator  chat.Generator
	normalizer *chat.Normalizer
	state      *services.AppState
	maxUpload  int64
	log        *logger.Logger
}

func NewChatHandler(generator chat.Generator, normalizer *chat.Normalizer, state *services.AppState, maxUpload int64, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		generator:  generator,
		normalizer: normalizer,
		state:      state,
		maxUpload:  maxUpload,
		log:        log.With("component", "chat_socket"),
	}
}

func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	page, ok := pages.Lookup(chi.URLParam(r, "page"))
	if !ok || !page.Chat {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "page", page.ID, "error", err)
		return
	}
	// base64 inflates uploads by a third; leave room for the envelope.
	conn.SetReadLimit(h.maxUpload*4/3 + 64*1024)

	p := newPeer(conn, h.log)
	p.send = make(chan []byte, chatOutboundSize)
	log := h.log.With("conn_id", p.id, "page", page.ID)

	ctx, cancel := context.WithCancel(context.Background())
	engine := chat.NewEngine(ctx, chat.Config{
		Welcome: page.Welcome,
		Instruction: func() string {
			return pages.SystemInstruction(page.ID, h.state.Language(), h.state.Plan(ctx))
		},
		Generator:  h.generator,
		Normalizer: h.normalizer,
		OnEvent: func(msg models.WSMessage) {
			if !p.enqueueJSON(msg) {
				log.Warn("chat client too slow, closing", "type", msg.Type)
				p.close()
			}
		},
		OnFocus: func(on bool) {
			p.enqueueJSON(models.WSMessage{Type: models.EventFocusMode, Payload: models.FocusModeEvent{On: on}})
			h.state.SetFocusMode(ctx, on)
		},
		Logger: log,
	})

	p.enqueueJSON(engine.Snapshot())
	log.Debug("chat socket connected")

	go p.writePump()
	go func() {
		defer func() {
			engine.Close()
			cancel()
			p.close()
			log.Debug("chat socket disconnected")
		}()
		p.readLoop(func(data []byte) {
			h.dispatch(p, engine, data)
		})
	}()
}

func (h *ChatHandler) dispatch(p *peer, engine *chat.Engine, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.enqueueJSON(protocolError("Invalid message"))
		return
	}

	switch msg.Type {
	case msgFocus:
		engine.Focus()

	case msgBlur:
		input, err := decodeInput(msg.Payload)
		if err != nil {
			p.enqueueJSON(protocolError("Invalid blur payload"))
			return
		}
		engine.Blur(input)

	case msgRemoveAttachment:
		input, err := decodeInput(msg.Payload)
		if err != nil {
			p.enqueueJSON(protocolError("Invalid remove_attachment payload"))
			return
		}
		engine.RemoveAttachment(input)

	case msgStageAttachment:
		var in stagePayload
		if err := json.Unmarshal(msg.Payload, &in); err != nil {
			p.enqueueJSON(protocolError("Invalid attachment payload"))
			return
		}
		raw, err := base64.StdEncoding.DecodeString(chat.PayloadFromPreview(in.Data))
		if err != nil {
			p.enqueueJSON(models.WSMessage{
				Type:    models.EventInputError,
				Payload: models.InputErrorEvent{Message: chat.ErrUnsupportedAttachment.Error()},
			})
			return
		}
		// Rejections are reported by the engine as input_error.
		engine.Stage(chat.Upload{Name: in.Name, MimeType: in.MimeType, Data: raw})

	case msgSend:
		var in sendPayload
		if err := json.Unmarshal(msg.Payload, &in); err != nil {
			p.enqueueJSON(protocolError("Invalid send payload"))
			return
		}
		if err := engine.Submit(in.Text); err != nil {
			p.enqueueJSON(models.WSMessage{
				Type:    models.EventSendRejected,
				Payload: models.SendRejectedEvent{Reason: rejectReason(err)},
			})
		}

	default:
		p.enqueueJSON(protocolError("Unknown message type: " + msg.Type))
	}
}

// decodeInput reads the current input field. A missing payload is empty input.
func decodeInput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var in inputPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", err
	}
	return in.Input, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, chat.ErrBusy):
		return "busy"
	case errors.Is(err, chat.ErrEmptyPrompt):
		return "empty"
	case errors.Is(err, chat.ErrSessionClosed):
		return "closed"
	default:
		return "error"
	}
}

func protocolError(message string) models.WSMessage {
	return models.WSMessage{Type: models.EventProtocolError, Payload: models.ProtocolErrorEvent{Message: message}}
}
