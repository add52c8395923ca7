package chat

import (
	"context"

	"studybuddy-backend/internal/models"
)

// Generator creates remote generation sessions. The system instruction is
// fixed for the lifetime of a session.
type Generator interface {
	NewSession(systemInstruction string) RemoteSession
}

// RemoteSession keeps the model's own conversational context across sends.
// Sends on one session must not overlap.
type RemoteSession interface {
	SendStream(ctx context.Context, parts []models.Part) (ChunkStream, error)
}

// ChunkStream yields text chunks in delivery order. Next returns io.EOF once
// the response is complete. A stream cannot be restarted.
type ChunkStream interface {
	Next() (string, error)
	Close()
}
