package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"studybuddy-backend/internal/chat"
	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

var ErrEmptyGeneration = errors.New("model returned no text")

type GeminiService struct {
	client    *genai.Client
	modelName string
	rateChan  chan struct{} // Token bucket
	log       *logger.Logger
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int, log *logger.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is not set")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		rateChan:  rateChan,
		log:       log.With("component", "gemini"),
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *GeminiService) model(systemInstruction string) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	if systemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	}
	return model
}

// NewSession starts a chat whose history is kept by the SDK across sends.
func (s *GeminiService) NewSession(systemInstruction string) chat.RemoteSession {
	return &geminiSession{
		svc: s,
		cs:  s.model(systemInstruction).StartChat(),
	}
}

// GenerateOnce is a single non-streamed request with no history.
func (s *GeminiService) GenerateOnce(ctx context.Context, systemInstruction, prompt string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	resp, err := s.model(systemInstruction).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			s.log.Warn("generation stopped early", "candidate", i, "finish_reason", cand.FinishReason.String())
		}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

type geminiSession struct {
	svc *GeminiService
	cs  *genai.ChatSession
}

func (g *geminiSession) SendStream(ctx context.Context, parts []models.Part) (chat.ChunkStream, error) {
	genaiParts, err := toGenaiParts(parts)
	if err != nil {
		return nil, err
	}

	if err := g.svc.acquireRate(ctx); err != nil {
		return nil, err
	}

	return &geminiStream{
		iter:    g.cs.SendMessageStream(ctx, genaiParts...),
		release: g.svc.releaseRate,
	}, nil
}

// geminiStream holds a rate slot until it is closed.
type geminiStream struct {
	iter    *genai.GenerateContentResponseIterator
	release func()
	once    sync.Once
}

func (s *geminiStream) Next() (string, error) {
	for {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("Gemini stream error: %w", err)
		}
		if text := extractText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() {
	s.once.Do(s.release)
}

func toGenaiParts(parts []models.Part) ([]genai.Part, error) {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.InlineData != nil {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline data: %w", err)
			}
			out = append(out, genai.Blob{MIMEType: p.InlineData.MimeType, Data: data})
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
