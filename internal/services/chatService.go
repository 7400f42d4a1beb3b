package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"agroguard/internal/aiclient"
	"agroguard/internal/metrics"
	"agroguard/internal/sse"
	"agroguard/internal/vocabulary"
)

const (
	chatTextTimeout  = 30 * time.Second
	chatImageTimeout = 45 * time.Second

	DefaultImagePrompt = "Please analyze this image for pest identification"
)

const chatSystemPrompt = `You are AgroGuard AI Assistant, an expert agricultural advisor. Help farmers with:

CROP MANAGEMENT: Planting, growing, harvesting advice
PEST CONTROL: Identification, prevention, treatment methods
DISEASE MANAGEMENT: Plant diseases, symptoms, solutions
FARMING TECHNIQUES: Best practices, organic methods
WEATHER & SEASONS: Seasonal advice, climate considerations
EQUIPMENT & TOOLS: Farming equipment recommendations
IRRIGATION: Water management, irrigation systems
SOIL HEALTH: Soil testing, fertilizers, composting

Be helpful, practical, and farmer-friendly. Provide actionable advice with specific steps. Include safety warnings for chemicals and pesticides.

IMPORTANT: %s`

const imageSystemPrompt = `You are AgroGuard AI Assistant, an expert in agricultural pest identification and management.

When analyzing images:
IDENTIFY: What pest, disease, or issue you see
CROP: What crop or plant is affected
SEVERITY: How serious the problem is
TREATMENT: Specific management recommendations
TIMING: When to take action
PREVENTION: How to prevent future occurrences

Be specific, practical, and provide actionable advice. If you can't clearly identify the pest or issue, explain what you see and suggest next steps.

IMPORTANT: %s`

var (
	ErrChatNotConfigured = errors.New("chat service not configured")
	ErrEmptyMessage      = errors.New("Message is required")
)

// ChatTurn is one prior message in a conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatError carries the message shown to the user for a failed request.
type ChatError struct {
	Message string
	Kind    aiclient.Kind
	Err     error
}

func (e *ChatError) Error() string { return e.Message }
func (e *ChatError) Unwrap() error { return e.Err }

type ChatService interface {
	Configured() bool
	Chat(ctx context.Context, message string, history []ChatTurn, language string) (string, error)
	AnalyzeImage(ctx context.Context, image []byte, mime, message string, history []ChatTurn, language string) (string, error)
}

type chatService struct {
	client *aiclient.Client
	vocab  *vocabulary.Vocabulary
}

func NewChatService(client *aiclient.Client, vocab *vocabulary.Vocabulary) ChatService {
	return &chatService{client: client, vocab: vocab}
}

func (s *chatService) Configured() bool {
	return s.client.Configured()
}

func (s *chatService) Chat(ctx context.Context, message string, history []ChatTurn, language string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if !s.Configured() {
		return "", ErrChatNotConfigured
	}

	lang, instruction := s.vocab.LanguageInstruction(language)
	msgs := []aiclient.Message{{Role: "system", Content: fmt.Sprintf(chatSystemPrompt, instruction)}}
	msgs = append(msgs, window(history, s.vocab.Chat.TextHistory)...)
	msgs = append(msgs, aiclient.Message{Role: "user", Content: message})

	reply, err := s.complete(ctx, aiclient.Request{Messages: msgs, Language: lang}, chatTextTimeout)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("text", "error").Inc()
		log.Error().Err(err).Str("language", lang).Msg("Chat request failed")
		return "", &ChatError{Message: textErrorMessage(err), Kind: aiclient.Classify(err), Err: err}
	}
	metrics.ChatRequestsTotal.WithLabelValues("text", "success").Inc()
	log.Info().Str("language", lang).Int("length", len(reply)).Msg("Chat response generated")
	return reply, nil
}

func (s *chatService) AnalyzeImage(ctx context.Context, image []byte, mime, message string, history []ChatTurn, language string) (string, error) {
	if !s.Configured() {
		return "", ErrChatNotConfigured
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultImagePrompt
	}

	lang, instruction := s.vocab.LanguageInstruction(language)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))

	msgs := []aiclient.Message{{Role: "system", Content: fmt.Sprintf(imageSystemPrompt, instruction)}}
	msgs = append(msgs, window(history, s.vocab.Chat.ImageHistory)...)
	msgs = append(msgs, aiclient.Message{
		Role:    "user",
		Content: []aiclient.ContentPart{aiclient.TextPart(message), aiclient.ImagePart(dataURL)},
	})

	reply, err := s.complete(ctx, aiclient.Request{Messages: msgs, Language: lang, HasImage: true}, chatImageTimeout)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("image", "error").Inc()
		log.Error().Err(err).Str("language", lang).Msg("Image analysis failed")
		return "", &ChatError{Message: imageErrorMessage(err), Kind: aiclient.Classify(err), Err: err}
	}
	metrics.ChatRequestsTotal.WithLabelValues("image", "success").Inc()
	log.Info().Str("language", lang).Int("length", len(reply)).Msg("Image analysis completed")
	return reply, nil
}

// complete sends req and returns the assembled stream text, or the raw body
// when the stream carried no deltas.
func (s *chatService) complete(ctx context.Context, req aiclient.Request, timeout time.Duration) (string, error) {
	res, err := s.client.Complete(ctx, req, timeout)
	text := res.Content
	if errors.Is(err, sse.ErrNoContent) {
		text, err = strings.TrimSpace(res.Raw), nil
	}
	if err != nil {
		return "", err
	}
	if len(text) < s.vocab.Chat.MinResponseLength {
		return "", errors.New("No response from AI service")
	}
	return text, nil
}

// window keeps the last n turns with a usable role.
// window keeps the last n turns of history. Turns that are not from the user
// or the assistant still count toward n but are not forwarded.
func window(history []ChatTurn, n int) []aiclient.Message {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	kept := make([]aiclient.Message, 0, len(history))
	for _, t := range history {
		if (t.Role == "user" || t.Role == "assistant") && strings.TrimSpace(t.Content) != "" {
			kept = append(kept, aiclient.Message{Role: t.Role, Content: t.Content})
		}
	}
	return kept
}

const (
	textApology  = "I apologize, but I'm having trouble processing your request right now. "
	imageApology = "I apologize, but I'm having trouble analyzing your image right now. "
)

func textErrorMessage(err error) string {
	switch aiclient.Classify(err) {
	case aiclient.KindUnauthorized:
		return textApology + "Authentication issue with AI service. Please contact administrator."
	case aiclient.KindNotFound:
		return textApology + "AI service endpoint not found. Please contact administrator."
	case aiclient.KindRateLimited:
		return textApology + "Too many requests. Please wait a moment and try again."
	case aiclient.KindTimeout:
		return textApology + "The service is taking longer than usual. Please try again in a moment."
	case aiclient.KindConnectionRefused:
		return textApology + "The AI service is temporarily unavailable. Please try again later."
	default:
		return textApology + fmt.Sprintf("Error: %s. Please try rephrasing your question.", err.Error())
	}
}

func imageErrorMessage(err error) string {
	switch aiclient.Classify(err) {
	case aiclient.KindUnauthorized:
		return imageApology + "Authentication issue with AI service. Please contact administrator."
	case aiclient.KindNotFound:
		return imageApology + "AI service endpoint not found. Please contact administrator."
	case aiclient.KindRateLimited:
		return imageApology + "Too many requests. Please wait a moment and try again."
	case aiclient.KindTimeout:
		return imageApology + "Image analysis is taking longer than usual. Please try again."
	case aiclient.KindConnectionRefused:
		return imageApology + "The AI service is temporarily unavailable. Please try again later."
	default:
		return imageApology + "Please try uploading the image again or contact support."
	}
}
