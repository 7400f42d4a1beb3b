package identification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"agroguard/internal/config"
	"agroguard/internal/vocabulary"
)

const visionPrompt = `Describe this image for a pest identification service. ` +
	`Return ONLY a JSON object with no markdown formatting, with this structure: ` +
	`{"labels": [{"text": "string", "score": 0.0}], "significantText": false}. ` +
	`labels lists up to 10 short lowercase labels for what is visible, each scored 0 to 1. ` +
	`significantText is true when the image is mostly text, code or a screen capture.`

// VisionModel is the part of a multimodal LLM the vision provider needs.
type VisionModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewGoogleVisionModel builds the Gemini model used for label detection.
func NewGoogleVisionModel(ctx context.Context, cfg config.VisionConfig) (VisionModel, error) {
	llm, err := googleai.New(ctx, googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI LLM: %w", err)
	}
	return llm, nil
}

// VisionProvider asks a multimodal model for image labels and matches them
// against the catalog.
type VisionProvider struct {
	model   VisionModel
	catalog PestCatalog
	matcher *Matcher
	vocab   *vocabulary.Vocabulary
	timeout time.Duration
}

func NewVisionProvider(model VisionModel, catalog PestCatalog, vocab *vocabulary.Vocabulary) *VisionProvider {
	return &VisionProvider{model: model, catalog: catalog, matcher: NewMatcher(vocab), vocab: vocab, timeout: 30 * time.Second}
}

func (p *VisionProvider) Name() string { return "vision" }

type visionLabel struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type visionAnswer struct {
	Labels          []visionLabel `json:"labels"`
	SignificantText bool          `json:"significantText"`
	Text            string        `json:"text"`
}

func (p *VisionProvider) Identify(ctx context.Context, img Image) (*Result, error) {
	answer, err := p.describe(ctx, img)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(answer.Labels))
	for _, l := range answer.Labels {
		labels = append(labels, strings.ToLower(l.Text))
	}

	if answer.SignificantText || len(answer.Text) > p.vocab.Vision.SignificantTextLength {
		res := failure("Invalid image type - Text/Code/Screenshot detected",
			"Please upload a photograph of a pest, insect, or affected crop. Screenshots, code snippets, and text documents cannot be analyzed for pest identification.")
		res.DetectedLabels = labels
		return res, nil
	}

	var agricultural bool
	for _, l := range answer.Labels {
		text := strings.ToLower(l.Text)
		if _, bad := vocabulary.ContainsAny(text, p.vocab.Vision.InvalidKeywords); bad && l.Score > p.vocab.Vision.MinLabelScore {
			res := failure("Invalid image type",
				"Please upload a real photograph of a pest, insect, or affected crop. The uploaded image appears to be a screenshot or non-agricultural content.")
			res.DetectedLabels = labels
			return res, nil
		}
		if _, ok := vocabulary.ContainsAny(text, p.vocab.Vision.PestKeywords); ok {
			agricultural = true
		}
		if _, ok := vocabulary.ContainsAny(text, p.vocab.Vision.CropKeywords); ok {
			agricultural = true
		}
	}
	if !agricultural {
		res := failure("No agricultural content detected",
			"Please upload an image of a pest, insect, or crop with pest damage. The uploaded image does not appear to be related to agriculture or pest management.")
		res.DetectedLabels = labels
		return res, nil
	}

	pests, err := p.catalog.ListPests(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision: load catalog: %w", err)
	}
	preds := make([]Prediction, 0, len(answer.Labels))
	for _, l := range answer.Labels {
		preds = append(preds, Prediction{Label: l.Text, Confidence: l.Score})
	}
	matches := p.matcher.ScoreAll(preds, pests, p.Name())
	if len(matches) == 0 {
		res := failure(ErrLabelPestNotFound,
			"Detected: "+strings.Join(labels, ", ")+". No matching pest was found in the database.")
		res.DetectedLabels = labels
		return res, nil
	}

	res := fromMatches(matches, maxAlternatives)
	res.DetectedLabels = labels
	res.Note = "Powered by image label detection"
	return res, nil
}

func (p *VisionProvider) describe(ctx context.Context, img Image) (visionAnswer, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return visionAnswer{}, fmt.Errorf("vision: read image: %w", err)
	}

	msg := llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart(imageMIME(data), data),
			llms.TextPart(visionPrompt),
		},
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.model.GenerateContent(callCtx, []llms.MessageContent{msg})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return visionAnswer{}, fmt.Errorf("vision: timed out after %s: %w", p.timeout, err)
		}
		return visionAnswer{}, fmt.Errorf("vision: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return visionAnswer{}, fmt.Errorf("vision: empty response")
	}

	cleaned := strings.TrimSpace(resp.Choices[0].Content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var answer visionAnswer
	if err := json.Unmarshal([]byte(cleaned), &answer); err != nil {
		log.Error().Err(err).Str("raw_response", resp.Choices[0].Content).Msg("Failed to parse vision response as JSON")
		return visionAnswer{}, fmt.Errorf("vision: parse response: %w", err)
	}
	return answer, nil
}
