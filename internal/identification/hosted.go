package identification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"agroguard/internal/aiclient"
	"agroguard/internal/sse"
	"agroguard/internal/vocabulary"
)

const hostedPrompt = `IMPORTANT: First determine if this is actually a photograph of crops, plants, insects, or agricultural content. ` +
	`If this appears to be a screenshot, computer screen, code, software interface, or any non-agricultural content, ` +
	`respond with "This is not agricultural content" and explain what you see instead. ` +
	`Only if it is genuinely agricultural content, then analyze for pests and diseases.`

// HostedProvider sends the image to the crop doctor function and reads its
// free-text diagnosis.
type HostedProvider struct {
	client   *aiclient.Client
	catalog  PestCatalog
	matcher  *Matcher
	analyzer *Analyzer
	timeout  time.Duration
}

func NewHostedProvider(client *aiclient.Client, catalog PestCatalog, vocab *vocabulary.Vocabulary) *HostedProvider {
	return &HostedProvider{
		client:   client,
		catalog:  catalog,
		matcher:  NewMatcher(vocab),
		analyzer: NewAnalyzer(vocab),
		timeout:  30 * time.Second,
	}
}

func (p *HostedProvider) Name() string { return "hosted" }

func (p *HostedProvider) Identify(ctx context.Context, img Image) (*Result, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("hosted: read image: %w", err)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", imageMIME(data), base64.StdEncoding.EncodeToString(data))

	req := aiclient.Request{
		Messages: []aiclient.Message{{
			Role:    "user",
			Content: []aiclient.ContentPart{aiclient.TextPart(hostedPrompt), aiclient.ImagePart(dataURL)},
		}},
		Language: "en",
	}

	stream, err := p.client.Complete(ctx, req, p.timeout)
	text := stream.Content
	switch {
	case errors.Is(err, sse.ErrNoContent):
		text = p.analyzer.RecoverText(stream.Raw)
	case err != nil:
		return nil, describeHostedError(err)
	}

	if len(text) < p.analyzer.vocab.Analysis.MinResponseLength {
		if p.analyzer.LooksLikeScreenshot(img.Filename) {
			res := notAgricultural("Screenshot or computer-related content based on filename")
			res.FullAnalysis = "Filename-based detection: " + img.Filename
			return res, nil
		}
		return nil, errors.New("hosted: no meaningful response from crop doctor service")
	}

	info := p.analyzer.Extract(text)
	if info.NotAgricultural {
		res := notAgricultural(info.Reason)
		res.FullAnalysis = text
		return res, nil
	}

	pests, err := p.catalog.ListPests(ctx)
	if err != nil {
		return nil, fmt.Errorf("hosted: load catalog: %w", err)
	}
	matches := p.matcher.Score(Prediction{Label: info.Name, Confidence: info.Confidence}, pests, p.Name())
	if len(matches) == 0 {
		res := failure(ErrLabelPestNotFound,
			fmt.Sprintf("Crop Doctor AI detected %q but this pest is not in our database. Consider adding it or try a different image.", info.Name))
		res.DetectedLabels = []string{info.Name}
		res.FullAnalysis = text
		return res, nil
	}

	res := fromMatches(matches, maxAlternatives)
	res.DetectedLabels = []string{info.Name}
	res.Note = "Powered by Crop Doctor AI"
	res.FullAnalysis = text
	return res, nil
}

func notAgricultural(reason string) *Result {
	res := failure(ErrLabelNotAgricultural,
		fmt.Sprintf("Crop Doctor AI says: %s. Please upload a real photograph of a pest, insect, or affected crop.", reason))
	res.DetectedLabels = []string{"Non-agricultural content"}
	return res
}

func describeHostedError(err error) error {
	switch aiclient.Classify(err) {
	case aiclient.KindConnectionRefused:
		return fmt.Errorf("hosted: cannot connect to crop doctor service: %w", err)
	case aiclient.KindTimeout:
		return fmt.Errorf("hosted: crop doctor service timeout: %w", err)
	case aiclient.KindUnauthorized:
		return fmt.Errorf("hosted: invalid crop doctor credentials: %w", err)
	case aiclient.KindNotFound:
		return fmt.Errorf("hosted: crop doctor endpoint not found: %w", err)
	default:
		return fmt.Errorf("hosted: %w", err)
	}
}

// imageMIME sniffs the content type, defaulting to jpeg for anything that
// is not a recognised image.
func imageMIME(data []byte) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("image/png") || m.Is("image/jpeg") || m.Is("image/webp") || m.Is("image/gif") {
			return m.String()
		}
	}
	return "image/jpeg"
}
