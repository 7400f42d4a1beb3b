package identification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"agroguard/internal/aiclient"
	"agroguard/internal/config"
	"agroguard/internal/vocabulary"
)

// DetectionProvider calls a hosted object-detection model with the image as
// a base64 form body.
type DetectionProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	catalog    PestCatalog
	matcher    *Matcher
	vocab      *vocabulary.Vocabulary
}

func NewDetectionProvider(cfg config.DetectionConfig, catalog PestCatalog, vocab *vocabulary.Vocabulary) *DetectionProvider {
	return &DetectionProvider{
		endpoint:   fmt.Sprintf("%s/%s/%s", cfg.BaseURL, cfg.Model, cfg.Version),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		catalog:    catalog,
		matcher:    NewMatcher(vocab),
		vocab:      vocab,
	}
}

func (p *DetectionProvider) Name() string { return "detection" }

type detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

type detectionResponse struct {
	Predictions []detection `json:"predictions"`
}

func (p *DetectionProvider) Identify(ctx context.Context, img Image) (*Result, error) {
	preds, err := p.detect(ctx, img.Path)
	if err != nil {
		return nil, err
	}

	if len(preds) == 0 {
		res := failure(ErrLabelNoPests,
			"The detection model could not identify any pests in this image. Please upload a clear photograph of a pest or insect on a crop.")
		res.DetectedLabels = []string{}
		return res, nil
	}

	labels := make([]string, 0, len(preds))
	candidates := make([]Prediction, 0, len(preds))
	var top float64
	for _, d := range preds {
		labels = append(labels, d.Class)
		if d.Confidence > top {
			top = d.Confidence
		}
		if d.Confidence < p.vocab.Detection.MinConfidence {
			continue
		}
		candidates = append(candidates, Prediction{
			Label:       d.Class,
			Confidence:  d.Confidence,
			BoundingBox: &BoundingBox{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height},
		})
	}

	pests, err := p.catalog.ListPests(ctx)
	if err != nil {
		return nil, fmt.Errorf("detection: load catalog: %w", err)
	}

	matches := p.matcher.ScoreAll(candidates, pests, p.Name())
	if len(matches) > 0 {
		res := fromMatches(matches, maxAlternatives)
		res.DetectedLabels = labels
		res.Note = "Powered by the object detection model"
		return res, nil
	}

	if len(pests) == 0 {
		res := failure(ErrLabelPestNotFound, "Detected: "+strings.Join(labels, ", ")+". The pest catalog is empty.")
		res.DetectedLabels = labels
		return res, nil
	}

	// Nothing matched the catalog: show the first catalog pests as related
	// suggestions at stepped-down confidence.
	n := p.vocab.Detection.RelatedSuggestions
	if n > len(pests) {
		n = len(pests)
	}
	related := make([]Match, 0, n)
	for i := 0; i < n; i++ {
		conf := top*100 - float64(i)*p.vocab.Detection.RelatedStep
		if conf < 0 {
			conf = 0
		}
		m := Match{Pest: pests[i], Confidence: conf}
		if i == 0 {
			m.DetectedAs = preds[0].Class
		}
		related = append(related, m)
	}
	res := fromMatches(related, maxAlternatives)
	res.DetectedLabels = labels
	res.Note = "Powered by the object detection model. Detected: " + strings.Join(labels, ", ") + ". Showing related pests from database."
	return res, nil
}

func (p *DetectionProvider) detect(ctx context.Context, path string) ([]detection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("detection: read image: %w", err)
	}

	u := p.endpoint + "?api_key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(base64.StdEncoding.EncodeToString(data)))
	if err != nil {
		return nil, fmt.Errorf("detection: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("detection: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := &aiclient.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
		switch aiclient.Classify(upstream) {
		case aiclient.KindUnauthorized:
			return nil, fmt.Errorf("detection: API key invalid: %w", upstream)
		case aiclient.KindRateLimited:
			return nil, fmt.Errorf("detection: rate limit exceeded: %w", upstream)
		default:
			return nil, fmt.Errorf("detection: %w", upstream)
		}
	}

	var out detectionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("detection: decode response: %w", err)
	}
	return out.Predictions, nil
}
