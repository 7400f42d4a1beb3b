package identification

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"agroguard/internal/models"
	"agroguard/internal/vocabulary"
)

const simulatedNote = "Simulated identification: no identification service was available, so this result is a heuristic guess " +
	"for demonstration only. Configure an identification provider for real results."

// HeuristicProvider is the last-resort identifier. It screens out obvious
// non-photographs and then picks a catalog pest using filename hints and
// weighted randomness. Its results are always labelled as simulated.
type HeuristicProvider struct {
	catalog PestCatalog
	rand    RandomSource
	cfg     vocabulary.Heuristic
	invalid []string
}

func NewHeuristicProvider(catalog PestCatalog, vocab *vocabulary.Vocabulary, rnd RandomSource) *HeuristicProvider {
	if rnd == nil {
		rnd = DefaultRandom()
	}
	return &HeuristicProvider{
		catalog: catalog,
		rand:    rnd,
		cfg:     vocab.Heuristic,
		invalid: vocab.Filenames.Invalid,
	}
}

func (p *HeuristicProvider) Name() string { return "heuristic" }

func (p *HeuristicProvider) Identify(ctx context.Context, img Image) (*Result, error) {
	if res := p.screen(img); res != nil {
		return res, nil
	}

	if p.rand.Float64() < p.cfg.InconclusiveRate {
		return failure(ErrLabelInconclusive,
			"Unable to clearly identify pest-related content. Please try uploading a clearer photograph or different angle."), nil
	}

	pests, err := p.catalog.ListPests(ctx)
	if err != nil {
		return nil, fmt.Errorf("heuristic: load catalog: %w", err)
	}
	if len(pests) == 0 {
		return failure(ErrLabelPestNotFound, "The pest catalog is empty, so no identification could be made."), nil
	}

	filename := strings.ToLower(img.Filename)
	idx, band := p.pick(filename, pests)
	confidence := p.rand.Float64()*band.Spread + band.Min

	others := make([]int, 0, len(pests)-1)
	for i := range pests {
		if i != idx {
			others = append(others, i)
		}
	}
	for i := len(others) - 1; i > 0; i-- {
		j := p.rand.IntN(i + 1)
		others[i], others[j] = others[j], others[i]
	}
	if len(others) > p.cfg.Alternatives {
		others = others[:p.cfg.Alternatives]
	}

	matches := []Match{{Pest: pests[idx], Confidence: confidence}}
	for _, i := range others {
		drop := p.cfg.AlternativeDropMin + p.rand.Float64()*p.cfg.AlternativeDropSpread
		matches = append(matches, Match{Pest: pests[i], Confidence: confidence - drop})
	}

	res := fromMatches(matches, p.cfg.Alternatives)
	res.Note = simulatedNote
	return res, nil
}

// screen rejects files that are too large, carry screenshot-like names, or
// have screen-like dimensions.
func (p *HeuristicProvider) screen(img Image) *Result {
	info, err := os.Stat(img.Path)
	if err != nil {
		return validationFailed()
	}
	if info.Size() > p.cfg.MaxBytes {
		return failure(ErrLabelTooLarge,
			"Please upload a smaller image (under 5MB). Large files are often screenshots or high-resolution non-pest images. Take a photo directly of the pest or affected crop.")
	}

	if _, ok := vocabulary.ContainsAny(strings.ToLower(img.Filename), p.invalid); ok {
		return failure(ErrLabelInvalidType,
			"The filename suggests this is a screenshot or document. Please upload a real photograph of a pest, insect, or affected crop taken with a camera.")
	}

	f, err := os.Open(img.Path)
	if err != nil {
		return validationFailed()
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Height == 0 {
		return validationFailed()
	}

	aspect := float64(cfg.Width) / float64(cfg.Height)
	if aspect > p.cfg.MaxAspect || aspect < p.cfg.MinAspect ||
		(cfg.Width > p.cfg.ScreenWidth && cfg.Height > p.cfg.ScreenHeight) {
		return failure(ErrLabelScreenshot,
			"The image dimensions suggest this might be a screenshot or computer display. Please upload a real photograph of a pest, insect, or affected crop taken with a camera or phone.")
	}
	return nil
}

// pick walks the bias rules in order. A rule fires when the filename
// contains its hint or its random chance hits; the draw is skipped when the
// filename already matched.
func (p *HeuristicProvider) pick(filename string, pests []models.PopulatedPest) (int, vocabulary.Band) {
	for _, rule := range p.cfg.Bias {
		if strings.Contains(filename, rule.Filename) || p.rand.Float64() < rule.Chance {
			for i, pest := range pests {
				if strings.Contains(strings.ToLower(pest.Name), rule.Prefer) {
					return i, rule.Band
				}
			}
			if rule.FallbackIndex < len(pests) {
				return rule.FallbackIndex, rule.Band
			}
			return 0, rule.Band
		}
	}
	return p.rand.IntN(len(pests)), p.cfg.DefaultBand
}

func validationFailed() *Result {
	return failure(ErrLabelValidation,
		"Unable to process this image. Please ensure you are uploading a clear photograph of a pest, insect, or affected crop. Avoid screenshots, documents, or heavily processed images.")
}
