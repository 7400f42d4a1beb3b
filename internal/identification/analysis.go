package identification

import (
	"regexp"
	"strconv"
	"strings"

	"agroguard/internal/vocabulary"
)

const (
	reasonComputer        = "Screenshot or computer-related content detected"
	reasonNotAgricultural = "AI determined this is not agricultural content"
	unknownIssue          = "Unknown issue"
)

var confidencePattern = regexp.MustCompile(`(?i)(\d+)%|confidence[:\s]*(\d+\.?\d*)`)

// PestInfo is what a free-text analysis says about the image.
type PestInfo struct {
	Name            string
	Confidence      float64
	NotAgricultural bool
	Reason          string
}

// Analyzer reads free-text answers from language models.
type Analyzer struct {
	vocab       *vocabulary.Vocabulary
	rawFallback *regexp.Regexp
}

func NewAnalyzer(vocab *vocabulary.Vocabulary) *Analyzer {
	quoted := make([]string, 0, len(vocab.Analysis.RawFallbackPhrases))
	for _, p := range vocab.Analysis.RawFallbackPhrases {
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	return &Analyzer{
		vocab:       vocab,
		rawFallback: regexp.MustCompile(`(?i)` + strings.Join(quoted, "|")),
	}
}

// NonAgricultural checks text for a not-agricultural verdict.
func (a *Analyzer) NonAgricultural(text string) (bool, string, float64) {
	na := a.vocab.Analysis.NonAgricultural
	lower := strings.ToLower(text)
	if _, ok := vocabulary.ContainsAny(lower, na.Indicators); !ok {
		return false, "", 0
	}
	if _, ok := vocabulary.ContainsAny(lower, na.ComputerTerms); ok {
		return true, reasonComputer, na.ComputerConfidence
	}
	if _, ok := vocabulary.ContainsAny(lower, na.Negations); ok {
		return true, reasonNotAgricultural, na.NegationConfidence
	}
	return false, "", 0
}

// Extract scans text for the not-agricultural verdict first, then for the
// longest pest keyword, then the longest disease keyword. An explicit
// percentage or "confidence: n" in the text overrides the keyword
// confidence.
func (a *Analyzer) Extract(text string) PestInfo {
	if ok, reason, conf := a.NonAgricultural(text); ok {
		return PestInfo{Name: "NOT_A_PEST", Confidence: conf, NotAgricultural: true, Reason: reason}
	}

	an := a.vocab.Analysis
	lower := strings.ToLower(text)
	info := PestInfo{Name: unknownIssue, Confidence: an.DefaultConfidence}

	if kw, ok := vocabulary.ContainsAny(lower, an.PestKeywords); ok {
		info.Name, info.Confidence = kw, an.PestConfidence
	} else if kw, ok := vocabulary.ContainsAny(lower, an.DiseaseKeywords); ok {
		info.Name, info.Confidence = kw, an.DiseaseConfidence
	}

	if m := confidencePattern.FindStringSubmatch(lower); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 && v <= 100 {
			info.Confidence = v / 100
		}
	}
	return info
}

// RecoverText is used when a stream carried no deltas. It returns a window
// of the raw body starting at the first verdict-like phrase, or the whole
// body when it is long enough to be an answer.
func (a *Analyzer) RecoverText(raw string) string {
	an := a.vocab.Analysis
	if loc := a.rawFallback.FindStringIndex(raw); loc != nil {
		end := loc[0] + an.RawFallbackWindow
		if end > len(raw) {
			end = len(raw)
		}
		return raw[loc[0]:end]
	}
	if len(raw) > an.RawFallbackMinLength {
		return raw
	}
	return ""
}

// LooksLikeScreenshot reports whether the filename hints at a screen capture.
func (a *Analyzer) LooksLikeScreenshot(filename string) bool {
	_, ok := vocabulary.ContainsAny(strings.ToLower(filename), a.vocab.Filenames.Screenshot)
	return ok
}
