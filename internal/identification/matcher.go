package identification

import (
	"sort"
	"strings"

	"agroguard/internal/models"
	"agroguard/internal/vocabulary"
)

const maxAlternatives = 3

// Matcher scores a free-text prediction against the pest catalog.
type Matcher struct {
	vocab *vocabulary.Vocabulary
}

func NewMatcher(vocab *vocabulary.Vocabulary) *Matcher {
	return &Matcher{vocab: vocab}
}

// Prediction is one label produced by a provider. Confidence is in [0,1].
type Prediction struct {
	Label       string
	Confidence  float64
	BoundingBox *BoundingBox
}

// Score returns the pests matching a single prediction, best first.
func (m *Matcher) Score(pred Prediction, pests []models.PopulatedPest, profile string) []Match {
	return m.ScoreAll([]Prediction{pred}, pests, profile)
}

// ScoreAll matches several predictions, keeping the best score per pest.
// Ties keep catalog order.
func (m *Matcher) ScoreAll(preds []Prediction, pests []models.PopulatedPest, profile string) []Match {
	p := m.vocab.Profile(profile)
	types := append(append([]string(nil), m.vocab.Matching.TypeTokens...), p.ExtraTypeTokens...)

	best := make(map[int]Match)
	for _, pred := range preds {
		label := strings.ToLower(strings.TrimSpace(pred.Label))
		if label == "" {
			continue
		}
		for i, pest := range pests {
			weight := m.weight(label, pest, p, types)
			if weight == 0 {
				continue
			}
			score := pred.Confidence * 100 * weight
			if prev, ok := best[i]; ok && prev.Confidence >= score {
				continue
			}
			best[i] = Match{Pest: pest, Confidence: score, DetectedAs: pred.Label, BoundingBox: pred.BoundingBox}
		}
	}

	idx := make([]int, 0, len(best))
	for i := range best {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]Match, 0, len(idx))
	for _, i := range idx {
		out = append(out, best[i])
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Confidence > out[b].Confidence })
	return out
}

func (m *Matcher) weight(label string, pest models.PopulatedPest, p vocabulary.Profile, types []string) float64 {
	name := strings.ToLower(pest.Name)
	scientific := strings.ToLower(pest.ScientificName)

	switch {
	case name != "" && (strings.Contains(label, name) || strings.Contains(name, label)):
		return m.vocab.Matching.Name
	case scientific != "" && (strings.Contains(label, scientific) || strings.Contains(scientific, label)):
		return m.vocab.Matching.Scientific
	case pest.Description != "" && strings.Contains(strings.ToLower(pest.Description), label):
		return m.vocab.Matching.Description
	}

	labelType, ok1 := vocabulary.ContainsAny(label, types)
	pestType, ok2 := vocabulary.ContainsAny(name, types)
	if ok1 && ok2 && labelType == pestType {
		return p.Type
	}
	if p.Generic > 0 {
		if _, ok := vocabulary.ContainsAny(label, m.vocab.Matching.GenericTokens); ok {
			return p.Generic
		}
	}
	return 0
}
