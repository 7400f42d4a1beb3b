// Package vocabulary holds the versioned keyword lists and weights shared by
// pest identification and the chat assistant.
package vocabulary

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultYAML []byte

type Profile struct {
	Type            float64  `yaml:"type"`
	Generic         float64  `yaml:"generic"`
	ExtraTypeTokens []string `yaml:"extra_type_tokens"`
}

type Matching struct {
	Name          float64            `yaml:"name"`
	Scientific    float64            `yaml:"scientific"`
	Description   float64            `yaml:"description"`
	TypeTokens    []string           `yaml:"type_tokens"`
	GenericTokens []string           `yaml:"generic_tokens"`
	Profiles      map[string]Profile `yaml:"profiles"`
}

type NonAgricultural struct {
	Indicators         []string `yaml:"indicators"`
	ComputerTerms      []string `yaml:"computer_terms"`
	ComputerConfidence float64  `yaml:"computer_confidence"`
	Negations          []string `yaml:"negations"`
	NegationConfidence float64  `yaml:"negation_confidence"`
}

type Analysis struct {
	DefaultConfidence    float64         `yaml:"default_confidence"`
	PestConfidence       float64         `yaml:"pest_confidence"`
	DiseaseConfidence    float64         `yaml:"disease_confidence"`
	MinResponseLength    int             `yaml:"min_response_length"`
	RawFallbackMinLength int             `yaml:"raw_fallback_min_length"`
	RawFallbackWindow    int             `yaml:"raw_fallback_window"`
	RawFallbackPhrases   []string        `yaml:"raw_fallback_phrases"`
	NonAgricultural      NonAgricultural `yaml:"non_agricultural"`
	PestKeywords         []string        `yaml:"pest_keywords"`
	DiseaseKeywords      []string        `yaml:"disease_keywords"`
}

type Filenames struct {
	Screenshot []string `yaml:"screenshot"`
	Invalid    []string `yaml:"invalid"`
}

type Band struct {
	Min    float64 `yaml:"min"`
	Spread float64 `yaml:"spread"`
}

type BiasRule struct {
	Filename      string  `yaml:"filename"`
	Chance        float64 `yaml:"chance"`
	Prefer        string  `yaml:"prefer"`
	FallbackIndex int     `yaml:"fallback_index"`
	Band          `yaml:",inline"`
}

type Heuristic struct {
	MaxBytes              int64      `yaml:"max_bytes"`
	InconclusiveRate      float64    `yaml:"inconclusive_rate"`
	MaxAspect             float64    `yaml:"max_aspect"`
	MinAspect             float64    `yaml:"min_aspect"`
	ScreenWidth           int        `yaml:"screen_width"`
	ScreenHeight          int        `yaml:"screen_height"`
	Alternatives          int        `yaml:"alternatives"`
	AlternativeDropMin    float64    `yaml:"alternative_drop_min"`
	AlternativeDropSpread float64    `yaml:"alternative_drop_spread"`
	Bias                  []BiasRule `yaml:"bias"`
	DefaultBand           Band       `yaml:"default_band"`
}

type Detection struct {
	MinConfidence      float64 `yaml:"min_confidence"`
	RelatedSuggestions int     `yaml:"related_suggestions"`
	RelatedStep        float64 `yaml:"related_step"`
}

type Vision struct {
	MinLabelScore         float64  `yaml:"min_label_score"`
	SignificantTextLength int      `yaml:"significant_text_length"`
	InvalidKeywords       []string `yaml:"invalid_keywords"`
	PestKeywords          []string `yaml:"pest_keywords"`
	CropKeywords          []string `yaml:"crop_keywords"`
}

type Chat struct {
	DefaultLanguage   string            `yaml:"default_language"`
	TextHistory       int               `yaml:"text_history"`
	ImageHistory      int               `yaml:"image_history"`
	MinResponseLength int               `yaml:"min_response_length"`
	Languages         map[string]string `yaml:"languages"`
}

type Vocabulary struct {
	Version   int       `yaml:"version"`
	Matching  Matching  `yaml:"matching"`
	Analysis  Analysis  `yaml:"analysis"`
	Filenames Filenames `yaml:"filenames"`
	Heuristic Heuristic `yaml:"heuristic"`
	Detection Detection `yaml:"detection"`
	Vision    Vision    `yaml:"vision"`
	Chat      Chat      `yaml:"chat"`
}

// Parse decodes a vocabulary document and normalises it: keywords are
// lowercased and keyword lists used for first-match scans are ordered
// longest first.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if v.Version == 0 {
		return nil, fmt.Errorf("vocabulary has no version")
	}
	if v.Matching.Name == 0 || v.Matching.Scientific == 0 || v.Matching.Description == 0 {
		return nil, fmt.Errorf("vocabulary matching weights are incomplete")
	}
	if _, ok := v.Chat.Languages[v.Chat.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default chat language %q has no instruction", v.Chat.DefaultLanguage)
	}

	v.Analysis.PestKeywords = longestFirst(lower(v.Analysis.PestKeywords))
	v.Analysis.DiseaseKeywords = longestFirst(lower(v.Analysis.DiseaseKeywords))
	v.Matching.TypeTokens = lower(v.Matching.TypeTokens)
	v.Matching.GenericTokens = lower(v.Matching.GenericTokens)
	return &v, nil
}

var (
	defaultOnce  sync.Once
	defaultVocab *Vocabulary
)

// Default returns the embedded vocabulary. It panics if the embedded file is
// invalid, which is caught by the package tests.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Parse(defaultYAML)
		if err != nil {
			panic(err)
		}
		defaultVocab = v
	})
	return defaultVocab
}

// Profile returns the matching weights for a provider, falling back to the
// base type weight of 0.6 when the provider has no entry.
func (v *Vocabulary) Profile(name string) Profile {
	if p, ok := v.Matching.Profiles[name]; ok {
		return p
	}
	return Profile{Type: 0.60}
}

// LanguageInstruction returns the reply-language line for lang, using the
// default language for anything unsupported.
func (v *Vocabulary) LanguageInstruction(lang string) (string, string) {
	if s, ok := v.Chat.Languages[lang]; ok {
		return lang, s
	}
	return v.Chat.DefaultLanguage, v.Chat.Languages[v.Chat.DefaultLanguage]
}

func (v *Vocabulary) SupportedLanguages() []string {
	out := make([]string, 0, len(v.Chat.Languages))
	for k := range v.Chat.Languages {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ContainsAny reports the first needle contained in haystack.
func ContainsAny(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return n, true
		}
	}
	return "", false
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func longestFirst(in []string) []string {
	out := append([]string(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}
