package identification

import (
	"path/filepath"

	"agroguard/internal/models"
)

// Result error labels returned to clients.
const (
	ErrLabelNotAgricultural = "Not a pest or crop image"
	ErrLabelPestNotFound    = "Pest not found in database"
	ErrLabelNoPests         = "No pests detected"
	ErrLabelTooLarge        = "Image file too large"
	ErrLabelInvalidType     = "Invalid image type detected"
	ErrLabelScreenshot      = "Possible screenshot detected"
	ErrLabelValidation      = "Image validation failed"
	ErrLabelInconclusive    = "Image analysis inconclusive"
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Match is a catalog pest with a confidence percentage in [0,100].
type Match struct {
	Pest        models.PopulatedPest `json:"pest"`
	Confidence  float64              `json:"confidence"`
	DetectedAs  string               `json:"detectedAs,omitempty"`
	BoundingBox *BoundingBox         `json:"boundingBox,omitempty"`
}

type Result struct {
	PrimaryMatch       *Match   `json:"primaryMatch"`
	AlternativeMatches []Match  `json:"alternativeMatches"`
	AnalysisComplete   bool     `json:"analysisComplete"`
	DetectedLabels     []string `json:"detectedLabels,omitempty"`
	Error              string   `json:"error,omitempty"`
	Note               string   `json:"note,omitempty"`
	FullAnalysis       string   `json:"fullAnalysis,omitempty"`
	Provider           string   `json:"provider,omitempty"`
}

func (r *Result) NotAgricultural() bool {
	return r != nil && r.Error == ErrLabelNotAgricultural
}

// failure builds a result that carries no matches.
func failure(label, note string) *Result {
	return &Result{
		AlternativeMatches: []Match{},
		AnalysisComplete:   true,
		Error:              label,
		Note:               note,
	}
}

// fromMatches turns sorted matches into a result with the top entry as the
// primary match and up to maxAlternatives following it.
func fromMatches(matches []Match, maxAlternatives int) *Result {
	res := &Result{AlternativeMatches: []Match{}, AnalysisComplete: true}
	if len(matches) == 0 {
		return res
	}
	primary := matches[0]
	res.PrimaryMatch = &primary
	rest := matches[1:]
	if len(rest) > maxAlternatives {
		rest = rest[:maxAlternatives]
	}
	res.AlternativeMatches = append(res.AlternativeMatches, rest...)
	return res
}

// Image is an uploaded file on disk.
type Image struct {
	Path     string
	Filename string
}

func NewImage(path string) Image {
	return Image{Path: path, Filename: filepath.Base(path)}
}
