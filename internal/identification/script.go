package identification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"agroguard/internal/vocabulary"
)

const defaultScriptConfidence = 0.8

// ScriptProvider runs a local model script with the image path as its only
// argument. The script prints either {"prediction": "...", "confidence": n}
// or a bare label.
type ScriptProvider struct {
	interpreter string
	script      string
	dir         string
	timeout     time.Duration
	catalog     PestCatalog
	matcher     *Matcher
	analyzer    *Analyzer
}

func NewScriptProvider(interpreter, script, dir string, catalog PestCatalog, vocab *vocabulary.Vocabulary) *ScriptProvider {
	if dir == "" {
		dir = filepath.Dir(script)
	}
	return &ScriptProvider{
		interpreter: interpreter,
		script:      script,
		dir:         dir,
		timeout:     30 * time.Second,
		catalog:     catalog,
		matcher:     NewMatcher(vocab),
		analyzer:    NewAnalyzer(vocab),
	}
}

func (p *ScriptProvider) Name() string { return "script" }

type scriptOutput struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

func (p *ScriptProvider) Identify(ctx context.Context, img Image) (*Result, error) {
	out, err := p.run(ctx, img.Path)
	if err != nil {
		return nil, err
	}

	if ok, reason, _ := p.analyzer.NonAgricultural(out.Prediction); ok {
		res := notAgricultural(reason)
		res.FullAnalysis = out.Prediction
		return res, nil
	}

	pests, err := p.catalog.ListPests(ctx)
	if err != nil {
		return nil, fmt.Errorf("script: load catalog: %w", err)
	}
	matches := p.matcher.Score(Prediction{Label: out.Prediction, Confidence: out.Confidence}, pests, p.Name())
	if len(matches) == 0 {
		res := failure(ErrLabelPestNotFound,
			fmt.Sprintf("Local model detected %s, but no matching pest was found in the database.", out.Prediction))
		res.DetectedLabels = []string{out.Prediction}
		return res, nil
	}

	res := fromMatches(matches, maxAlternatives)
	res.DetectedLabels = []string{out.Prediction}
	res.Note = "Powered by the local Crop Doctor model"
	return res, nil
}

func (p *ScriptProvider) run(ctx context.Context, imagePath string) (scriptOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return scriptOutput{}, fmt.Errorf("script: resolve image path: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.interpreter, p.script, absImage)
	cmd.Dir = p.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return scriptOutput{}, fmt.Errorf("script: timed out after %s: %w", p.timeout, ctx.Err())
		}
		return scriptOutput{}, fmt.Errorf("script: model failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	raw := strings.TrimSpace(stdout.String())
	var out scriptOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		out = scriptOutput{Prediction: raw, Confidence: defaultScriptConfidence}
	}
	out.Prediction = strings.TrimSpace(out.Prediction)
	if out.Prediction == "" {
		return scriptOutput{}, errors.New("script: no prediction from model")
	}
	if out.Confidence <= 0 {
		out.Confidence = defaultScriptConfidence
	}
	if out.Confidence > 1 {
		out.Confidence /= 100
	}
	return out, nil
}
