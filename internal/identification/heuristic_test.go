package identification

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicFilenameBias(t *testing.T) {
	catalog := testCatalog()
	rnd := &scriptedRandom{floats: []float64{0.5, 0.5, 0, 1}}
	p := NewHeuristicProvider(catalog, testVocab(t), rnd)

	res, err := p.Identify(context.Background(), writePNG(t, "beetle.png", 100, 100))

	require.NoError(t, err)
	require.NotNil(t, res.PrimaryMatch)
	assert.Equal(t, "Colorado Potato Beetle", res.PrimaryMatch.Pest.Name)
	assert.InDelta(t, 82.5, res.PrimaryMatch.Confidence, 0.001)
	require.Len(t, res.AlternativeMatches, 2)
	assert.InDelta(t, 67.5, res.AlternativeMatches[0].Confidence, 0.001)
	assert.InDelta(t, 57.5, res.AlternativeMatches[1].Confidence, 0.001)
	for _, alt := range res.AlternativeMatches {
		assert.NotEqual(t, res.PrimaryMatch.Pest.ID, alt.Pest.ID)
	}
	assert.Contains(t, res.Note, "Simulated")
}

func TestHeuristicRandomPick(t *testing.T) {
	// inconclusive check, then the three bias chances all miss
	rnd := &scriptedRandom{floats: []float64{0.5, 0.9, 0.9, 0.9, 0}, ints: []int{1}}
	p := NewHeuristicProvider(testCatalog(), testVocab(t), rnd)

	res, err := p.Identify(context.Background(), writePNG(t, "leaf.png", 120, 90))

	require.NoError(t, err)
	require.NotNil(t, res.PrimaryMatch)
	assert.Equal(t, "Fall Armyworm", res.PrimaryMatch.Pest.Name)
	assert.InDelta(t, 60.0, res.PrimaryMatch.Confidence, 0.001)
}

func TestHeuristicWormChanceFallsBackToIndex(t *testing.T) {
	pests := testPests()[:2]
	pests[1].Name = "Leaf Miner"
	// beetle chance misses, worm chance hits
	rnd := &scriptedRandom{floats: []float64{0.5, 0.9, 0.1, 0}}
	p := NewHeuristicProvider(&fakeCatalog{pests: pests}, testVocab(t), rnd)

	res, err := p.Identify(context.Background(), writePNG(t, "photo.png", 100, 100))

	require.NoError(t, err)
	assert.Equal(t, "Leaf Miner", res.PrimaryMatch.Pest.Name)
	assert.InDelta(t, 70.0, res.PrimaryMatch.Confidence, 0.001)
}

func TestHeuristicRejections(t *testing.T) {
	dir := t.TempDir()
	large := filepath.Join(dir, "pest.jpg")
	require.NoError(t, os.WriteFile(large, make([]byte, 6<<20), 0o644))
	garbage := filepath.Join(dir, "pest.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))

	tests := []struct {
		name  string
		img   Image
		label string
	}{
		{"too large", NewImage(large), ErrLabelTooLarge},
		{"screenshot filename", writePNG(t, "Screenshot_01.png", 100, 100), ErrLabelInvalidType},
		{"wide panorama", writePNG(t, "field.png", 500, 100), ErrLabelScreenshot},
		{"desktop size", writePNG(t, "field.png", 2600, 1500), ErrLabelScreenshot},
		{"undecodable", NewImage(garbage), ErrLabelValidation},
		{"missing file", NewImage(filepath.Join(dir, "gone.jpg")), ErrLabelValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := testCatalog()
			p := NewHeuristicProvider(catalog, testVocab(t), &scriptedRandom{})

			res, err := p.Identify(context.Background(), tt.img)

			require.NoError(t, err)
			assert.Equal(t, tt.label, res.Error)
			assert.Nil(t, res.PrimaryMatch)
			assert.Empty(t, res.AlternativeMatches)
			assert.Zero(t, catalog.calls)
		})
	}
}

func TestHeuristicInconclusive(t *testing.T) {
	catalog := testCatalog()
	p := NewHeuristicProvider(catalog, testVocab(t), &scriptedRandom{floats: []float64{0.01}})

	res, err := p.Identify(context.Background(), writePNG(t, "leaf.png", 100, 100))

	require.NoError(t, err)
	assert.Equal(t, ErrLabelInconclusive, res.Error)
	assert.Zero(t, catalog.calls)
}

func TestHeuristicEmptyCatalog(t *testing.T) {
	p := NewHeuristicProvider(&fakeCatalog{}, testVocab(t), &scriptedRandom{floats: []float64{0.5}})

	res, err := p.Identify(context.Background(), writePNG(t, "leaf.png", 100, 100))

	require.NoError(t, err)
	assert.Equal(t, ErrLabelPestNotFound, res.Error)
}

func TestHeuristicCatalogError(t *testing.T) {
	p := NewHeuristicProvider(&fakeCatalog{err: errors.New("db down")}, testVocab(t), &scriptedRandom{floats: []float64{0.5}})

	_, err := p.Identify(context.Background(), writePNG(t, "leaf.png", 100, 100))
	assert.Error(t, err)
}
