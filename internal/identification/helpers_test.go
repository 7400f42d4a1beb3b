package identification

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/models"
	"agroguard/internal/vocabulary"
)

type fakeCatalog struct {
	pests []models.PopulatedPest
	err   error
	calls int
}

func (c *fakeCatalog) ListPests(ctx context.Context) ([]models.PopulatedPest, error) {
	c.calls++
	return c.pests, c.err
}

func testPests() []models.PopulatedPest {
	return []models.PopulatedPest{
		{
			ID:             primitive.NewObjectID(),
			Name:           "Colorado Potato Beetle",
			ScientificName: "Leptinotarsa decemlineata",
			Description:    "Striped beetle that defoliates potato plants.",
		},
		{
			ID:             primitive.NewObjectID(),
			Name:           "Fall Armyworm",
			ScientificName: "Spodoptera frugiperda",
			Description:    "Caterpillar that feeds on maize leaves.",
		},
		{
			ID:             primitive.NewObjectID(),
			Name:           "Whitefly",
			ScientificName: "Bemisia tabaci",
			Description:    "Small sap-sucking insect found under leaves.",
		},
	}
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{pests: testPests()}
}

func testVocab(t *testing.T) *vocabulary.Vocabulary {
	t.Helper()
	return vocabulary.Default()
}

// writePNG writes a blank w x h PNG under a temp dir and returns it as an Image.
func writePNG(t *testing.T, name string, w, h int) Image {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	return NewImage(path)
}

// scriptedRandom replays fixed draws. Once a queue is empty Float64 returns
// 0.99 and IntN returns 0.
type scriptedRandom struct {
	floats []float64
	ints   []int
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.99
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *scriptedRandom) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	i := r.ints[0]
	r.ints = r.ints[1:]
	if i >= n {
		return n - 1
	}
	return i
}
