package services

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestUploadSaveStoresImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	svc, err := NewUploadService(dir, 1<<20)
	require.NoError(t, err)

	stored, err := svc.Save(bytes.NewReader(pngBytes(t)), "../Beetle Leaf.PNG")
	require.NoError(t, err)

	assert.Equal(t, "image/png", stored.MIME)
	assert.True(t, strings.HasSuffix(stored.Filename, "-beetle-leaf.png"), stored.Filename)
	assert.Equal(t, "/uploads/"+stored.Filename, stored.URL)
	assert.Equal(t, dir, filepath.Dir(stored.Path))

	data, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, stored.Size, int64(len(data)))
}

func TestUploadRejectsNonImage(t *testing.T) {
	svc, err := NewUploadService(t.TempDir(), 1<<20)
	require.NoError(t, err)

	_, err = svc.Save(strings.NewReader("just some text, not a picture"), "notes.png")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestUploadRejectsLargeFile(t *testing.T) {
	img := pngBytes(t)
	svc, err := NewUploadService(t.TempDir(), int64(len(img)-1))
	require.NoError(t, err)

	_, err = svc.Save(bytes.NewReader(img), "leaf.png")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	data, mime, err := svc.ReadImage(bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Len(t, data, len(img))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Whitefly Photo.jpg":    "whitefly-photo",
		`C:\Users\me\aphid.png`: "aphid",
		"...":                   "image",
		"":                      "image",
		"ça va?.jpeg":           "a-va",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
