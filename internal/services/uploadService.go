package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrFileTooLarge     = errors.New("File too large")
	ErrUnsupportedImage = errors.New("Only image files are allowed")
)

var allowedImageTypes = []string{"image/jpeg", "image/png"}

// StoredFile describes an upload written under the upload directory.
type StoredFile struct {
	Filename string
	Path     string
	URL      string
	MIME     string
	Size     int64
}

type UploadService interface {
	Save(r io.Reader, originalName string) (*StoredFile, error)
	ReadImage(r io.Reader, maxBytes int64) ([]byte, string, error)
}

type uploadService struct {
	dir      string
	maxBytes int64
}

func NewUploadService(dir string, maxBytes int64) (UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &uploadService{dir: dir, maxBytes: maxBytes}, nil
}

// ReadImage buffers at most maxBytes of r and checks that it is a jpeg or
// png. It returns the data and its MIME type.
func (s *uploadService) ReadImage(r io.Reader, maxBytes int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", ErrFileTooLarge
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, "", ErrUnsupportedImage
	}
	return data, mt.String(), nil
}

func (s *uploadService) Save(r io.Reader, originalName string) (*StoredFile, error) {
	data, mime, err := s.ReadImage(r, s.maxBytes)
	if err != nil {
		return nil, err
	}

	name := uuid.NewString() + "-" + sanitizeFilename(originalName) + mimetype.Lookup(mime).Extension()
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	log.Debug().Str("file", name).Int("bytes", len(data)).Str("mime", mime).Msg("Upload stored")
	return &StoredFile{
		Filename: name,
		Path:     path,
		URL:      "/uploads/" + name,
		MIME:     mime,
		Size:     int64(len(data)),
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// sanitizeFilename keeps a lowercase, path-free stem of the client name so
// filename hints survive into the stored name.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = unsafeChars.ReplaceAllString(strings.ToLower(base), "-")
	base = strings.Trim(base, "-")
	if len(base) > 64 {
		base = base[:64]
	}
	if base == "" || base == "." {
		base = "image"
	}
	return base
}
