package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/clipforge/internal/models"
)

// Sandbox confines file serving to the artifact storage tree. Artifact rows
// store absolute paths; before any byte-serving those paths are re-checked
// against the storage root so a corrupted or crafted row can never expose a
// file outside it.
type Sandbox struct {
	baseDir string
}

// NewSandbox creates a sandbox rooted at the storage base directory, which
// is created if it does not exist.
func NewSandbox(baseDir string) (*Sandbox, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, models.WrapError(models.KindStorage, err, "resolving storage root")
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, models.WrapError(models.KindStorage, err, "creating storage root")
	}
	return &Sandbox{baseDir: abs}, nil
}

// BaseDir returns the absolute storage root.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// Verify checks that a stored artifact path resolves inside the storage
// tree. Relative paths are rejected: artifact rows always hold absolute
// paths, so anything else is suspect.
func (s *Sandbox) Verify(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", models.NewError(models.KindValidation, "artifact path must be absolute")
	}
	clean := filepath.Clean(path)
	if clean != s.baseDir && !strings.HasPrefix(clean, s.baseDir+string(filepath.Separator)) {
		return "", models.NewError(models.KindValidation,
			"path %s escapes the storage root", filepath.Base(path))
	}
	return clean, nil
}

// Open opens an artifact file for reading after containment verification.
// A missing file reports a not-found condition, distinct from an escape.
func (s *Sandbox) Open(path string) (*os.File, error) {
	clean, err := s.Verify(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewError(models.KindNotFound,
				"artifact file %s not found", filepath.Base(path))
		}
		return nil, models.WrapError(models.KindStorage, err, "opening artifact file")
	}
	return f, nil
}

// Stat stats an artifact file after containment verification.
func (s *Sandbox) Stat(path string) (os.FileInfo, error) {
	clean, err := s.Verify(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewError(models.KindNotFound,
				"artifact file %s not found", filepath.Base(path))
		}
		return nil, models.WrapError(models.KindStorage, err, "statting artifact file")
	}
	return info, nil
}
