package resource

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage persists uploaded files under a resource-scoped directory and
// returns the relative path stored in the entity's column.
type Storage struct {
	baseDir string
	logger  *slog.Logger
}

func NewStorage(baseDir string, logger *slog.Logger) *Storage {
	if baseDir == "" {
		baseDir = "storage"
	}
	return &Storage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes the upload to <base>/<resourceKey>/<uuid><ext> and returns
// the path relative to the storage root.
func (s *Storage) Save(resourceKey, originalName string, content io.Reader) (string, error) {
	dir := filepath.Join(s.baseDir, resourceKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	name := uuid.NewString() + ext
	fullPath := filepath.Join(dir, name)

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	return filepath.Join(resourceKey, name), nil
}

// Remove deletes a previously stored file. Cleanup is best-effort, a
// failure is logged and never fails the surrounding mutation.
func (s *Storage) Remove(storedPath string) {
	if storedPath == "" {
		return
	}
	fullPath := filepath.Join(s.baseDir, filepath.Clean(storedPath))
	if !strings.HasPrefix(fullPath, filepath.Clean(s.baseDir)+string(os.PathSeparator)) {
		s.logger.Warn("refusing to remove file outside storage root", "path", storedPath)
		return
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove stored file", "path", storedPath, "error", err)
	}
}
