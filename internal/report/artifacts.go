package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/retry"
)

// ArtifactStore writes generated report files under a single directory.
// Files are named <reportID>_<unixnano>.<ext> and never overwritten.
type ArtifactStore struct {
	dir   string
	retry retry.Options
	now   func() time.Time
}

func NewArtifactStore(dir string, opts retry.Options) *ArtifactStore {
	return &ArtifactStore{dir: dir, retry: opts, now: time.Now}
}

func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Write stores content for the report and returns the artifact record,
// not yet persisted.
func (s *ArtifactStore) Write(ctx context.Context, reportID string, format models.ReportFormat, content []byte) (*models.ReportArtifact, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, apperrors.TransientIO("write artifact", fmt.Errorf("failed to create output directory: %w", err))
	}

	path, err := retry.DoValue(ctx, s.retry, "write artifact", func(ctx context.Context) (string, error) {
		return s.writeFile(reportID, format, content)
	})
	if err != nil {
		return nil, apperrors.TransientIO("write artifact", err)
	}

	sum := sha256.Sum256(content)
	return &models.ReportArtifact{
		ReportID:    reportID,
		FilePath:    path,
		Size:        int64(len(content)),
		Checksum:    hex.EncodeToString(sum[:]),
		GeneratedAt: s.now(),
	}, nil
}

func (s *ArtifactStore) writeFile(reportID string, format models.ReportFormat, content []byte) (string, error) {
	name := fmt.Sprintf("%s_%d.%s", reportID, s.now().UnixNano(), format.Extension())
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Remove deletes an artifact file. A file that is already gone is not an
// error.
func (s *ArtifactStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the artifact file is present on disk.
func (s *ArtifactStore) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
