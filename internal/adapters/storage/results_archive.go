// Package storage archives final experiment results on local disk.
package storage

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/util"
)

// ResultsArchive stores one gzipped JSON summary per experiment.
type ResultsArchive struct {
	baseDir string
}

// NewResultsArchive creates an archive under dir, or under the XDG data
// directory when dir is empty.
func NewResultsArchive(dir string) (*ResultsArchive, error) {
	if dir == "" {
		baseDir, err := util.GetXDGDataDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(baseDir, "results")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &ResultsArchive{baseDir: dir}, nil
}

// Store writes summary, replacing any earlier archive for the experiment.
func (s *ResultsArchive) Store(ctx context.Context, summary *domain.ResultsSummary) (string, error) {
	destPath := s.getPath(summary.ExperimentID)
	tmpPath := destPath + ".tmp"

	dest, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() { _ = dest.Close() }()

	gw := gzip.NewWriter(dest)
	if err := json.NewEncoder(gw).Encode(summary); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	if err := gw.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}
	if err := dest.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close archive file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}
	return destPath, nil
}

// Get returns the archived summary, or (nil, nil) when none exists.
func (s *ResultsArchive) Get(ctx context.Context, experimentID string) (*domain.ResultsSummary, error) {
	file, err := os.Open(s.getPath(experimentID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	defer func() { _ = file.Close() }()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() { _ = gr.Close() }()

	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var summary domain.ResultsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	return &summary, nil
}

func (s *ResultsArchive) Delete(ctx context.Context, experimentID string) error {
	if err := os.Remove(s.getPath(experimentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	return nil
}

func (s *ResultsArchive) getPath(experimentID string) string {
	return filepath.Join(s.baseDir, filepath.Base(experimentID)+".json.gz")
}
