package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	m "hydra.dev/pkg/hydra/internal/model"
)

// ErrNoReports means a reports directory holds no saved batch result.
var ErrNoReports = errors.New("no reports found")

// ReportStore persists finalized batch results.
type ReportStore interface {
	SaveReport(dir m.Path, result m.BatchResult) (m.Path, error)
	LoadReport(path m.Path) (m.BatchResult, error)
	// LatestReport returns the most recently written report in dir.
	LatestReport(dir m.Path) (m.Path, error)
}

type reportStore struct {
	fs SourceFSAdapter
}

// NewReportStore constructs a ReportStore writing YAML through fs.
func NewReportStore(fs SourceFSAdapter) ReportStore {
	return &reportStore{fs: fs}
}

// SaveReport writes result to dir/<run-id>.yaml and returns the file path.
func (s *reportStore) SaveReport(dir m.Path, result m.BatchResult) (m.Path, error) {
	if err := s.fs.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := s.fs.JoinPath(string(dir), result.RunID+".yaml")
	if err := s.fs.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return path, nil
}

func (s *reportStore) LoadReport(path m.Path) (m.BatchResult, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return m.BatchResult{}, fmt.Errorf("read report: %w", err)
	}

	var result m.BatchResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return m.BatchResult{}, fmt.Errorf("decode report %s: %w", path, err)
	}

	return result, nil
}

func (s *reportStore) LatestReport(dir m.Path) (m.Path, error) {
	var (
		latest   m.Path
		latestAt time.Time
	)

	err := s.fs.Walk(dir, false, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".yaml") {
			return nil
		}

		if latest == "" || info.ModTime().After(latestAt) {
			latest = m.Path(path)
			latestAt = info.ModTime()
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", ErrNoReports, dir)
		}

		return "", fmt.Errorf("scan reports: %w", err)
	}

	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoReports, dir)
	}

	return latest, nil
}
