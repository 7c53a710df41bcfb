// Package sink persists record batches as CSV artifacts.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/use-agent/rfqscout/models"
)

const (
	filePrefix   = "alibaba_rfq_"
	fileExt      = ".csv"
	stampLayout  = "20060102_150405"
	utf8BOM      = "\ufeff"
	artifactPerm = 0o644
)

var artifactName = regexp.MustCompile(`^alibaba_rfq_\d{8}_\d{6}\.csv$`)

// ValidName reports whether name looks like an artifact this package wrote.
// It rejects anything with path separators.
func ValidName(name string) bool {
	return artifactName.MatchString(name)
}

// Filename is the artifact name for a write at t.
func Filename(t time.Time) string {
	return filePrefix + t.Format(stampLayout) + fileExt
}

// CSV writes batches to a directory. The clock is injectable for tests.
type CSV struct {
	dir string
	now func() time.Time
}

// New returns a CSV sink writing into dir. The directory must already exist;
// see EnsureDir.
func New(dir string) *CSV {
	return &CSV{dir: dir, now: time.Now}
}

// WithClock replaces the sink's clock.
func (s *CSV) WithClock(now func() time.Time) *CSV {
	s.now = now
	return s
}

// Dir is the artifact directory.
func (s *CSV) Dir() string { return s.dir }

// EnsureDir creates the artifact directory if it is missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.NewScrapeError(models.ErrCodeStorage, fmt.Sprintf("cannot create output directory %s", dir), err)
	}
	return nil
}

// Write serializes batch to a new artifact and returns its filename.
//
// The file starts with a UTF-8 BOM so spreadsheet tools detect the encoding,
// then the fixed header and one row per record. The file is created
// exclusively; an existing artifact is never overwritten. On any failure the
// partial file is removed and a STORAGE_ERROR is returned.
func (s *CSV) Write(batch models.RecordBatch) (string, error) {
	name := Filename(s.now())
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, artifactPerm)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeStorage, fmt.Sprintf("cannot create artifact %s", name), err)
	}

	werr := encode(f, batch)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Warn("failed to remove partial artifact", "path", path, "error", rmErr)
		}
		return "", models.NewScrapeError(models.ErrCodeStorage, fmt.Sprintf("cannot write artifact %s", name), err)
	}

	slog.Info("artifact written",
		"run_id", batch.RunID,
		"filename", name,
		"records", batch.Len(),
	)
	return name, nil
}

func encode(w io.Writer, batch models.RecordBatch) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns()); err != nil {
		return err
	}
	for i := range batch.Records {
		if err := cw.Write(batch.Records[i].Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Path returns the on-disk path of a valid artifact name.
func (s *CSV) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "invalid artifact name", nil)
	}
	return filepath.Join(s.dir, name), nil
}

// List returns the artifacts in the directory, newest first.
func (s *CSV) List() ([]models.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStorage, "cannot read output directory", err)
	}

	artifacts := make([]models.Artifact, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, models.Artifact{
			Filename:  e.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	// The timestamp in the name sorts lexically.
	slices.SortFunc(artifacts, func(a, b models.Artifact) int {
		return strings.Compare(b.Filename, a.Filename)
	})
	return artifacts, nil
}
