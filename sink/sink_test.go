package sink

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/use-agent/rfqscout/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func readArtifact(t *testing.T, path string) (bom bool, rows [][]string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	bom = bytes.HasPrefix(raw, []byte("\xef\xbb\xbf"))
	rows, err = csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))).ReadAll()
	require.NoError(t, err)
	return bom, rows
}

func sampleBatch(at time.Time) models.RecordBatch {
	full := models.NewRecord(at)
	full.ID = "1"
	full.Title = "Packaging boxes, custom print"
	full.BuyerName = "Søren Ødegård"
	full.Country = "中国"
	full.InquiryURL = "https://rfq.alibaba.com/rfq/detail.htm?id=1"

	sparse := models.NewRecord(at)
	sparse.Title = "Cotton \"tote\" bags"

	return models.RecordBatch{RunID: "run-1", StartedAt: at, Records: []models.Record{*full, *sparse}}
}

func TestWrite_Artifact(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 10, 16, 8, 4, 5, 0, time.Local)
	s := New(dir).WithClock(fixedClock(at))

	name, err := s.Write(sampleBatch(at))
	require.NoError(t, err)
	require.Equal(t, "alibaba_rfq_20261016_080405.csv", name)
	require.True(t, ValidName(name))

	bom, rows := readArtifact(t, filepath.Join(dir, name))
	require.True(t, bom, "artifact must start with a UTF-8 BOM")
	require.Len(t, rows, 3)
	require.Equal(t, models.Columns(), rows[0])

	require.Equal(t, "Søren Ødegård", rows[1][2])
	require.Equal(t, "中国", rows[1][7])
	require.Equal(t, `Cotton "tote" bags`, rows[2][1])
	require.Equal(t, models.Unavailable, rows[2][2])
	require.Equal(t, "2026-10-16", rows[2][12])
}

func TestWrite_ColumnOrderStableAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	first := time.Date(2026, 10, 16, 8, 4, 5, 0, time.Local)

	onlyTitle := models.NewRecord(first)
	onlyTitle.Title = "x"
	everything := sampleBatch(first)

	s := New(dir).WithClock(fixedClock(first))
	a, err := s.Write(models.RecordBatch{Records: []models.Record{*onlyTitle}})
	require.NoError(t, err)

	s.WithClock(fixedClock(first.Add(time.Second)))
	b, err := s.Write(everything)
	require.NoError(t, err)

	require.NotEqual(t, a, b, "runs at different seconds must produce different files")

	_, rowsA := readArtifact(t, filepath.Join(dir, a))
	_, rowsB := readArtifact(t, filepath.Join(dir, b))
	require.Equal(t, rowsA[0], rowsB[0])
	for _, row := range append(rowsA[1:], rowsB[1:]...) {
		require.Len(t, row, len(models.Columns()))
	}
}

func TestWrite_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 10, 16, 8, 4, 5, 0, time.Local)
	s := New(dir).WithClock(fixedClock(at))

	name, err := s.Write(sampleBatch(at))
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	_, err = s.Write(models.RecordBatch{})
	require.True(t, models.HasCode(err, models.ErrCodeStorage), "got %v", err)

	after, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestWrite_MissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does", "not", "exist"))

	_, err := s.Write(sampleBatch(time.Now()))
	require.True(t, models.HasCode(err, models.ErrCodeStorage), "got %v", err)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scraped_data")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestList_NewestFirstAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"alibaba_rfq_20260101_000000.csv",
		"alibaba_rfq_20261231_235959.csv",
		"notes.txt",
		"alibaba_rfq_20260615_120000.csv",
		"alibaba_rfq_latest.csv",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	got, err := New(dir).List()
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "alibaba_rfq_20261231_235959.csv", got[0].Filename)
	require.Equal(t, "alibaba_rfq_20260615_120000.csv", got[1].Filename)
	require.Equal(t, "alibaba_rfq_20260101_000000.csv", got[2].Filename)
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"alibaba_rfq_20261016_080405.csv", true},
		{"../alibaba_rfq_20261016_080405.csv", false},
		{"alibaba_rfq_20261016_080405.csv/..", false},
		{"alibaba_rfq_2026101_080405.csv", false},
		{"other.csv", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ValidName(tt.name))
		})
	}
}
