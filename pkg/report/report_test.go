package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *Summary {
	s := &Summary{RunID: "run-1"}
	base := Result{Descriptor: "ending in 7890", AccountName: "Checking"}

	ok := base
	ok.Status = Imported
	ok.Files = []FileResult{
		{Key: "transactions/ending in 7890/a.csv", Records: 3, Created: 2, Duplicates: 1, Archived: true},
		{Key: "transactions/ending in 7890/b.csv", Records: 0, Archived: true},
	}
	s.Add(ok)
	s.Add(Result{Descriptor: "ending in 1111", AccountName: "Savings"}.Skip("account not found"))
	s.Add(Result{Descriptor: "ending in 2222", AccountName: "Card"}.Fail(errors.New("download failed")))
	return s
}

func TestSummaryCounts(t *testing.T) {
	s := sampleSummary()

	assert.Equal(t, 1, s.ImportedCount())
	assert.Equal(t, 1, s.SkippedCount())
	assert.Equal(t, 1, s.FailedCount())

	files, created, duplicates := s.Totals()
	assert.Equal(t, 2, files)
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, duplicates)

	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "download failed")
}

func TestSummaryErrNilWithoutFailures(t *testing.T) {
	s := &Summary{}
	s.Add(Result{Descriptor: "x"}.Skip("no files"))
	assert.NoError(t, s.Err())
}

func TestSummaryPrint(t *testing.T) {
	var buf bytes.Buffer
	sampleSummary().Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "ending in 7890")
	assert.Contains(t, out, "account not found")
	assert.Contains(t, out, "download failed")
	assert.Contains(t, out, "3 rows | 2 created | 1 duplicates | archived")
	assert.Contains(t, out, "Run run-1: 1 imported, 1 skipped, 1 failed; 2 file(s), 2 transaction(s) created, 1 duplicate(s)")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "imported", Imported.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "failed", Failed.String())
}
