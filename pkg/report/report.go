// Package report collects the outcome of a sync run. Each descriptor yields
// one Result; nothing here talks to the ledger or the bucket.
package report

import "errors"

// Status is the outcome of one descriptor.
//
//   - Imported: every pending file was processed and archived, including
//     header-only files that had nothing to submit.
//   - Skipped:  nothing to do (account not found, no files, dry run).
//   - Failed:   an error stopped processing of the descriptor.
type Status int

const (
	Imported Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Imported:
		return "imported"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileResult records what happened to one export file. Key is already masked.
type FileResult struct {
	Key        string
	Records    int
	Created    int
	Duplicates int
	Archived   bool
}

// Result is the tagged outcome of one descriptor. Descriptor holds the
// masked identifier.
type Result struct {
	Descriptor  string
	AccountName string
	Status      Status
	Reason      string
	Files       []FileResult
	Err         error
}

// Fail marks the result failed with err and returns it.
func (r Result) Fail(err error) Result {
	r.Status = Failed
	r.Err = err
	return r
}

// Skip marks the result skipped for reason and returns it.
func (r Result) Skip(reason string) Result {
	r.Status = Skipped
	r.Reason = reason
	return r
}

// Summary is the report of a whole run.
type Summary struct {
	RunID   string
	DryRun  bool
	Results []Result
}

func (s *Summary) Add(r Result) {
	s.Results = append(s.Results, r)
}

func (s *Summary) count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// ImportedCount returns how many descriptors imported at least one file.
func (s *Summary) ImportedCount() int { return s.count(Imported) }

// SkippedCount returns how many descriptors had nothing to do.
func (s *Summary) SkippedCount() int { return s.count(Skipped) }

// FailedCount returns how many descriptors stopped on an error.
func (s *Summary) FailedCount() int { return s.count(Failed) }

// Totals sums file and transaction counts across all descriptors.
func (s *Summary) Totals() (files, created, duplicates int) {
	for _, r := range s.Results {
		for _, f := range r.Files {
			files++
			created += f.Created
			duplicates += f.Duplicates
		}
	}
	return files, created, duplicates
}

// Err joins the errors of every failed descriptor, or nil.
func (s *Summary) Err() error {
	var errs []error
	for _, r := range s.Results {
		if r.Status == Failed && r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
