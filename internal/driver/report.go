package driver

import (
	"errors"
	"fmt"
)

// Status is the outcome for a single file.
type Status int

const (
	StatusUnchanged    Status = iota // formatter output equals the content
	StatusFormatted                  // rewritten, or would be in check mode
	StatusIgnored                    // name is in the ignore set
	StatusIntermediate               // marker-suffixed or temporary file, never formatted
	StatusStaged                     // intermediate written by the first pass
	StatusPromoted                   // intermediate renamed over its source
	StatusRemoved                    // leftover removed by Clean
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusFormatted:
		return "formatted"
	case StatusIgnored:
		return "skipped-ignored"
	case StatusIntermediate:
		return "skipped-intermediate"
	case StatusStaged:
		return "staged"
	case StatusPromoted:
		return "promoted"
	case StatusRemoved:
		return "removed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome for one file. Path is relative to the root.
type Result struct {
	Path   string
	Status Status
	Err    error
}

// Report collects results in listing order.
type Report struct {
	Results []Result
}

// Changed returns the files whose content was (or in check mode would be)
// replaced.
func (r *Report) Changed() []Result {
	return r.filter(StatusFormatted, StatusPromoted)
}

func (r *Report) Failed() []Result {
	return r.filter(StatusFailed)
}

// Stale returns intermediates that were left on disk by an earlier run.
func (r *Report) Stale() []Result {
	return r.filter(StatusIntermediate)
}

// Err joins the errors of all failed files, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Path, res.Err))
	}
	return errors.Join(errs...)
}

func (r *Report) filter(statuses ...Status) []Result {
	var out []Result
	for _, res := range r.Results {
		for _, s := range statuses {
			if res.Status == s {
				out = append(out, res)
				break
			}
		}
	}
	return out
}
