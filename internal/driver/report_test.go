package driver

import (
	"errors"
	"strings"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUnchanged, "unchanged"},
		{StatusFormatted, "formatted"},
		{StatusIgnored, "skipped-ignored"},
		{StatusIntermediate, "skipped-intermediate"},
		{StatusStaged, "staged"},
		{StatusPromoted, "promoted"},
		{StatusRemoved, "removed"},
		{StatusFailed, "failed"},
		{Status(99), "Status(99)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}

func TestReportFilters(t *testing.T) {
	errA := errors.New("boom a")
	errB := errors.New("boom b")
	r := &Report{Results: []Result{
		{Path: "kernel/a.c", Status: StatusFormatted},
		{Path: "kernel/b.c", Status: StatusFailed, Err: errA},
		{Path: "kernel/c.c", Status: StatusUnchanged},
		{Path: "user/d.c", Status: StatusPromoted},
		{Path: "user/e.c.formatted", Status: StatusIntermediate},
		{Path: "user/f.c", Status: StatusFailed, Err: errB},
	}}

	if n := len(r.Changed()); n != 2 {
		t.Errorf("len(Changed()) = %d, want 2", n)
	}
	if n := len(r.Failed()); n != 2 {
		t.Errorf("len(Failed()) = %d, want 2", n)
	}
	if n := len(r.Stale()); n != 1 {
		t.Errorf("len(Stale()) = %d, want 1", n)
	}

	err := r.Err()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Err() = %v, want both failures", err)
	}
	if !strings.Contains(err.Error(), "kernel/b.c: boom a") {
		t.Errorf("Err() = %q, want path-prefixed messages", err)
	}
}

func TestReportErrNilWithoutFailures(t *testing.T) {
	r := &Report{Results: []Result{{Path: "a.c", Status: StatusFormatted}}}
	if err := r.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
