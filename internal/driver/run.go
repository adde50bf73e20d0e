package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jsvensson/dirfmt/internal/policy"
)

// Run formats every eligible file in a single pass, replacing each one
// atomically. Files the formatter fails on are left untouched and
// reported as failed; the run carries on with the rest.
//
// Leftover intermediates from an interrupted two-pass run are reported
// but never promoted. The returned error is non-nil only when the run
// itself could not complete (lock held, directory missing, ctx done).
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	unlock, err := d.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	tasks, err := d.plan()
	if err != nil {
		return nil, err
	}

	results, err := d.execute(ctx, tasks, d.rewrite)
	report := &Report{Results: results}
	for _, res := range report.Stale() {
		if d.policy.Intermediate(filepath.Base(res.Path)) {
			d.log.Warningf("stale intermediate %s left by an interrupted run", res.Path)
		}
	}
	return report, err
}

// FormatFile formats a single file given relative to the root. It does not
// take the run lock.
func (d *Driver) FormatFile(ctx context.Context, rel string) Result {
	name := filepath.Base(rel)
	switch {
	case d.policy.Ignored(name):
		return Result{Path: rel, Status: StatusIgnored}
	case d.policy.Intermediate(name), policy.IsTemp(name):
		return Result{Path: rel, Status: StatusIntermediate}
	}
	return d.rewrite(ctx, rel)
}

func (d *Driver) rewrite(ctx context.Context, rel string) Result {
	path := filepath.Join(d.root, rel)

	src, err := os.ReadFile(path)
	if err != nil {
		return d.failed(rel, fmt.Errorf("reading: %w", err))
	}

	out, err := d.formatter.Format(ctx, path)
	if err != nil {
		return d.failed(rel, err)
	}
	if len(out) == 0 && len(bytes.TrimSpace(src)) > 0 {
		return d.failed(rel, ErrEmptyOutput)
	}

	if bytes.Equal(src, out) {
		d.log.Debugf("unchanged %s", rel)
		return Result{Path: rel, Status: StatusUnchanged}
	}

	if d.check {
		d.log.Infof("needs formatting %s", rel)
		return Result{Path: rel, Status: StatusFormatted}
	}

	if err := replaceFile(path, out); err != nil {
		return d.failed(rel, err)
	}

	d.log.Infof("formatted %s", rel)
	return Result{Path: rel, Status: StatusFormatted}
}

// replaceFile writes data to a temporary file beside path and renames it
// over path, keeping the original permission bits.
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), policy.TempPrefix+"*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write data: %w", err)
	}
	if err := tmpFile.Chmod(info.Mode().Perm()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
