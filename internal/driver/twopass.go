package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jsvensson/dirfmt/internal/policy"
)

// RunTwoPass runs Format and then Replace under a single lock.
func (d *Driver) RunTwoPass(ctx context.Context) (*Report, error) {
	unlock, err := d.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	report, err := d.formatPass(ctx)
	if err != nil {
		return report, err
	}

	promoted, err := d.replacePass(ctx)
	report.Results = append(report.Results, promoted.Results...)
	return report, err
}

// Format is the first pass of the two-pass mode. It writes the formatter's
// output for every eligible file to <file><marker>.
//
// A file whose intermediate already exists is not formatted again: the
// existing intermediate is what Replace will promote. A formatter failure
// produces no intermediate, so Replace cannot promote bad output.
func (d *Driver) Format(ctx context.Context) (*Report, error) {
	unlock, err := d.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return d.formatPass(ctx)
}

// Replace is the second pass of the two-pass mode. It lists the
// directories again and renames every intermediate over its source.
func (d *Driver) Replace(ctx context.Context) (*Report, error) {
	unlock, err := d.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return d.replacePass(ctx)
}

func (d *Driver) formatPass(ctx context.Context) (*Report, error) {
	tasks, err := d.plan()
	if err != nil {
		return nil, err
	}
	results, err := d.execute(ctx, tasks, d.stage)
	return &Report{Results: results}, err
}

func (d *Driver) stage(ctx context.Context, rel string) Result {
	path := filepath.Join(d.root, rel)
	staged := path + d.policy.Marker

	if _, err := os.Lstat(staged); err == nil {
		d.log.Warningf("%s already has an intermediate; keeping it", rel)
		return Result{Path: rel, Status: StatusIntermediate}
	}

	info, err := os.Stat(path)
	if err != nil {
		return d.failed(rel, fmt.Errorf("stat: %w", err))
	}
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

	if err := writeNew(staged, out, info.Mode().Perm()); err != nil {
		return d.failed(rel, err)
	}

	d.log.Debugf("staged %s", rel)
	return Result{Path: rel, Status: StatusStaged}
}

// writeNew creates path, failing if it exists. A partial write is removed.
func writeNew(path string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create intermediate: %w", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write intermediate: %w", err)
	}
	return nil
}

func (d *Driver) replacePass(ctx context.Context) (*Report, error) {
	report := &Report{}
	for _, dir := range d.policy.Dirs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		names, err := d.files(dir)
		if err != nil {
			return report, err
		}

		for _, name := range names {
			if !d.policy.Intermediate(name) || name == d.policy.Marker {
				continue
			}
			rel := filepath.Join(dir, strings.TrimSuffix(name, d.policy.Marker))
			from := filepath.Join(d.root, dir, name)
			if err := os.Rename(from, filepath.Join(d.root, rel)); err != nil {
				report.Results = append(report.Results, d.failed(rel, fmt.Errorf("promoting %s: %w", name, err)))
				continue
			}
			d.log.Infof("promoted %s", rel)
			report.Results = append(report.Results, Result{Path: rel, Status: StatusPromoted})
		}
	}
	return report, nil
}

// Clean removes intermediates and temporary files left behind by
// interrupted runs.
func (d *Driver) Clean(ctx context.Context) (*Report, error) {
	unlock, err := d.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &Report{}
	for _, dir := range d.policy.Dirs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		names, err := d.files(dir)
		if err != nil {
			return report, err
		}

		for _, name := range names {
			if name == d.policy.Marker {
				continue
			}
			if !d.policy.Intermediate(name) && !policy.IsTemp(name) {
				continue
			}
			rel := filepath.Join(dir, name)
			if err := os.Remove(filepath.Join(d.root, rel)); err != nil {
				report.Results = append(report.Results, d.failed(rel, err))
				continue
			}
			d.log.Infof("removed %s", rel)
			report.Results = append(report.Results, Result{Path: rel, Status: StatusRemoved})
		}
	}
	return report, nil
}
