// Package driver applies an external formatter to every eligible file in
// the directories a policy lists.
//
// The default mode, Run, rewrites each file atomically through a temporary
// file and a rename. The legacy two-pass mode (Format followed by Replace)
// writes intermediate marker-suffixed files first and promotes them over
// the originals in a second listing.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gofrs/flock"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/jsvensson/dirfmt/internal/format"
	"github.com/jsvensson/dirfmt/internal/policy"
)

const lockFileName = ".dirfmt.lock"

var (
	// ErrLocked is returned when another run holds the lock on the root.
	ErrLocked = errors.New("another dirfmt run is in progress")

	// ErrEmptyOutput is reported for a formatter that exits cleanly but
	// prints nothing for a non-blank file.
	ErrEmptyOutput = errors.New("formatter produced no output")
)

// Driver runs a formatter over the directories of a policy.
type Driver struct {
	policy    policy.Policy
	formatter format.Formatter
	root      string
	jobs      int
	check     bool
	log       commonlog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithRoot sets the directory the policy's directories are relative to.
func WithRoot(root string) Option {
	return func(d *Driver) { d.root = root }
}

// WithJobs overrides the policy's job count.
func WithJobs(n int) Option {
	return func(d *Driver) { d.jobs = n }
}

// WithCheck makes Run and FormatFile report files that would change
// without writing them.
func WithCheck(check bool) Option {
	return func(d *Driver) { d.check = check }
}

func WithLogger(log commonlog.Logger) Option {
	return func(d *Driver) { d.log = log }
}

func New(p policy.Policy, f format.Formatter, opts ...Option) *Driver {
	d := &Driver{
		policy:    p,
		formatter: f,
		root:      ".",
		jobs:      p.Jobs,
		log:       commonlog.GetLogger("dirfmt.driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.jobs <= 0 {
		d.jobs = runtime.GOMAXPROCS(0)
	}
	return d
}

func (d *Driver) Root() string {
	return d.root
}

func (d *Driver) Policy() policy.Policy {
	return d.policy
}

// Lock takes the exclusive run lock on the root directory. The returned
// function releases it.
func (d *Driver) Lock() (func(), error) {
	fl := flock.New(filepath.Join(d.root, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = fl.Unlock() }, nil
}

// files lists the regular files directly inside dir. Subdirectories and
// symlinks are skipped.
func (d *Driver) files(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, dir))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			d.log.Debugf("skipping %s: not a regular file", filepath.Join(dir, e.Name()))
			continue
		}
		if e.Name() == lockFileName {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// task is a listed file and, unless pending, the status it was skipped with.
type task struct {
	rel     string
	status  Status
	pending bool
}

// plan lists every directory up front, so a missing directory aborts the
// run before any file is touched.
func (d *Driver) plan() ([]task, error) {
	var tasks []task
	for _, dir := range d.policy.Dirs {
		names, err := d.files(dir)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			t := task{rel: filepath.Join(dir, name)}
			switch {
			case d.policy.Ignored(name):
				t.status = StatusIgnored
			case d.policy.Intermediate(name), policy.IsTemp(name):
				t.status = StatusIntermediate
			default:
				t.pending = true
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// execute runs fn for every pending task on at most d.jobs goroutines.
// Results keep the order of tasks.
func (d *Driver) execute(ctx context.Context, tasks []task, fn func(context.Context, string) Result) ([]Result, error) {
	results := make([]Result, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.jobs)

	for i, t := range tasks {
		if !t.pending {
			results[i] = Result{Path: t.rel, Status: t.status}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Path: t.rel, Status: StatusFailed, Err: err}
				return err
			}
			results[i] = fn(gctx, t.rel)
			return nil
		})
	}

	return results, g.Wait()
}

func (d *Driver) failed(rel string, err error) Result {
	d.log.Errorf("%s: %s", rel, err.Error())
	return Result{Path: rel, Status: StatusFailed, Err: err}
}
