package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/jsvensson/dirfmt/internal/driver"
	"github.com/jsvensson/dirfmt/internal/format"
	"github.com/jsvensson/dirfmt/internal/policy"
)

var upper = format.Func(func(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.ToUpper(data), nil
})

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range policy.Default().Dirs {
		if err := os.Mkdir(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// startWatcher runs w until the test ends and waits for it to be ready.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch() error: %v", err)
		}
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("Watch() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}
}

func waitForContent(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && string(data) == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	data, _ := os.ReadFile(path)
	t.Fatalf("%s = %q, want %q", path, data, want)
}

func TestWatchFormatsWrittenFile(t *testing.T) {
	root := setupRoot(t)
	d := driver.New(policy.Default(), upper, driver.WithRoot(root))

	results := make(chan driver.Result, 16)
	w := New(d, WithDebounce(10*time.Millisecond), WithResults(func(r driver.Result) {
		select {
		case results <- r:
		default:
		}
	}))
	startWatcher(t, w)

	path := filepath.Join(root, "kernel", "main.c")
	if err := os.WriteFile(path, []byte("int main;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForContent(t, path, "INT MAIN;\n")

	timeout := time.After(5 * time.Second)
	for {
		select {
		case r := <-results:
			if r.Path == filepath.Join("kernel", "main.c") && r.Status == driver.StatusFormatted {
				return
			}
		case <-timeout:
			t.Fatal("no formatted result for kernel/main.c")
		}
	}
}

func TestWatchSkipsIgnoredFiles(t *testing.T) {
	root := setupRoot(t)
	d := driver.New(policy.Default(), upper, driver.WithRoot(root))
	startWatcher(t, New(d, WithDebounce(10*time.Millisecond)))

	ignored := filepath.Join(root, "kernel", "swtch.S")
	if err := os.WriteFile(ignored, []byte("swtch:\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// A formatted sibling proves events were processed after the write.
	probe := filepath.Join(root, "kernel", "probe.c")
	if err := os.WriteFile(probe, []byte("probe\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForContent(t, probe, "PROBE\n")

	data, err := os.ReadFile(ignored)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "swtch:\n" {
		t.Errorf("ignored file rewritten: %q", data)
	}
}

func TestWatchRestart(t *testing.T) {
	root := setupRoot(t)
	d := driver.New(policy.Default(), upper, driver.WithRoot(root))
	w := New(d, WithDebounce(time.Hour))

	for i := range 2 {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Watch(ctx) }()
		<-w.Ready()

		// Leave a debounce timer pending when Watch returns.
		if err := os.WriteFile(filepath.Join(root, "kernel", "main.c"), []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("run %d: Watch() error: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d: Watch() did not return after cancel", i)
		}
	}
}

func TestWatchLocked(t *testing.T) {
	root := setupRoot(t)
	fl := flock.New(filepath.Join(root, ".dirfmt.lock"))
	if ok, err := fl.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	defer func() { _ = fl.Unlock() }()

	d := driver.New(policy.Default(), upper, driver.WithRoot(root))
	err := New(d).Watch(context.Background())
	if !errors.Is(err, driver.ErrLocked) {
		t.Errorf("Watch() error = %v, want driver.ErrLocked", err)
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	root := setupRoot(t)
	if err := os.Remove(filepath.Join(root, "user")); err != nil {
		t.Fatal(err)
	}

	d := driver.New(policy.Default(), upper, driver.WithRoot(root))
	if err := New(d).Watch(context.Background()); err == nil {
		t.Error("Watch() error = nil, want error for missing directory")
	}
}
