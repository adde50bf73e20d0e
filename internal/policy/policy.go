package policy

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// FileName is the policy file looked up in the root directory.
const FileName = ".dirfmt.hcl"

// DefaultMarker is appended to a file name to mark an intermediate
// formatting result.
const DefaultMarker = ".formatted"

// TempPrefix prefixes the temporary files written next to a source file
// while it is being replaced.
const TempPrefix = ".dirfmt-"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid policy")

// Formatter describes the external formatter command. The input path is
// appended after Args.
type Formatter struct {
	Command string
	Args    []string
}

// Policy is the static configuration a run is driven by: which
// directories are formatted, which file names are left alone, and which
// command does the formatting.
type Policy struct {
	Dirs      []string
	Ignore    []string
	Marker    string
	Formatter Formatter
	Jobs      int // 0 means one job per CPU
}

// Default returns the built-in policy.
func Default() Policy {
	return Policy{
		Dirs: []string{"inc", "kernel", "user"},
		// clang-format cannot handle assembly, linker scripts or makefiles.
		Ignore: []string{
			"Makefrag", "trap_support.h", "entry.S",
			"vectors.S", "trapasm.S", "bootasm.S",
			"swtch.S", "initcode.S", "kernel.lds.S",
		},
		Marker:    DefaultMarker,
		Formatter: Formatter{Command: "clang-format"},
		Jobs:      1,
	}
}

// Ignored reports whether name is in the ignore set.
func (p Policy) Ignored(name string) bool {
	return slices.Contains(p.Ignore, name)
}

// Intermediate reports whether name carries the marker suffix. A name
// equal to the marker counts too, though it has no source to promote onto.
func (p Policy) Intermediate(name string) bool {
	return p.Marker != "" && strings.HasSuffix(name, p.Marker)
}

// Eligible reports whether a file called name should be formatted.
func (p Policy) Eligible(name string) bool {
	return !p.Ignored(name) && !p.Intermediate(name) && !IsTemp(name)
}

// IsTemp reports whether name is a temporary replacement file.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}

// Validate checks that the policy can drive a run.
func (p Policy) Validate() error {
	if len(p.Dirs) == 0 {
		return fmt.Errorf("%w: no directories listed", ErrInvalid)
	}
	for _, dir := range p.Dirs {
		if !filepath.IsLocal(dir) {
			return fmt.Errorf("%w: directory %q must be relative to the root", ErrInvalid, dir)
		}
	}
	if p.Marker == "" {
		return fmt.Errorf("%w: marker must not be empty", ErrInvalid)
	}
	if strings.ContainsRune(p.Marker, filepath.Separator) {
		return fmt.Errorf("%w: marker %q contains a path separator", ErrInvalid, p.Marker)
	}
	if strings.TrimSpace(p.Formatter.Command) == "" {
		return fmt.Errorf("%w: formatter command must not be empty", ErrInvalid)
	}
	if p.Jobs < 0 {
		return fmt.Errorf("%w: jobs must not be negative, got %d", ErrInvalid, p.Jobs)
	}
	return nil
}
