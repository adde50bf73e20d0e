// Package dirfmt runs an external source formatter over a fixed set of
// directories, skipping files the formatter cannot handle.
package dirfmt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jsvensson/dirfmt/internal/policy"
)

// PolicyFileName is the policy file Load looks for in the root directory.
const PolicyFileName = policy.FileName

// Policy is the configuration a run is driven by.
type Policy = policy.Policy

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return policy.Default()
}

// Load returns the policy for root. An explicit path must exist. Without
// one, root/.dirfmt.hcl is used when present and the built-in policy
// otherwise.
func Load(root, path string) (Policy, error) {
	if path != "" {
		p, err := policy.Load(path)
		if err != nil {
			return Policy{}, fmt.Errorf("loading policy: %w", err)
		}
		return p, nil
	}

	path = filepath.Join(root, PolicyFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return policy.Default(), nil
	}
	p, err := policy.Load(path)
	if err != nil {
		return Policy{}, fmt.Errorf("loading policy: %w", err)
	}
	return p, nil
}
