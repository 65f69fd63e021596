package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolver canonicalizes a workspace-relative or absolute path against a
// root directory.
//
// Unlike a typical sandboxed file tool, Resolve does not reject paths that
// escape the root. Worker tasks routinely touch the parent repository (a
// monorepo's sibling packages, a shared vendor tree) and the plan format has
// no notion of a nested workspace boundary. The shell tool's denylist is the
// only hard barrier this system enforces; file tools trust the model's
// path the same way they trust its command strings.
type Resolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path, relative paths joined against
// Root.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	if filepath.IsAbs(clean) {
		return filepath.Clean(clean), nil
	}
	return filepath.Abs(filepath.Join(rootAbs, clean))
}
