// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package paths confines caller-supplied paths to a working root.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxPathLength bounds raw path input accepted by Resolve.
const MaxPathLength = 4096

// SandboxViolation reports a path that resolves outside the working root.
type SandboxViolation struct {
	Path string
	Root string
}

func (e *SandboxViolation) Error() string {
	return fmt.Sprintf("path %q escapes working directory %s", e.Path, e.Root)
}

// Root is a canonical working directory. The zero value is not usable.
type Root struct {
	dir string
}

// NewRoot canonicalizes dir (absolute, symlinks resolved) and checks that it
// is an existing directory.
func NewRoot(dir string) (Root, error) {
	canonical, err := canonicalRoot(dir)
	if err != nil {
		return Root{}, err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return Root{}, fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return Root{}, fmt.Errorf("working directory %s is not a directory", canonical)
	}
	return Root{dir: canonical}, nil
}

// String returns the canonical root path.
func (r Root) String() string {
	return r.dir
}

// Resolve joins rel onto root and returns the canonical absolute path, or a
// *SandboxViolation when the result lies outside root. An empty rel denotes
// the root itself; an absolute rel is accepted only if it is inside root.
//
// The lexical containment check runs before any filesystem access on the
// candidate path.
func Resolve(root, rel string) (string, error) {
	base, err := canonicalRoot(root)
	if err != nil {
		return "", err
	}
	return resolveCanonical(base, rel)
}

func resolveCanonical(base, rel string) (string, error) {
	if rel != "" {
		if err := ValidatePathString(rel, MaxPathLength); err != nil {
			return "", err
		}
	}

	candidate := rel
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(base, rel)
	}
	candidate = filepath.Clean(candidate)
	if !HasPathPrefix(candidate, base) {
		return "", &SandboxViolation{Path: rel, Root: base}
	}

	resolved, err := ResolveSymlinkedPath(candidate)
	if err != nil {
		return "", err
	}
	if !HasPathPrefix(resolved, base) {
		return "", &SandboxViolation{Path: rel, Root: base}
	}
	return resolved, nil
}

func canonicalRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("working directory cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %v", err)
	}
	return resolved, nil
}

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	for _, r := range path {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Me, r) {
			return fmt.Errorf("path contains unsupported unicode combining mark")
		}
	}
	if maxLen > 0 {
		if len(path) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
		if len(filepath.Clean(path)) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
	}
	return nil
}

// ResolveSymlinkedPath resolves symlinks in path. When path does not exist
// yet, the nearest existing ancestor is resolved and the missing tail is
// re-appended.
func ResolveSymlinkedPath(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %v", err)
		}
		return resolved, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat path: %v", err)
	}

	var tail []string
	current := path
	for {
		parent := filepath.Dir(current)
		tail = append([]string{filepath.Base(current)}, tail...)
		if parent == current {
			return path, nil
		}
		current = parent
		if _, err := os.Lstat(current); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to stat path: %v", err)
		}
		resolved, err := filepath.EvalSymlinks(current)
		if err != nil {
			return "", fmt.Errorf("failed to resolve parent path: %v", err)
		}
		return filepath.Join(append([]string{resolved}, tail...)...), nil
	}
}

// HasPathPrefix returns true when path is within base.
func HasPathPrefix(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}
