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

package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	apperrors "toolloop/internal/errors"
	"toolloop/internal/paths"
)

// FileEntry describes one immediate child of a listed directory. Size is nil
// for directories and for entries that could not be stat'ed.
type FileEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  *int64 `json:"size"`
	Error string `json:"error,omitempty"`
}

// DirectoryListing is the list_directory payload.
type DirectoryListing struct {
	Files     []FileEntry `json:"files"`
	Truncated bool        `json:"truncated,omitempty"`
}

// ListDirectory lists the immediate children of path inside root. An empty
// path lists root itself.
func ListDirectory(ctx context.Context, root, path string, limits Limits) (DirectoryListing, error) {
	limits = normalizeLimits(limits)
	display := displayPath(path)

	resolved, err := paths.Resolve(root, path)
	if err != nil {
		return DirectoryListing{}, resolveError("list", display, err)
	}
	if err := ensureContext(ctx); err != nil {
		return DirectoryListing{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return DirectoryListing{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("%q does not exist", display))
		}
		return DirectoryListing{}, apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to stat %q", display), err)
	}
	if !info.IsDir() {
		return DirectoryListing{}, apperrors.New(apperrors.CodeNotADirectory, fmt.Sprintf("%q is not a directory", display))
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return DirectoryListing{}, apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to read directory %q", display), err)
	}

	listing := DirectoryListing{Files: make([]FileEntry, 0, len(entries))}
	for _, entry := range entries {
		if err := ensureContext(ctx); err != nil {
			return DirectoryListing{}, err
		}
		if len(listing.Files) >= limits.MaxDirectoryEntries {
			listing.Truncated = true
			break
		}

		fe := FileEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		// Info does not follow symlinks, so nothing outside root is touched.
		fi, err := entry.Info()
		if err != nil {
			fe.Error = fmt.Sprintf("failed to stat entry: %v", err)
		} else if !fi.IsDir() {
			size := fi.Size()
			fe.Size = &size
		}
		listing.Files = append(listing.Files, fe)
	}
	return listing, nil
}

// ReadFile returns the text content of path inside root, truncated at
// limits.MaxReadChars characters with a marker naming the file.
func ReadFile(ctx context.Context, root, path string, limits Limits) (string, error) {
	limits = normalizeLimits(limits)

	resolved, err := paths.Resolve(root, path)
	if err != nil {
		return "", resolveError("read", path, err)
	}
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("File not found or is not a regular file: %q", path))
		}
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("An error occurred while reading the file %q", path), err)
	}
	if !info.Mode().IsRegular() {
		return "", apperrors.New(apperrors.CodeNotARegularFile, fmt.Sprintf("File not found or is not a regular file: %q", path))
	}

	f, err := os.Open(resolved)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("An error occurred while reading the file %q", path), err)
	}
	defer f.Close()

	content, truncated, err := readRunes(bufio.NewReader(f), limits.MaxReadChars)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("An error occurred while reading the file %q", path), err)
	}
	if truncated {
		content += fmt.Sprintf("[...File %q truncated at %d characters]", path, limits.MaxReadChars)
	}
	return content, nil
}

// readRunes reads at most max runes and reports whether more input remains.
func readRunes(r *bufio.Reader, max int) (string, bool, error) {
	var builder strings.Builder
	for count := 0; count < max; count++ {
		ch, size, err := r.ReadRune()
		if errors.Is(err, io.EOF) {
			return builder.String(), false, nil
		}
		if err != nil {
			return "", false, err
		}
		if (ch == utf8.RuneError && size == 1) || ch == 0 {
			return "", false, fmt.Errorf("file appears to be binary; read_file supports text only")
		}
		builder.WriteRune(ch)
	}
	if _, _, err := r.ReadRune(); err != nil {
		if errors.Is(err, io.EOF) {
			return builder.String(), false, nil
		}
		return "", false, err
	}
	return builder.String(), true, nil
}

// WriteFile creates or overwrites path inside root. Parent directories must
// already exist.
func WriteFile(ctx context.Context, root, path, content string, limits Limits) (string, error) {
	limits = normalizeLimits(limits)

	resolved, err := paths.Resolve(root, path)
	if err != nil {
		return "", resolveError("write to", path, err)
	}
	if int64(len(content)) > limits.MaxFileSizeBytes {
		return "", apperrors.New(apperrors.CodeIO, fmt.Sprintf("content exceeds maximum size of %d bytes", limits.MaxFileSizeBytes))
	}
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return "", apperrors.New(apperrors.CodeNotARegularFile, fmt.Sprintf("Cannot write to %q as it is a directory", path))
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Wrap(apperrors.CodeNotFound,
				fmt.Sprintf("An error occurred while writing to the file %q: parent directory does not exist", path), err)
		}
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("An error occurred while writing to the file %q", path), err)
	}

	return fmt.Sprintf("Successfully wrote to %q (%d characters written)", path, utf8.RuneCountInString(content)), nil
}

func displayPath(path string) string {
	if path == "" {
		return "."
	}
	return path
}

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
