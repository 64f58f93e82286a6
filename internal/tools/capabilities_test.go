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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "toolloop/internal/errors"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestListDirectoryEmpty(t *testing.T) {
	root := t.TempDir()
	listing, err := ListDirectory(context.Background(), root, "", DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listing.Files == nil || len(listing.Files) != 0 {
		t.Fatalf("expected empty non-nil file list, got %#v", listing.Files)
	}
	result := Succeeded(ToolCall{ID: "1", Name: NameListDirectory}, listing)
	if result.Content() != `{"files":[]}` {
		t.Fatalf("unexpected content %s", result.Content())
	}
}

func TestListDirectoryEntries(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.txt"), "hello")
	writeTestFile(t, filepath.Join(root, ".hidden"), "x")
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	listing, err := ListDirectory(context.Background(), root, ".", DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byName := map[string]FileEntry{}
	for _, entry := range listing.Files {
		byName[entry.Name] = entry
	}
	if len(byName) != 3 {
		t.Fatalf("expected 3 entries, got %+v", listing.Files)
	}
	if e := byName["a.txt"]; e.IsDir || e.Size == nil || *e.Size != 5 {
		t.Fatalf("unexpected file entry %+v", e)
	}
	if e := byName["sub"]; !e.IsDir || e.Size != nil {
		t.Fatalf("unexpected dir entry %+v", e)
	}
	if _, ok := byName[".hidden"]; !ok {
		t.Fatal("hidden files should be listed")
	}
}

func TestListDirectoryTruncated(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		writeTestFile(t, filepath.Join(root, name), name)
	}
	limits := DefaultLimits()
	limits.MaxDirectoryEntries = 2
	listing, err := ListDirectory(context.Background(), root, "", limits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listing.Files) != 2 || !listing.Truncated {
		t.Fatalf("expected 2 truncated entries, got %+v", listing)
	}
}

func TestListDirectoryErrors(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "file.txt"), "data")

	tests := []struct {
		name string
		path string
		code apperrors.Code
	}{
		{"missing", "nope", apperrors.CodeNotFound},
		{"file", "file.txt", apperrors.CodeNotADirectory},
		{"escape", "..", apperrors.CodeSandbox},
		{"absolute outside", "/etc", apperrors.CodeSandbox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ListDirectory(context.Background(), root, tt.path, DefaultLimits())
			if err == nil {
				t.Fatal("expected error")
			}
			if code := apperrors.CodeOf(err); code != tt.code {
				t.Fatalf("expected code %s, got %s (%v)", tt.code, code, err)
			}
			if strings.Contains(err.Error(), root) {
				t.Fatalf("error leaks the working root: %v", err)
			}
		})
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	content := "héllo\nwörld\n"

	msg, err := WriteFile(context.Background(), root, "notes.txt", content, DefaultLimits())
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	want := `Successfully wrote to "notes.txt" (12 characters written)`
	if msg != want {
		t.Fatalf("expected %q, got %q", want, msg)
	}

	got, err := ReadFile(context.Background(), root, "notes.txt", DefaultLimits())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != content {
		t.Fatalf("expected %q, got %q", content, got)
	}
}

func TestWriteFileOverwritesAndAcceptsEmpty(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "f.txt"), "old content")

	if _, err := WriteFile(context.Background(), root, "f.txt", "", DefaultLimits()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "f.txt"))
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty file, got %q", data)
	}
}

func TestWriteFileErrors(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	tests := []struct {
		name string
		path string
		code apperrors.Code
	}{
		{"outside", "../escape.txt", apperrors.CodeSandbox},
		{"directory", "dir", apperrors.CodeNotARegularFile},
		{"missing parent", "missing/child.txt", apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WriteFile(context.Background(), root, tt.path, "x", DefaultLimits())
			if err == nil {
				t.Fatal("expected error")
			}
			if code := apperrors.CodeOf(err); code != tt.code {
				t.Fatalf("expected code %s, got %s (%v)", tt.code, code, err)
			}
		})
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("write outside the root must not create a file")
	}
}

func TestWriteFileSizeLimit(t *testing.T) {
	root := t.TempDir()
	limits := DefaultLimits()
	limits.MaxFileSizeBytes = 4
	if _, err := WriteFile(context.Background(), root, "big.txt", "12345", limits); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestReadFileOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "work")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTestFile(t, filepath.Join(parent, "secrets.txt"), "top secret")

	_, err := ReadFile(context.Background(), root, "../secrets.txt", DefaultLimits())
	if err == nil {
		t.Fatal("expected sandbox error")
	}
	want := `Cannot read "../secrets.txt" as it is outside the permitted working directory`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if !apperrors.HasCode(err, apperrors.CodeSandbox) {
		t.Fatalf("expected sandbox code, got %v", apperrors.CodeOf(err))
	}
}

func TestReadFileNotFound(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, path := range []string{"missing.txt", "dir"} {
		_, err := ReadFile(context.Background(), root, path, DefaultLimits())
		if err == nil {
			t.Fatalf("%s: expected error", path)
		}
		if !strings.HasPrefix(err.Error(), "File not found or is not a regular file") {
			t.Fatalf("%s: unexpected message %q", path, err.Error())
		}
	}
}

func TestReadFileTruncation(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "exact.txt"), strings.Repeat("a", DefaultMaxReadChars))
	writeTestFile(t, filepath.Join(root, "long.txt"), strings.Repeat("é", 12000))

	exact, err := ReadFile(context.Background(), root, "exact.txt", DefaultLimits())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if strings.Contains(exact, "truncated") {
		t.Fatal("content of exactly the limit must not be marked truncated")
	}

	long, err := ReadFile(context.Background(), root, "long.txt", DefaultLimits())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	marker := `[...File "long.txt" truncated at 10000 characters]`
	if !strings.HasSuffix(long, marker) {
		t.Fatalf("expected truncation marker, got suffix %q", long[len(long)-60:])
	}
	if body := strings.TrimSuffix(long, marker); body != strings.Repeat("é", 10000) {
		t.Fatalf("expected 10000 characters before marker, got %d", len([]rune(body)))
	}
}

func TestReadFileBinary(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "blob.bin"), "abc\x00def")
	_, err := ReadFile(context.Background(), root, "blob.bin", DefaultLimits())
	if err == nil {
		t.Fatal("expected binary read error")
	}
	if apperrors.CodeOf(err) != apperrors.CodeIO {
		t.Fatalf("expected io code, got %s", apperrors.CodeOf(err))
	}
}

func TestCapabilitiesHonourCanceledContext(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ListDirectory(ctx, root, "", DefaultLimits()); err == nil {
		t.Fatal("expected context error")
	}
	if _, err := WriteFile(ctx, root, "a.txt", "x", DefaultLimits()); err == nil {
		t.Fatal("expected context error")
	}
}
