package systemprompt

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

//go:embed *.txt
var promptFiles embed.FS

var (
	defaultOnce   sync.Once
	defaultPrompt string
	defaultErr    error
)

// Load concatenates all embedded prompt files in lexical order, separated by
// a blank line.
func Load() (string, error) {
	names, err := fs.Glob(promptFiles, "*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to list embedded system prompt files: %w", err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no system prompt files found in embedded set")
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		data, err := promptFiles.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("failed to read system prompt file %q: %w", name, err)
		}
		part := string(data)
		if !strings.HasSuffix(part, "\n") {
			part += "\n"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n"), nil
}

// MustLoad returns the cached system prompt and panics if the embedded files
// cannot be read.
func MustLoad() string {
	defaultOnce.Do(func() {
		defaultPrompt, defaultErr = Load()
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("failed to load system prompt: %v", defaultErr))
	}
	return defaultPrompt
}
