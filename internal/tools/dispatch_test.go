package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "toolloop/internal/errors"
	"toolloop/internal/paths"
)

type recordedCall struct {
	tool    string
	outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) ObserveToolCall(tool, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{tool: tool, outcome: outcome})
}

func TestDispatchListDirectory(t *testing.T) {
	registry := newTestRegistry(t)
	writeTestFile(t, filepath.Join(registry.Root().String(), "example.txt"), "data")

	result := NewDispatcher(registry).Dispatch(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      NameListDirectory,
		Arguments: map[string]interface{}{},
	})
	if result.IsError() {
		t.Fatalf("expected no error, got: %v", result.Err())
	}
	if result.ID != "call-1" || result.Name != NameListDirectory {
		t.Fatalf("result not paired with request: %+v", result)
	}
	if !strings.Contains(result.Content(), `"name":"example.txt"`) {
		t.Fatalf("expected listing to include created file, got: %s", result.Content())
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	recorder := &fakeRecorder{}
	registry := newTestRegistry(t)
	result := NewDispatcher(registry, WithRecorder(recorder)).Dispatch(context.Background(), ToolCall{
		ID:   "call-1",
		Name: "does_not_exist",
	})
	if !result.IsError() {
		t.Fatal("expected error for unknown tool")
	}
	if apperrors.CodeOf(result.Err()) != apperrors.CodeUnknownTool {
		t.Fatalf("expected unknown_tool code, got %s", apperrors.CodeOf(result.Err()))
	}
	if !strings.HasPrefix(result.Content(), "Error: unknown tool does_not_exist") {
		t.Fatalf("unexpected content %q", result.Content())
	}
	if len(recorder.calls) != 1 || recorder.calls[0].outcome != OutcomeUnknown {
		t.Fatalf("unexpected recorded calls %+v", recorder.calls)
	}
}

func TestDispatchInvalidArguments(t *testing.T) {
	registry := newTestRegistry(t)
	result := NewDispatcher(registry).Dispatch(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      NameReadFile,
		Arguments: map[string]interface{}{"file": "a.txt"},
	})
	if !result.IsError() {
		t.Fatal("expected invalid argument error")
	}
	if !errors.Is(result.Err(), ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", result.Err())
	}
	if apperrors.CodeOf(result.Err()) != apperrors.CodeToolInvocation {
		t.Fatalf("expected tool_invocation code, got %s", apperrors.CodeOf(result.Err()))
	}
}

func TestDispatchSandboxViolation(t *testing.T) {
	registry := newTestRegistry(t)
	result := NewDispatcher(registry).Dispatch(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      NameReadFile,
		Arguments: map[string]interface{}{"path": "../secrets.txt"},
	})
	want := `Error: Cannot read "../secrets.txt" as it is outside the permitted working directory`
	if result.Content() != want {
		t.Fatalf("expected %q, got %q", want, result.Content())
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	recorder := &fakeRecorder{}
	registry := newTestRegistry(t)
	dispatcher := NewDispatcher(registry, WithRecorder(recorder))
	dispatcher.invoke = func(context.Context, Spec, map[string]interface{}) (interface{}, error) {
		panic("boom")
	}

	result := dispatcher.Dispatch(context.Background(), ToolCall{ID: "call-1", Name: NameReadFile})
	if !result.IsError() {
		t.Fatal("expected panic to become an error result")
	}
	if !errors.Is(result.Err(), ErrToolPanicked) {
		t.Fatalf("expected ErrToolPanicked, got %v", result.Err())
	}
	if !strings.Contains(result.Content(), "boom") {
		t.Fatalf("expected panic value in content, got %q", result.Content())
	}
	if len(recorder.calls) != 1 || recorder.calls[0].outcome != OutcomePanic {
		t.Fatalf("unexpected recorded calls %+v", recorder.calls)
	}
}

func TestDispatchApproval(t *testing.T) {
	registry := newTestRegistry(t)
	root := registry.Root().String()

	var asked []string
	deny := func(_ context.Context, call ToolCall) (bool, error) {
		asked = append(asked, call.Name)
		return false, nil
	}
	dispatcher := NewDispatcher(registry, WithApproval(deny))

	result := dispatcher.Dispatch(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      NameWriteFile,
		Arguments: map[string]interface{}{"path": "a.txt", "content": "x"},
	})
	if !errors.Is(result.Err(), ErrToolDeniedByUser) {
		t.Fatalf("expected denial, got %v", result.Err())
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Fatal("denied write must not touch the filesystem")
	}

	// read_file is not in the confirmation list
	result = dispatcher.Dispatch(context.Background(), ToolCall{
		ID:        "call-2",
		Name:      NameReadFile,
		Arguments: map[string]interface{}{"path": "missing.txt"},
	})
	if errors.Is(result.Err(), ErrToolDeniedByUser) {
		t.Fatal("read_file should not be gated")
	}
	if len(asked) != 1 || asked[0] != NameWriteFile {
		t.Fatalf("unexpected approval prompts %v", asked)
	}
}

func TestDispatchApprovalGranted(t *testing.T) {
	registry := newTestRegistry(t)
	allow := func(context.Context, ToolCall) (bool, error) { return true, nil }
	result := NewDispatcher(registry, WithApproval(allow)).Dispatch(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      NameWriteFile,
		Arguments: map[string]interface{}{"path": "a.txt", "content": "hello"},
	})
	if result.IsError() {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	want := `Successfully wrote to "a.txt" (5 characters written)`
	if result.Content() != want {
		t.Fatalf("expected %q, got %q", want, result.Content())
	}
}

func TestDispatchRedactsRoot(t *testing.T) {
	registry := newTestRegistry(t)
	root := registry.Root().String()
	dispatcher := NewDispatcher(registry)
	dispatcher.invoke = func(context.Context, Spec, map[string]interface{}) (interface{}, error) {
		return nil, &os.PathError{Op: "open", Path: filepath.Join(root, "x.txt"), Err: os.ErrPermission}
	}

	result := dispatcher.Dispatch(context.Background(), ToolCall{ID: "1", Name: NameReadFile})
	if strings.Contains(result.Content(), root) {
		t.Fatalf("content leaks the working root: %q", result.Content())
	}
	if !strings.Contains(result.Content(), "open x.txt") {
		t.Fatalf("unexpected content %q", result.Content())
	}
	if !errors.Is(result.Err(), os.ErrPermission) {
		t.Fatal("redaction must keep the error chain")
	}
}

func TestDispatchRecoversFromApprovalPanic(t *testing.T) {
	recorder := &fakeRecorder{}
	registry := newTestRegistry(t)
	approve := func(context.Context, ToolCall) (bool, error) {
		panic("tty gone")
	}
	dispatcher := NewDispatcher(registry, WithApproval(approve), WithRecorder(recorder))

	result := dispatcher.Dispatch(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      NameWriteFile,
		Arguments: map[string]interface{}{"path": "a.txt", "content": "x"},
	})
	if !errors.Is(result.Err(), ErrToolPanicked) {
		t.Fatalf("expected ErrToolPanicked, got %v", result.Err())
	}
	if !strings.Contains(result.Content(), "tty gone") {
		t.Fatalf("expected panic value in content, got %q", result.Content())
	}
	if _, err := os.Stat(filepath.Join(registry.Root().String(), "a.txt")); !os.IsNotExist(err) {
		t.Fatal("write must not run after the approval hook panicked")
	}
	if len(recorder.calls) != 1 || recorder.calls[0].outcome != OutcomePanic {
		t.Fatalf("unexpected recorded calls %+v", recorder.calls)
	}
}

func TestDispatchFilesystemRootKeepsPaths(t *testing.T) {
	root, err := paths.NewRoot("/")
	if err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	dispatcher := NewDispatcher(NewRegistry(root))

	result := dispatcher.Dispatch(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      NameReadFile,
		Arguments: map[string]interface{}{"path": "definitely/missing/file.txt"},
	})
	if !result.IsError() {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(result.Content(), `"definitely/missing/file.txt"`) {
		t.Fatalf("offending path mangled: %q", result.Content())
	}
}

func TestDispatchRedactsOnlyAtPathBoundary(t *testing.T) {
	registry := newTestRegistry(t)
	root := registry.Root().String()
	dispatcher := NewDispatcher(registry)
	dispatcher.invoke = func(context.Context, Spec, map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("cannot use %s nor %s-backup nor %s", filepath.Join(root, "a.txt"), root, root)
	}

	result := dispatcher.Dispatch(context.Background(), ToolCall{ID: "1", Name: NameReadFile})
	want := fmt.Sprintf("Error: cannot use a.txt nor %s-backup nor .", root)
	if result.Content() != want {
		t.Fatalf("expected %q, got %q", want, result.Content())
	}
}

func TestDispatchOneResultPerCall(t *testing.T) {
	registry := newTestRegistry(t)
	dispatcher := NewDispatcher(registry)
	calls := []ToolCall{
		{ID: "a", Name: NameListDirectory},
		{ID: "b", Name: "nope"},
		{ID: "c", Name: NameReadFile, Arguments: map[string]interface{}{"path": 7}},
		{ID: "d", Name: NameWriteFile, Arguments: map[string]interface{}{"path": "out.txt", "content": "ok"}},
	}
	for _, call := range calls {
		result := dispatcher.Dispatch(context.Background(), call)
		if result.ID != call.ID {
			t.Fatalf("expected result for %s, got %s", call.ID, result.ID)
		}
		if result.IsError() == (result.Payload() != nil) {
			t.Fatalf("result %s must carry exactly one of payload or error", call.ID)
		}
	}
}

func TestDispatchDecodesRawArguments(t *testing.T) {
	registry := newTestRegistry(t)
	dispatcher := NewDispatcher(registry)

	result := dispatcher.Dispatch(context.Background(), ToolCall{
		ID:           "call-1",
		Name:         NameWriteFile,
		RawArguments: `{"path":"raw.txt","content":"abc"}`,
	})
	if result.IsError() {
		t.Fatalf("unexpected error: %v", result.Err())
	}

	result = dispatcher.Dispatch(context.Background(), ToolCall{
		ID:           "call-2",
		Name:         NameReadFile,
		RawArguments: `{"path": `,
	})
	if !errors.Is(result.Err(), ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments for malformed JSON, got %v", result.Err())
	}
}
