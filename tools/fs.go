package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxFileSize caps a single written file.
const maxFileSize = 256 * 1024

// FileTool writes files inside the simulation workspace. Paths are
// relative to the workspace root; anything escaping it is rejected.
type FileTool struct {
	root string
}

// NewFileTool creates the workspace file tool rooted at dir.
func NewFileTool(dir string) *FileTool {
	return &FileTool{root: dir}
}

func (f *FileTool) Name() string { return "write_file" }

func (f *FileTool) Description() string {
	return "Write a text file into the shared workspace."
}

func (f *FileTool) Execute(_ context.Context, _ string, args map[string]any) (string, error) {
	rel, err := stringArg(args, "path")
	if err != nil {
		return "", &ExecutionError{Tool: f.Name(), Err: err}
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", &ExecutionError{Tool: f.Name(), Err: err}
	}
	if len(content) > maxFileSize {
		return "", &ExecutionError{Tool: f.Name(), Err: fmt.Errorf("content exceeds %d bytes", maxFileSize)}
	}

	full, err := f.resolve(rel)
	if err != nil {
		return "", &ExecutionError{Tool: f.Name(), Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &ExecutionError{Tool: f.Name(), Err: fmt.Errorf("create parent dir: %w", err)}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", &ExecutionError{Tool: f.Name(), Err: fmt.Errorf("write %s: %w", rel, err)}
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), rel), nil
}

// resolve maps a user-supplied relative path to an absolute path inside
// the workspace, rejecting absolute paths and traversal.
func (f *FileTool) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be relative to the workspace")
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace")
	}
	return filepath.Join(f.root, clean), nil
}
