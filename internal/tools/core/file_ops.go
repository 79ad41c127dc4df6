package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"companionbot/internal/logging"
	"companionbot/internal/tools"
)

// ReadFileTool returns a tool for reading file contents.
func ReadFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "read_file",
		Description: "Read the contents of a file",
		Category:    tools.CategoryFile,
		Priority:    90,
		Execute:     executeReadFile,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to read",
				},
				"start_line": {
					Type:        "integer",
					Description: "Starting line number (1-indexed, optional)",
				},
				"end_line": {
					Type:        "integer",
					Description: "Ending line number (inclusive, optional)",
				},
			},
		},
	}
}

func executeReadFile(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)

	abs, err := resolveGuardedPath(path, true)
	if err != nil {
		return "", err
	}

	logging.ToolsDebug("read_file: path=%s", abs)

	f, err := openGuardedNoFollow(abs, os.O_RDONLY, 0)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	result := string(content)

	// Handle line range if specified
	startLine, hasStart := args["start_line"].(int)
	endLine, hasEnd := args["end_line"].(int)

	if hasStart || hasEnd {
		lines := strings.Split(result, "\n")

		if !hasStart {
			startLine = 1
		}
		if !hasEnd {
			endLine = len(lines)
		}

		// Convert to 0-indexed
		startLine--
		if startLine < 0 {
			startLine = 0
		}
		if endLine > len(lines) {
			endLine = len(lines)
		}

		result = strings.Join(lines[startLine:endLine], "\n")
	}

	logging.Tools("read_file completed: %s (%d bytes)", path, len(result))
	return result, nil
}

// WriteFileTool returns a tool for writing content to a file.
func WriteFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating it if it doesn't exist",
		Category:    tools.CategoryFile,
		Priority:    80,
		Execute:     executeWriteFile,
		Schema: tools.ToolSchema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to write",
				},
				"content": {
					Type:        "string",
					Description: "The content to write",
				},
				"create_dirs": {
					Type:        "boolean",
					Description: "Create parent directories if they don't exist (default: true)",
					Default:     true,
				},
			},
		},
	}
}

func executeWriteFile(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)

	abs, err := resolveGuardedPath(path, false)
	if err != nil {
		return "", err
	}

	content, _ := args["content"].(string)

	createDirs := true
	if cd, ok := args["create_dirs"].(bool); ok {
		createDirs = cd
	}

	logging.ToolsDebug("write_file: path=%s, size=%d", abs, len(content))

	// Create parent directories if needed
	if createDirs {
		dir := filepath.Dir(abs)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directories: %w", err)
		}
	}

	f, err := openGuardedNoFollow(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	logging.Tools("write_file completed: %s (%d bytes)", abs, len(content))
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// EditFileTool returns a tool for editing files with search/replace.
func EditFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "edit_file",
		Description: "Edit a file by replacing text",
		Category:    tools.CategoryFile,
		Priority:    85,
		Execute:     executeEditFile,
		Schema: tools.ToolSchema{
			Required: []string{"path", "old_text", "new_text"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to edit",
				},
				"old_text": {
					Type:        "string",
					Description: "The text to find and replace",
				},
				"new_text": {
					Type:        "string",
					Description: "The replacement text",
				},
				"replace_all": {
					Type:        "boolean",
					Description: "Replace all occurrences (default: false, replaces first only)",
					Default:     false,
				},
			},
		},
	}
}

func executeEditFile(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)

	abs, err := resolveGuardedPath(path, true)
	if err != nil {
		return "", err
	}

	oldText, _ := args["old_text"].(string)
	if oldText == "" {
		return "", fmt.Errorf("old_text is required")
	}

	newText, _ := args["new_text"].(string)

	replaceAll := false
	if ra, ok := args["replace_all"].(bool); ok {
		replaceAll = ra
	}

	logging.ToolsDebug("edit_file: path=%s, old_len=%d, new_len=%d", abs, len(oldText), len(newText))

	rf, err := openGuardedNoFollow(abs, os.O_RDONLY, 0)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	content, err := io.ReadAll(rf)
	rf.Close()
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	contentStr := string(content)

	if !strings.Contains(contentStr, oldText) {
		return "", fmt.Errorf("old_text not found in file")
	}

	var newContent string
	var count int
	if replaceAll {
		count = strings.Count(contentStr, oldText)
		newContent = strings.ReplaceAll(contentStr, oldText, newText)
	} else {
		count = 1
		newContent = strings.Replace(contentStr, oldText, newText, 1)
	}

	wf, err := openGuardedNoFollow(abs, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer wf.Close()
	if _, err := wf.WriteString(newContent); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	logging.Tools("edit_file completed: %s (%d replacements)", abs, count)
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path), nil
}

// DeleteFileTool returns a tool for deleting files.
func DeleteFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "delete_file",
		Description: "Delete a file (requires explicit permission)",
		Category:    tools.CategoryFile,
		Priority:    50,
		Execute:     executeDeleteFile,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to delete",
				},
			},
		},
	}
}

func executeDeleteFile(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)

	abs, err := resolveGuardedPath(path, true)
	if err != nil {
		return "", err
	}

	logging.ToolsDebug("delete_file: path=%s", abs)

	// Safety check - don't delete directories. resolveGuardedPath already
	// rejected a symlinked final component, so Lstat here is the real file.
	info, err := os.Lstat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("cannot delete directory with delete_file, use dedicated command")
	}

	if err := os.Remove(abs); err != nil {
		return "", fmt.Errorf("failed to delete file: %w", err)
	}

	logging.Tools("delete_file completed: %s", abs)
	return fmt.Sprintf("Deleted %s", path), nil
}

// ListFilesTool returns a tool for listing directory contents.
func ListFilesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "list_files",
		Description: "List files in a directory",
		Category:    tools.CategoryFile,
		Priority:    85,
		Execute:     executeListFiles,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The directory path to list",
				},
				"recursive": {
					Type:        "boolean",
					Description: "List recursively (default: false)",
					Default:     false,
				},
				"include_hidden": {
					Type:        "boolean",
					Description: "Include hidden files (default: false)",
					Default:     false,
				},
			},
		},
	}
}

func executeListFiles(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = defaultSearchRoot()
	}

	abs, err := resolveGuardedPath(path, true)
	if err != nil {
		return "", err
	}
	path = abs

	recursive := false
	if r, ok := args["recursive"].(bool); ok {
		recursive = r
	}

	includeHidden := false
	if ih, ok := args["include_hidden"].(bool); ok {
		includeHidden = ih
	}

	logging.ToolsDebug("list_files: path=%s, recursive=%v", path, recursive)

	var files []string

	if recursive {
		err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // Skip errors
			}

			name := info.Name()
			if !includeHidden && strings.HasPrefix(name, ".") {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			relPath, _ := filepath.Rel(path, p)
			if relPath == "." {
				return nil
			}

			if info.IsDir() {
				files = append(files, relPath+"/")
			} else {
				files = append(files, relPath)
			}

			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return "", fmt.Errorf("failed to read directory: %w", err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if !includeHidden && strings.HasPrefix(name, ".") {
				continue
			}

			if entry.IsDir() {
				files = append(files, name+"/")
			} else {
				files = append(files, name)
			}
		}
	}

	logging.Tools("list_files completed: %s (%d entries)", path, len(files))
	return strings.Join(files, "\n"), nil
}
