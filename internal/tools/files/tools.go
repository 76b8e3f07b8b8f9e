package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// maxReadBytes caps a single read_file payload.
const maxReadBytes = 512 * 1024

var pathSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "File or directory path, absolute or relative to the workspace"}
  },
  "required": ["path"],
  "additionalProperties": false
}`)

var readSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "File path, absolute or relative to the workspace"},
    "head": {"type": "integer", "minimum": 1, "description": "Return only the first N lines"},
    "tail": {"type": "integer", "minimum": 1, "description": "Return only the last N lines"}
  },
  "required": ["path"],
  "additionalProperties": false
}`)

var writeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "File path, absolute or relative to the workspace"},
    "content": {"type": "string", "description": "Full file content to write"}
  },
  "required": ["path", "content"],
  "additionalProperties": false
}`)

type pathInput struct {
	Path string `json:"path"`
}

type readInput struct {
	Path string `json:"path"`
	Head int    `json:"head"`
	Tail int    `json:"tail"`
}

type writeInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ReadTool reads a file inside the sandbox and emits its content as a data
// part. Head and tail narrow the read to the first or last N lines; without
// either, oversized files come back truncated to the byte cap rather than
// rejected.
func ReadTool(sb *Sandbox) *agent.Tool {
	return &agent.Tool{
		Name:        "read_file",
		Description: "Read the contents of a file, optionally only its first or last lines.",
		Schema:      readSchema,
		Durability:  agent.Durability{Enabled: true, Independent: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in readInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", invalidInput("read_file", err)
			}
			if in.Head > 0 && in.Tail > 0 {
				return "", agent.NewToolError(agent.ErrCodeValidationFailed, "read_file",
					"head and tail are mutually exclusive")
			}
			path, err := sb.Resolve(in.Path, tc.WorkspaceRoot)
			if err != nil {
				return "", err
			}
			info, err := os.Stat(path)
			if err != nil {
				return "", notFound("read_file", in.Path, err)
			}
			if info.IsDir() {
				return "", agent.NewToolError(agent.ErrCodeValidationFailed, "read_file",
					fmt.Sprintf("%q is a directory", in.Path))
			}

			content, truncated, err := readWindow(path, info.Size(), in.Head, in.Tail)
			if err != nil {
				return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "read_file", "read failed").WithCause(err)
			}
			tc.Emitter.EmitData(models.NewDataPart(models.DataFileContent, tc.CallID, map[string]any{
				"path":      path,
				"content":   content,
				"truncated": truncated,
			}))
			return content, nil
		},
	}
}

// readWindow reads the requested view of a file: the head lines, the tail
// lines, or the whole content up to maxReadBytes. truncated reports whether
// anything was left out.
func readWindow(path string, size int64, head, tail int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	switch {
	case head > 0:
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxReadBytes)
		var lines []string
		for len(lines) < head && scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return "", false, err
		}
		truncated := scanner.Scan()
		return strings.Join(lines, "\n"), truncated, nil

	case tail > 0:
		// Read at most the final byte cap, then keep the last lines.
		offset := size - maxReadBytes
		if offset < 0 {
			offset = 0
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return "", false, err
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return "", false, err
		}
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		truncated := offset > 0
		if len(lines) > tail {
			lines = lines[len(lines)-tail:]
			truncated = true
		}
		return strings.Join(lines, "\n"), truncated, nil

	default:
		data, err := io.ReadAll(io.LimitReader(f, maxReadBytes))
		if err != nil {
			return "", false, err
		}
		return string(data), size > maxReadBytes, nil
	}
}

// WriteTool writes a file atomically: content goes to a temp file in the
// target directory, then renames over the destination.
func WriteTool(sb *Sandbox) *agent.Tool {
	return &agent.Tool{
		Name:          "write_file",
		Description:   "Write content to a file, replacing it if it exists.",
		Schema:        writeSchema,
		NeedsApproval: true,
		Durability:    agent.Durability{Enabled: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in writeInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", invalidInput("write_file", err)
			}
			path, err := sb.Resolve(in.Path, tc.WorkspaceRoot)
			if err != nil {
				return "", err
			}
			dir := filepath.Dir(path)
			tmp, err := os.CreateTemp(dir, ".write-*")
			if err != nil {
				return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "write_file", "cannot create temp file").WithCause(err)
			}
			tmpName := tmp.Name()
			_, werr := tmp.WriteString(in.Content)
			cerr := tmp.Close()
			if werr != nil || cerr != nil {
				os.Remove(tmpName)
				err := werr
				if err == nil {
					err = cerr
				}
				return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "write_file", "write failed").WithCause(err)
			}
			if err := os.Rename(tmpName, path); err != nil {
				os.Remove(tmpName)
				return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "write_file", "rename failed").WithCause(err)
			}
			return fmt.Sprintf(`{"path":%q,"bytes":%d}`, path, len(in.Content)), nil
		},
	}
}

// ListTool lists a directory, names sorted, directories suffixed with /.
func ListTool(sb *Sandbox) *agent.Tool {
	return &agent.Tool{
		Name:        "list_directory",
		Description: "List the entries of a directory.",
		Schema:      pathSchema,
		Durability:  agent.Durability{Enabled: true, Independent: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in pathInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", invalidInput("list_directory", err)
			}
			path, err := sb.Resolve(in.Path, tc.WorkspaceRoot)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return "", notFound("list_directory", in.Path, err)
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			b, _ := json.Marshal(names)
			return string(b), nil
		},
	}
}

// MkdirTool creates a directory and any missing parents.
func MkdirTool(sb *Sandbox) *agent.Tool {
	return &agent.Tool{
		Name:          "create_directory",
		Description:   "Create a directory, including missing parents.",
		Schema:        pathSchema,
		NeedsApproval: true,
		Durability:    agent.Durability{Enabled: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in pathInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", invalidInput("create_directory", err)
			}
			path, err := sb.Resolve(in.Path, tc.WorkspaceRoot)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(path, 0o750); err != nil {
				return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "create_directory", "mkdir failed").WithCause(err)
			}
			return fmt.Sprintf(`{"path":%q}`, path), nil
		},
	}
}

// InfoTool stats a path.
func InfoTool(sb *Sandbox) *agent.Tool {
	return &agent.Tool{
		Name:        "file_info",
		Description: "Return size, type, and modification time for a path.",
		Schema:      pathSchema,
		Durability:  agent.Durability{Enabled: true, Independent: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in pathInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", invalidInput("file_info", err)
			}
			path, err := sb.Resolve(in.Path, tc.WorkspaceRoot)
			if err != nil {
				return "", err
			}
			info, err := os.Stat(path)
			if err != nil {
				return "", notFound("file_info", in.Path, err)
			}
			b, _ := json.Marshal(map[string]any{
				"path":     path,
				"size":     info.Size(),
				"is_dir":   info.IsDir(),
				"mode":     info.Mode().String(),
				"modified": info.ModTime(),
			})
			return string(b), nil
		},
	}
}

func invalidInput(tool string, err error) error {
	return agent.NewToolError(agent.ErrCodeValidationFailed, tool, "invalid input").WithCause(err)
}

func notFound(tool, path string, err error) error {
	if os.IsNotExist(err) {
		return agent.NewToolError(agent.ErrCodeNotFound, tool, fmt.Sprintf("%q does not exist", path)).WithCause(err)
	}
	return agent.NewToolError(agent.ErrCodeExecutionFailed, tool, "stat failed").WithCause(err)
}
