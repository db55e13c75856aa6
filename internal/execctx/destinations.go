package execctx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Write dispatches data to a named destination: "return" merges into the
// root context's accumulated returns, "file" writes pretty-printed JSON
// (relative paths join against the output directory), "console" prints
// JSON when the output mode is Normal or above.
func (c *Context) Write(data map[string]any, to string, opts map[string]any) error {
	switch to {
	case "return":
		return c.writeReturn(data)
	case "file":
		return c.writeFile(data, opts)
	case "console":
		return c.writeConsole(data)
	default:
		return fmt.Errorf("unknown destination: %q", to)
	}
}

func (c *Context) writeReturn(data map[string]any) error {
	root := c.root()
	for k, v := range data {
		root.returns[k] = v
	}
	return nil
}

func (c *Context) writeFile(data map[string]any, opts map[string]any) error {
	path, _ := opts["path"].(string)
	if path == "" {
		return fmt.Errorf("file destination requires a path")
	}
	if !filepath.IsAbs(path) {
		if dir := c.OutputDir(); dir != "" {
			path = filepath.Join(dir, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

func (c *Context) writeConsole(data map[string]any) error {
	if c.OutputMode() < Normal {
		return nil
	}
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}

// Returns returns a copy of the accumulated "return" destination payload,
// walking to the root.
func (c *Context) Returns() map[string]any {
	root := c.root()
	out := make(map[string]any, len(root.returns))
	for k, v := range root.returns {
		out[k] = v
	}
	return out
}

// Report prints msg when the output mode is Normal or Debug - the
// standard user-facing status line a component emits.
func Report(c *Context, msg string) {
	if c.OutputMode() >= Normal {
		fmt.Println(msg)
	}
}

// Debug prints msg only when the output mode is Debug.
func Debug(c *Context, msg string) {
	if c.OutputMode() == Debug {
		fmt.Println("[DEBUG]", msg)
	}
}
