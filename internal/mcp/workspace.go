package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deixis/harness/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *mcp.CallToolRequest, _ workspaceParams) (*mcp.CallToolResult, any, error) {
	eng, root := h.current()
	var b strings.Builder

	fmt.Fprintf(&b, "Workspace: %s\n", eng.Workspace)
	cfgPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Fprintf(&b, "Config: %s\n", cfgPath)
	} else {
		fmt.Fprintln(&b, "Config: defaults")
	}
	fmt.Fprintf(&b, "Interpreter: %s\n", strings.Join(eng.Interpreter, " "))
	fmt.Fprintf(&b, "Markers: error prefix %q, fail substring %q\n", eng.Markers.ErrorPrefix, eng.Markers.FailSubstring)
	fmt.Fprintf(&b, "Concurrency: %d\n", eng.Concurrency)
	fmt.Fprintln(&b)

	files, err := eng.ResolveFiles(nil)
	if err != nil {
		// Non-fatal: the configuration is still useful.
		fmt.Fprintf(&b, "Files: (%v)\n", err)
		return textResult(b.String())
	}
	fmt.Fprintf(&b, "Files (%d):\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "  %s\n", eng.Rel(f))
	}
	return textResult(b.String())
}
