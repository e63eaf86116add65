package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/harness/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a harness_compile or harness_test result"`
	Path  string `json:"path" jsonschema:"source file path as shown in the run output, or any trailing part of it (e.g. 03-lists/test_map.slisp)"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Path == "" {
		return errorResult("path is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	evals := report.ByPath(result, params.Path)
	if len(evals) == 0 {
		return textResult(fmt.Sprintf("No file matching %s in run %s (%s).", params.Path, params.RunID, result.Kind))
	}

	eng, _ := h.current()
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s (%s)\n", params.RunID, result.Kind)
	for _, ev := range evals {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%s: %s (%s)\n", eng.Rel(ev.Path), strings.ToUpper(string(ev.Status)), eng.Explain(ev))
		fmt.Fprintf(&b, "Exit code: %d", ev.ExitCode)
		if ev.Killed {
			fmt.Fprint(&b, " (killed)")
		}
		fmt.Fprintf(&b, ", %dms\n", ev.DurationMs)
		if ev.Truncated {
			fmt.Fprintln(&b, "Output was truncated.")
		}
		fmt.Fprintln(&b, "Output:")
		if ev.Transcript == "" {
			fmt.Fprintln(&b, "    (empty)")
			continue
		}
		for line := range strings.Lines(ev.Transcript) {
			fmt.Fprintf(&b, "    %s\n", strings.TrimRight(line, "\n"))
		}
	}
	return textResult(b.String())
}
