package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deixis/harness/internal/evaluator"
	"github.com/deixis/harness/internal/report"
	"github.com/deixis/harness/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type runParams struct {
	Paths []string `json:"paths,omitempty" jsonschema:"source files, directories or glob patterns, relative to the workspace or absolute. Defaults to every source file in the workspace."`
}

func (h *handler) compileHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	return h.run(ctx, evaluator.Compile, params.Paths)
}

func (h *handler) testHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	return h.run(ctx, evaluator.Test, params.Paths)
}

func (h *handler) run(ctx context.Context, mode evaluator.Mode, paths []string) (*mcp.CallToolResult, any, error) {
	eng, _ := h.current()

	rr, err := eng.Run(ctx, mode, paths)
	if err != nil {
		var nie *evaluator.NotInvokableError
		if errors.As(err, &nie) {
			return errorResult(fmt.Sprintf("%v\n\nAction: install %s or set \"interpreter\" in .harness.", nie, nie.Interpreter))
		}
		return errorResult(fmt.Sprintf("%s failed: %v", mode, err))
	}

	// Save results for harness_inspect.
	if err := h.store.Save(rr); err != nil {
		h.logger.Warn("saving run", zap.String("run_id", rr.ID), zap.Error(err))
	}

	return textResult(formatRun(eng, rr))
}

func formatRun(eng *workflow.Engine, rr *report.RunResult) string {
	var b strings.Builder

	if rr.Passed() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s (%s)\n", rr.ID, rr.Kind)
	fmt.Fprintln(&b)

	passed, failed := rr.Counts()
	fmt.Fprintf(&b, "Files: %d passed, %d failed\n", passed, failed)
	fmt.Fprintln(&b)

	if failed == 0 {
		fmt.Fprintln(&b, "All files passed.")
		return b.String()
	}

	fmt.Fprintln(&b, "Failures:")
	for _, f := range eng.FailureSummaries(rr) {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with harness_inspect(run_id=%q, path=\"<file>\").\n", rr.ID)

	return b.String()
}
