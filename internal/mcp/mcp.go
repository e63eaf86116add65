// Package mcp provides the harness MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/harness"
	"github.com/deixis/harness/internal/config"
	"github.com/deixis/harness/internal/report"
	"github.com/deixis/harness/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu         sync.RWMutex
	engine     *workflow.Engine
	configRoot string // directory holding .harness, or the workspace

	store  report.Store
	logger *zap.Logger
}

// NewServer creates an MCP server with all harness tools registered.
func NewServer(cfg *config.Config, store report.Store, workspace string, logger *zap.Logger) (*mcp.Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	eng, err := workflow.New(cfg, workspace, logger)
	if err != nil {
		return nil, err
	}
	h := &handler{
		engine:     eng,
		configRoot: workspace,
		store:      store,
		logger:     logger.Named("mcp"),
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "harness", Version: harness.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "harness_workspace",
		Description: "Summarise the exercise workspace: interpreter, configuration and the source files a run would pick up.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "harness_compile",
		Description: `Run the interpreter over source files in compile mode.

A file fails only when a line of its output starts with an error marker ("Error" by default).
The exit status is ignored. Results are stored for drill-down via harness_inspect.`,
	}, h.compileHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "harness_test",
		Description: `Run the interpreter over source files in test mode.

A file fails when the interpreter exits unsuccessfully, its output contains the fail marker ("FAIL"
by default) anywhere, or a line starts with the error marker. Results are stored for drill-down via harness_inspect.`,
	}, h.testHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "harness_inspect",
		Description: `Drill into results from a harness_compile or harness_test run.

Use the run_id and a file path from the tool output. The full interpreter transcript is returned.`,
	}, h.inspectHandler)

	return s, nil
}

// current returns the engine and config root in use.
func (h *handler) current() (*workflow.Engine, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine, h.configRoot
}

// updateWorkspaceFromRoots queries the client for MCP roots and rebuilds
// the engine if a valid root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.logger.Warn("ignoring client root", zap.String("root", workspace), zap.Error(err))
		return
	}
	eng, err := workflow.New(loaded.Config, workspace, h.logger)
	if err != nil {
		h.logger.Warn("ignoring client root", zap.String("root", workspace), zap.Error(err))
		return
	}

	h.mu.Lock()
	h.engine = eng
	h.configRoot = loaded.Root
	h.mu.Unlock()
	h.logger.Info("workspace updated from client roots", zap.String("workspace", workspace))
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
