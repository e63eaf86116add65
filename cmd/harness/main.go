// Command harness runs an exercise interpreter over source files and
// reports which of them compile and which pass their tests.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/deixis/harness"
	"github.com/deixis/harness/internal/config"
	"github.com/deixis/harness/internal/evaluator"
	"github.com/deixis/harness/internal/logging"
	hmcp "github.com/deixis/harness/internal/mcp"
	"github.com/deixis/harness/internal/report"
	"github.com/deixis/harness/internal/workflow"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("harness: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "compile":
		err = runMain(evaluator.Compile, args)
	case "test":
		err = runMain(evaluator.Test, args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(harness.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "harness: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: harness <command> [flags] [paths]

Commands:
  compile     Check source files for compile errors
  test        Run source files as tests
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Paths are files, directories or glob patterns. With no paths every source
file under the current directory is evaluated.

Use "harness <command> -h" for command-specific flags.`)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(hmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	workspace, cfg, logger, err := load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := report.NewLRUStore(5, report.NewDiskStore(""))

	server, err := hmcp.NewServer(cfg, store, workspace, logger)
	if err != nil {
		return err
	}

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr, logger)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string, logger *zap.Logger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- compile / test ---

func runMain(mode evaluator.Mode, args []string) error {
	fs := flag.NewFlagSet(string(mode), flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output results as JSON")
	verboseFlag := fs.Bool("v", false, "print transcripts of passing files too")
	timeoutFlag := fs.Duration("timeout", 0, "override configured per-file timeout (e.g. 30s)")
	jobsFlag := fs.Int("j", 0, "override configured number of parallel evaluations")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	workspace, cfg, logger, err := load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if *timeoutFlag > 0 {
		cfg.RawTimeout = timeoutFlag.String()
	}
	if *jobsFlag > 0 {
		cfg.Concurrency = *jobsFlag
	}

	eng, err := workflow.New(cfg, workspace, logger)
	if err != nil {
		return err
	}

	rr, err := eng.Run(ctx, mode, fs.Args())
	if err != nil {
		var nie *evaluator.NotInvokableError
		if errors.As(err, &nie) {
			fmt.Fprintln(os.Stderr, nie.Error())
			os.Exit(1)
		}
		return fmt.Errorf("%s: %w", mode, err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rr); err != nil {
			return err
		}
	} else {
		fmt.Print(formatRunCLI(eng, rr, *verboseFlag))
	}

	if !rr.Passed() {
		os.Exit(1)
	}
	return nil
}

func formatRunCLI(eng *workflow.Engine, rr *report.RunResult, verbose bool) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	width := 0
	for _, ev := range rr.Evaluations {
		width = max(width, len(eng.Rel(ev.Path)))
	}

	for _, ev := range rr.Evaluations {
		status := "ok"
		if ev.Status != report.StatusPass {
			status = "FAIL"
		}
		w("%-4s  %-*s  %s\n", status, width, eng.Rel(ev.Path), (time.Duration(ev.DurationMs) * time.Millisecond).String())
	}
	w("\n")

	passed, failed := rr.Counts()
	if failed == 0 {
		w("ok    %d files\n", passed)
	} else {
		w("FAIL  %d passed, %d failed\n", passed, failed)
	}

	for _, ev := range rr.Evaluations {
		if ev.Status == report.StatusPass && !verbose {
			continue
		}
		w("\n--- %s: %s\n", eng.Rel(ev.Path), eng.Explain(ev))
		if ev.Truncated {
			w("(output truncated)\n")
		}
		for line := range strings.Lines(ev.Transcript) {
			w("    %s\n", strings.TrimRight(line, "\n"))
		}
	}

	return string(b)
}

// --- shared ---

// load reads the configuration for the current directory and builds the
// logger it describes.
func load() (string, *config.Config, *zap.Logger, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return "", nil, nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return "", nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(loaded.Config.Logging())
	if err != nil {
		return "", nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return workspace, loaded.Config, logger, nil
}
