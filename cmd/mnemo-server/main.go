// Command mnemo-server exposes the memory core as an MCP plugin over stdio.
// Host agents call its tools to record experiences, grow and query the
// knowledge graph, promote recurring patterns and drive per-session
// workflows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/logging"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/fsm"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	sweepInterval := flag.Duration("sweep-interval", 0, "background promote/decay sweep interval (0 disables)")
	flag.Parse()

	if err := run(*configPath, *sweepInterval); err != nil {
		fmt.Fprintf(os.Stderr, "mnemo-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, sweepInterval time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logging.SetLogger(logger)

	core, err := memory.New(*cfg, memory.WithLogger(logger))
	if err != nil {
		return err
	}

	// Built-in multi-step task workflow; hosts can layer their own
	// definitions through the library API.
	if err := core.Workflows.RegisterDefinition(fsm.TaskWorkflow()); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if sweepInterval > 0 {
		core.StartSweeps(ctx, sweepInterval)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info(ctx, "mnemo-server: shutting down")
		if err := core.Close(); err != nil {
			logger.Warn(ctx, "mnemo-server: close failed: %v", err)
		}
		os.Exit(0)
	}()

	srv := server.NewMCPServer("mnemo", version)
	registerTools(srv, core)

	logger.Info(ctx, "mnemo-server %s listening on stdio", version)
	serveErr := server.ServeStdio(srv)

	// stdin closed: flush everything before exiting.
	if err := core.Close(); err != nil {
		logger.Warn(ctx, "mnemo-server: close failed: %v", err)
	}
	return serveErr
}

// buildLogger maps the logging config onto console (stderr, since stdout
// carries the MCP transport) and optional file outputs.
func buildLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	outputs := []logging.Output{logging.NewConsoleOutput(true)}
	if cfg.File != "" {
		fileOut, err := logging.NewFileOutput(cfg.File)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, fileOut)
	}

	return logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(cfg.Level),
		Outputs:  outputs,
	}), nil
}
