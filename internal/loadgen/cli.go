package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/keystride/keystride/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "loadgen_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`keystride load generator
========================

Creates users, submits generated typing attempts concurrently and checks
that every user's progress matches the metrics returned for their attempts.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8000")
  -users int
        Number of users to create (default 20)
  -attempts int
        Attempts submitted per user (default 50)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed uint
        Seed for attempt generation, 0 picks one (default 0)
  -output string
        Write the generated attempts to this JSON file
  -log string
        Log file for run output (default: loadgen_TIMESTAMP.log)
  -verbose
        Enable debug logging and per-request failures
  -help
        Show this help message

Examples:
  go run ./cmd/loadgen -users 100 -attempts 200 -workers 16
  go run ./cmd/loadgen -seed 42 -output attempts.json
`)
}
