package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avamapper/internal/engine"
	"github.com/vyrodovalexey/avamapper/internal/observability"
)

const (
	envServer      = "AVAMAPCTL_SERVER"
	defaultTimeout = 30 * time.Second
)

// cli carries the global flags and the streams commands write to.
type cli struct {
	server  string
	timeout time.Duration
	noColor bool
	verbose bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "avamapctl",
		Short:         "Run avamapper transformations locally or against a server",
		Version:       fmt.Sprintf("%s (commit %s)", version, gitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.server, "server", os.Getenv(envServer),
		"Base URL of an avamapper server; empty runs the engine in process")
	flags.DurationVar(&c.timeout, "timeout", defaultTimeout, "Request timeout in server mode")
	flags.BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Log engine activity to stderr")

	root.AddCommand(
		newTransformCmd(c),
		newParseCmd(c),
		newFunctionsCmd(c),
		newScenariosCmd(c),
	)
	return root
}

// runner returns the in-process engine, or a client for --server.
func (c *cli) runner() (runner, error) {
	if c.server != "" {
		return newRemoteRunner(c.server, c.timeout), nil
	}

	logger := observability.NopLogger()
	if c.verbose {
		var err error
		logger, err = observability.NewLogger(observability.LogConfig{
			Level:  "debug",
			Format: "console",
			Output: "stderr",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	eng, err := engine.New(engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return &localRunner{engine: eng}, nil
}

func (c *cli) printer() *printer {
	return newPrinter(c.stdout, c.stderr, c.noColor)
}

// readInput reads path, or stdin when path is "-".
func (c *cli) readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
