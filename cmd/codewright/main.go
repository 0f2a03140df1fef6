// Command codewright runs a code generation task from the terminal. It
// wires the engine in-process (no server needed) and renders the event
// stream as it happens.
//
// Usage:
//
//	codewright run "add two numbers" --max-iterations 3
//	codewright run "sort a list" --tests tests.yaml --json
//
// Configuration follows the same layered scheme as the server command:
// defaults, an optional YAML config file, then CODEWRIGHT_* environment
// variables. The backend URL and model are required.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/config"
	"github.com/codewright-io/codewright/pkg/debug"
	"github.com/codewright-io/codewright/pkg/engine"
	"github.com/codewright-io/codewright/pkg/gateway/openaicompat"
	"github.com/codewright-io/codewright/pkg/sandbox"
	"github.com/codewright-io/codewright/pkg/storage/memory"
)

var (
	configPath    string
	testsPath     string
	maxIterations int
	jsonOutput    bool

	rootCmd = &cobra.Command{
		Use:   "codewright",
		Short: "Iterative code generation with sandboxed validation",
		Long: `codewright generates code for a task, executes it in a sandbox,
validates it against test cases, and repairs it until the tests pass
or the iteration budget runs out.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run [task]",
		Short: "Generate and validate code for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTask,
	}
)

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	runCmd.Flags().StringVarP(&testsPath, "tests", "t", "", "YAML file with test cases (inferred when omitted)")
	runCmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", 0, "iteration budget (default from config)")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit raw event JSON instead of rendered output")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init(cfg.Debug.Categories, cfg.Debug.Level)

	// Keep slog noise off the rendered stream.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var tests []api.TestCase
	if testsPath != "" {
		tests, err = loadTests(testsPath)
		if err != nil {
			return fmt.Errorf("loading tests: %w", err)
		}
	}

	gw := openaicompat.New(openaicompat.Config{
		BaseURL: cfg.Gateway.BackendURL,
		APIKey:  cfg.Gateway.APIKey,
		Model:   cfg.Gateway.Model,
		Timeout: cfg.Gateway.Timeout,
	}, log)
	defer gw.Close()

	runner := sandbox.NewRunner(sandbox.Config{
		Interpreter:    cfg.Sandbox.Interpreter,
		Timeout:        cfg.Sandbox.Timeout,
		Grace:          cfg.Sandbox.Grace,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	}, log)

	eng, err := engine.New(gw, runner, memory.New(cfg.Storage.MaxSize), engine.Config{
		Validation: api.ValidationConfig{
			MaxTaskLength:    cfg.Engine.MaxTaskLength,
			MaxSuppliedTests: cfg.Engine.MaxSuppliedTests,
			MaxIterations:    cfg.Engine.MaxIterations,
		},
	}, engine.WithLogger(log))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	req := &api.CreateRunRequest{
		Task:          task,
		Tests:         tests,
		MaxIterations: maxIterations,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writer := newRenderer(os.Stdout, jsonOutput)
	if err := eng.StartRun(ctx, req, writer); err != nil {
		return err
	}
	if !writer.succeeded {
		os.Exit(1)
	}
	return nil
}

// testFile is the YAML shape of a --tests file: a top-level list of
// test cases.
type testFile struct {
	Tests []testEntry `yaml:"tests"`
}

type testEntry struct {
	Description    string         `yaml:"description"`
	Inputs         map[string]any `yaml:"inputs"`
	ExpectedOutput any            `yaml:"expected_output"`
}

func loadTests(path string) ([]api.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file testFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(file.Tests) == 0 {
		return nil, fmt.Errorf("%s contains no tests", path)
	}

	tests := make([]api.TestCase, 0, len(file.Tests))
	for _, t := range file.Tests {
		tests = append(tests, api.TestCase{
			Description:    t.Description,
			Inputs:         t.Inputs,
			ExpectedOutput: t.ExpectedOutput,
		})
	}
	return tests, nil
}
