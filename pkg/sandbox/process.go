package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// compileGrace bounds the compile step independently of the run limit;
// compilers are allowed more time than the program itself.
const compileGrace = 20 * time.Second

// ProcessConfig groups process executor configuration values.
type ProcessConfig struct {
	// WorkspaceRoot is where per-run temporary directories are created.
	// Defaults to the system temp directory.
	WorkspaceRoot string
	Logger        zerolog.Logger
}

// ProcessExecutor runs submissions as local child processes. It provides the
// execution contract (deadline, artifact lifecycle, captured output) but no
// OS-level isolation; deployments needing real isolation use DockerExecutor
// or an external enforcement layer.
type ProcessExecutor struct {
	cfg    ProcessConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewProcessExecutor constructs a process-backed executor.
func NewProcessExecutor(cfg ProcessConfig) *ProcessExecutor {
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	return &ProcessExecutor{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/codearena/judge-core/pkg/sandbox"),
		logger: cfg.Logger.With().Str("component", "process_executor").Logger(),
	}
}

// Run materializes the source in a uniquely named workspace, optionally
// compiles it, executes it with the test input on stdin, and removes every
// artifact it created on all exit paths.
func (e *ProcessExecutor) Run(parent context.Context, req Request) (Result, error) {
	if req.Runtime == nil {
		return Result{}, errors.New("runtime is required")
	}

	language := req.Runtime.Language()

	ctx, span := e.tracer.Start(parent, "sandbox.process.run", trace.WithAttributes(
		attribute.String("judge.language", language),
	))
	defer span.End()

	workspace, err := os.MkdirTemp(e.cfg.WorkspaceRoot, "judge-run-"+uuid.NewString()[:8]+"-")
	if err != nil {
		runFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			e.logger.Error().Err(err).Str("workspace", workspace).Msg("failed to remove workspace")
		}
	}()

	sourcePath := filepath.Join(workspace, req.Runtime.FileName())
	if err := os.WriteFile(sourcePath, []byte(req.Source), 0o600); err != nil {
		runFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("write source: %w", err)
	}

	result := Result{}

	if compileCmd, ok := req.Runtime.Compile(); ok {
		compileCtx, cancel := context.WithTimeout(ctx, compileGrace)
		output, exitCode, err := e.runCommand(compileCtx, workspace, compileCmd.Name, compileCmd.Args, "")
		cancel()
		if err != nil {
			runFailures.WithLabelValues(language).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "compile step failed to execute")
			return Result{}, fmt.Errorf("compile: %w", err)
		}
		if exitCode != 0 {
			result.CompileFailed = true
			result.ExitCode = exitCode
			result.Stderr = output
			span.SetAttributes(attribute.Bool("judge.compile_failed", true))
			return result, nil
		}
	}

	limit := effectiveLimit(req)
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	runCmd := req.Runtime.Run()
	cmd := exec.Command(runCmd.Name, runCmd.Args...)
	cmd.Dir = workspace
	cmd.Stdin = strings.NewReader(req.Stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		runFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("start process: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-runCtx.Done():
		killProcessGroup(cmd)
		<-waitCh
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			result.TimedOut = true
			runTimeouts.WithLabelValues(language).Inc()
		}
	}

	result.WallTime = time.Since(start)
	runDuration.WithLabelValues(language).Observe(result.WallTime.Seconds())

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.MemoryUsedMb = estimateMemoryMb(stdout.Len() + stderr.Len())
	result.MemoryMeasured = false

	if !result.TimedOut && parent.Err() != nil {
		// Submission-level cancellation: the process is already reaped and
		// the workspace removal is deferred, nothing leaks.
		span.SetStatus(codes.Error, "canceled")
		return result, parent.Err()
	}

	if result.TimedOut {
		span.SetStatus(codes.Error, "execution timed out")
		return result, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		runFailures.WithLabelValues(language).Inc()
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, waitErr.Error())
		return result, fmt.Errorf("wait process: %w", waitErr)
	}

	return result, nil
}

// runCommand executes an auxiliary command (the compile step) to completion,
// returning combined output and the exit code. A non-zero exit is not an
// error; failing to spawn at all is.
func (e *ProcessExecutor) runCommand(ctx context.Context, dir, name string, args []string, stdin string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(output), exitErr.ExitCode(), nil
		}
		return "", 0, err
	}
	return string(output), 0, nil
}
