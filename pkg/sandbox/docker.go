package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const containerWorkdir = "/workspace"

// stdinFileName carries the test input into the container; the run command
// is wrapped to redirect it onto standard input.
const stdinFileName = ".stdin"

// DockerConfig groups docker executor configuration values.
type DockerConfig struct {
	Host          string
	WorkspaceRoot string
	CPUShares     int64
	Logger        zerolog.Logger
}

// DockerExecutor runs submissions inside disposable containers. Unlike the
// process executor it enforces the memory limit policy hook through the
// container runtime and reports a measured memory figure.
type DockerExecutor struct {
	client *client.Client
	cfg    DockerConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor constructs a container-backed executor.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/codearena/judge-core/pkg/sandbox"),
		logger: cfg.Logger.With().Str("component", "docker_executor").Logger(),
	}, nil
}

// Run materializes the source into a bind-mounted workspace, compiles it in
// a container when the runtime requires it, then executes it with network
// disabled and the memory limit enforced.
func (e *DockerExecutor) Run(parent context.Context, req Request) (Result, error) {
	if req.Runtime == nil {
		return Result{}, errors.New("runtime is required")
	}

	language := req.Runtime.Language()
	image := req.Runtime.Image()

	ctx, span := e.tracer.Start(parent, "sandbox.docker.run", trace.WithAttributes(
		attribute.String("judge.language", language),
		attribute.String("docker.image", image),
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

	if err := os.WriteFile(filepath.Join(workspace, req.Runtime.FileName()), []byte(req.Source), 0o600); err != nil {
		runFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		return Result{}, fmt.Errorf("write source: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, stdinFileName), []byte(req.Stdin), 0o600); err != nil {
		runFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		return Result{}, fmt.Errorf("write stdin: %w", err)
	}

	result := Result{}

	if compileCmd, ok := req.Runtime.Compile(); ok {
		compileCtx, cancel := context.WithTimeout(ctx, compileGrace)
		state, err := e.runContainer(compileCtx, image, compileCmd.Argv(), workspace, req.MemoryLimitMb)
		cancel()
		if err != nil {
			runFailures.WithLabelValues(language).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "compile container failed")
			return Result{}, fmt.Errorf("compile: %w", err)
		}
		if state.exitCode != 0 {
			result.CompileFailed = true
			result.ExitCode = state.exitCode
			result.Stderr = strings.TrimSpace(state.stdout + state.stderr)
			span.SetAttributes(attribute.Bool("judge.compile_failed", true))
			return result, nil
		}
	}

	limit := effectiveLimit(req)
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	shellCmd := []string{"sh", "-c", req.Runtime.Run().String() + " < " + stdinFileName}

	start := time.Now()
	state, err := e.runContainer(runCtx, image, shellCmd, workspace, req.MemoryLimitMb)
	result.WallTime = time.Since(start)
	runDuration.WithLabelValues(language).Observe(result.WallTime.Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
			result.TimedOut = true
			runTimeouts.WithLabelValues(language).Inc()
			result.Stdout = state.stdout
			result.Stderr = state.stderr
			result.MemoryUsedMb = float64(state.memoryBytes) / (1024.0 * 1024.0)
			result.MemoryMeasured = state.memoryBytes > 0
			span.SetStatus(codes.Error, "execution timed out")
			return result, nil
		}
		runFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	result.Stdout = state.stdout
	result.Stderr = state.stderr
	result.ExitCode = state.exitCode
	if state.memoryBytes > 0 {
		result.MemoryUsedMb = float64(state.memoryBytes) / (1024.0 * 1024.0)
		result.MemoryMeasured = true
	} else {
		result.MemoryUsedMb = estimateMemoryMb(len(state.stdout) + len(state.stderr))
	}

	return result, nil
}

type containerState struct {
	stdout      string
	stderr      string
	exitCode    int
	memoryBytes int64
}

// runContainer drives one container to completion: create, start, wait,
// collect logs and stats, and force-remove on every path.
func (e *DockerExecutor) runContainer(ctx context.Context, image string, cmd []string, workspace string, memoryLimitMb int) (containerState, error) {
	state := containerState{}

	hostCfg := &container.HostConfig{
		AutoRemove:  false,
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    int64(memoryLimitMb) * 1024 * 1024,
			CPUShares: e.cfg.CPUShares,
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: containerWorkdir,
		}},
	}

	config := &container.Config{
		Image:        image,
		Cmd:          cmd,
		WorkingDir:   containerWorkdir,
		AttachStdout: true,
		AttachStderr: true,
	}

	resp, err := e.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return state, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return state, fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		state.exitCode = int(status.StatusCode)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	if waitErr != nil && (errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(waitErr, context.Canceled)) {
		killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill container")
		}
	}

	e.collectLogs(containerID, &state)
	e.collectStats(containerID, &state)

	if waitErr != nil {
		return state, fmt.Errorf("container wait: %w", waitErr)
	}
	return state, nil
}

func (e *DockerExecutor) collectLogs(containerID string, state *containerState) {
	logCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reader, err := e.client.ContainerLogs(logCtx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
		return
	}
	defer reader.Close()

	stdout, stderr, err := splitLogs(reader)
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		return
	}
	state.stdout = stdout
	state.stderr = stderr
}

func (e *DockerExecutor) collectStats(containerID string, state *containerState) {
	statsCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := e.client.ContainerStatsOneShot(statsCtx, containerID)
	if err != nil {
		return
	}
	defer stats.Body.Close()

	var data types.StatsJSON
	if err := json.NewDecoder(stats.Body).Decode(&data); err == nil {
		state.memoryBytes = int64(data.MemoryStats.Usage)
	}
}

func splitLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
