// Package sandbox executes untrusted submission code under a wall-clock
// deadline, owning the temporary artifact lifecycle for every run.
package sandbox

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codearena/judge-core/internal/runtime"
)

// DefaultTimeLimit bounds a run when the request does not carry a limit.
const DefaultTimeLimit = 5 * time.Second

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "judge",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of sandboxed executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "sandbox",
		Name:      "run_timeouts_total",
		Help:      "Number of executions that hit the wall-clock deadline",
	}, []string{"language"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "sandbox",
		Name:      "run_failures_total",
		Help:      "Number of executions that resulted in an infrastructure error",
	}, []string{"language"})
)

// Executor runs one composed source against one test case input. An error
// return means the sandbox itself could not allocate or execute; program
// failures (non-zero exit, timeout) are reported inside Result instead.
type Executor interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Request describes a single sandboxed execution.
type Request struct {
	// Source is the composed executable source (user code plus harness).
	Source string
	// Runtime declares how to materialize, compile and run the source.
	Runtime runtime.Runtime
	// Stdin is written to the process's standard input as UTF-8 text.
	Stdin string
	// TimeLimit is the wall-clock deadline; DefaultTimeLimit when zero.
	TimeLimit time.Duration
	// MemoryLimitMb is a policy hook. The process executor does not enforce
	// it; backends with real isolation (containers, cgroups) must honor it.
	MemoryLimitMb int
}

// Result summarises one execution.
type Result struct {
	Stdout        string
	Stderr        string
	ExitCode      int
	TimedOut      bool
	CompileFailed bool
	WallTime      time.Duration
	// MemoryUsedMb is an output-size derived estimate unless MemoryMeasured
	// is set by a backend that reads a real figure from its isolation layer.
	MemoryUsedMb   float64
	MemoryMeasured bool
}

// estimateMemoryMb falls back to output byte size when no isolation layer
// supplies a real measurement.
func estimateMemoryMb(outputBytes int) float64 {
	return float64(outputBytes) / (1024.0 * 1024.0)
}

func effectiveLimit(req Request) time.Duration {
	if req.TimeLimit <= 0 {
		return DefaultTimeLimit
	}
	return req.TimeLimit
}
