package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codearena/judge-core/internal/harness"
	"github.com/codearena/judge-core/internal/models"
	"github.com/codearena/judge-core/internal/runtime"
	"github.com/codearena/judge-core/pkg/sandbox"
)

// ErrUnsupportedLanguage mirrors the runtime registry error so callers can
// branch on the service package alone.
var ErrUnsupportedLanguage = runtime.ErrUnsupportedLanguage

// ErrSubmissionBudgetExceeded indicates the worst-case grading duration
// (test case count times time limit) exceeds the operational ceiling, so the
// submission is rejected before any process is spawned.
var ErrSubmissionBudgetExceeded = errors.New("submission exceeds grading time budget")

// Outcome is a graded submission plus its tagged classification: Grade holds
// the score-derived status and Fault the infrastructure condition, so the
// two can never be confused.
type Outcome struct {
	Submission models.Submission
	Grade      models.ProblemStatus
	Fault      models.Fault
}

// Accepted reports whether the submission scored full marks.
func (o Outcome) Accepted() bool {
	return o.Fault == models.FaultNone && o.Grade == models.ProblemStatusAccepted
}

// GradingConfig holds orchestrator knobs.
type GradingConfig struct {
	// SubmissionBudget caps len(testCases) x timeLimit. Zero applies the
	// two minute default.
	SubmissionBudget time.Duration
}

const defaultSubmissionBudget = 2 * time.Minute

// GradingService is the test orchestrator: it composes the harness once,
// drives the sandbox across the problem's test cases in order, and folds the
// raw results into a scored submission.
type GradingService struct {
	executor sandbox.Executor
	runtimes *runtime.Registry
	cfg      GradingConfig
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewGradingService constructs the orchestrator.
func NewGradingService(executor sandbox.Executor, runtimes *runtime.Registry, cfg GradingConfig, logger zerolog.Logger) *GradingService {
	if cfg.SubmissionBudget <= 0 {
		cfg.SubmissionBudget = defaultSubmissionBudget
	}

	return &GradingService{
		executor: executor,
		runtimes: runtimes,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/codearena/judge-core/internal/service"),
		logger:   logger.With().Str("component", "grading_service").Logger(),
	}
}

// Grade runs one submission against every test case of the problem. Test
// cases execute sequentially in problem order; a compile failure
// short-circuits the remaining cases with a uniform result, while a
// per-test infrastructure failure is captured into that test's result and
// grading continues. Submission-level rejections (unsupported language,
// budget ceiling) abort before any process runs.
func (s *GradingService) Grade(ctx context.Context, code, language string, problem models.Problem) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.String("judge.language", language),
		attribute.Int64("judge.problem_id", int64(problem.ID)),
		attribute.Int("judge.test_cases", len(problem.TestCases)),
	))
	defer span.End()

	rt, err := s.runtimes.Resolve(language)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unsupported_language")
		return Outcome{}, err
	}

	timeLimit := time.Duration(problem.TimeLimitMs) * time.Millisecond
	if timeLimit <= 0 {
		timeLimit = sandbox.DefaultTimeLimit
	}

	if worst := timeLimit * time.Duration(len(problem.TestCases)); worst > s.cfg.SubmissionBudget {
		span.SetStatus(codes.Error, "budget_exceeded")
		return Outcome{}, fmt.Errorf("%w: worst case %s over ceiling %s",
			ErrSubmissionBudgetExceeded, worst, s.cfg.SubmissionBudget)
	}

	source := harness.Compose(code, problem.HarnessFor(rt.Language()), rt.CommentPrefix())

	var (
		results      []models.TestResult
		compileError string
		sawTimeout   bool
		sawCrash     bool
	)

	for _, tc := range problem.TestCases {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "canceled")
			return Outcome{}, ctx.Err()
		}

		if compileError != "" {
			// The source cannot compile differently for a later test case.
			results = append(results, models.TestResult{
				TestCaseID: tc.ID,
				Passed:     false,
				Error:      compileError,
			})
			continue
		}

		res, err := s.executor.Run(ctx, sandbox.Request{
			Source:        source,
			Runtime:       rt,
			Stdin:         tc.Input,
			TimeLimit:     timeLimit,
			MemoryLimitMb: problem.MemoryLimitMb,
		})
		if err != nil {
			if ctx.Err() != nil {
				span.SetStatus(codes.Error, "canceled")
				return Outcome{}, ctx.Err()
			}
			// Sandbox-level failure is scoped to this test case only.
			s.logger.Error().Err(err).Uint("test_case_id", tc.ID).Msg("sandbox failure")
			results = append(results, models.TestResult{
				TestCaseID: tc.ID,
				Passed:     false,
				Error:      err.Error(),
			})
			continue
		}

		results = append(results, s.classify(tc, res, timeLimit))

		switch {
		case res.CompileFailed:
			compileError = results[len(results)-1].Error
		case res.TimedOut:
			sawTimeout = true
		case res.ExitCode != 0:
			sawCrash = true
		}
	}

	summary, err := ScoreResults(results, problem.TestCases, problem.Points)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	outcome := Outcome{
		Submission: models.Submission{
			ProblemID:   problem.ID,
			Language:    rt.Language(),
			Code:        code,
			Score:       summary.Score,
			MaxScore:    summary.MaxScore,
			TestResults: results,
		},
		Grade: summary.Status,
	}

	for _, r := range results {
		outcome.Submission.TotalExecutionTimeMs += r.ExecutionTimeMs
		outcome.Submission.TotalMemoryUsedMb += r.MemoryUsedMb
	}

	// Infrastructure faults pre-empt score-derived statuses.
	switch {
	case compileError != "":
		outcome.Fault = models.FaultCompilationError
	case sawTimeout:
		outcome.Fault = models.FaultTimeLimitExceeded
	case sawCrash:
		outcome.Fault = models.FaultRuntimeError
	}
	outcome.Submission.Status = submissionStatus(outcome)

	span.SetAttributes(
		attribute.Int("judge.score", summary.Score),
		attribute.String("judge.status", outcome.Submission.Status),
	)

	return outcome, nil
}

// classify turns one raw sandbox result into a test result, comparing
// trimmed stdout against the trimmed expected output.
func (s *GradingService) classify(tc models.TestCase, res sandbox.Result, limit time.Duration) models.TestResult {
	tr := models.TestResult{
		TestCaseID:      tc.ID,
		ExecutionTimeMs: res.WallTime.Milliseconds(),
		MemoryUsedMb:    res.MemoryUsedMb,
		Output:          res.Stdout,
	}

	switch {
	case res.CompileFailed:
		tr.Error = compileErrorMessage(res)
	case res.TimedOut:
		tr.Error = fmt.Sprintf("time limit exceeded after %dms", limit.Milliseconds())
	case res.ExitCode != 0:
		tr.Error = strings.TrimSpace(res.Stderr)
		if tr.Error == "" {
			tr.Error = fmt.Sprintf("process exited with code %d", res.ExitCode)
		}
	default:
		tr.Passed = strings.TrimSpace(res.Stdout) == strings.TrimSpace(tc.ExpectedOutput)
	}

	return tr
}

func compileErrorMessage(res sandbox.Result) string {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("compiler exited with code %d", res.ExitCode)
	}
	return "compilation error: " + msg
}

// submissionStatus maps the tagged outcome onto the persisted submission
// status enumeration.
func submissionStatus(o Outcome) string {
	switch o.Fault {
	case models.FaultCompilationError:
		return models.SubmissionStatusCompilationError
	case models.FaultTimeLimitExceeded:
		return models.SubmissionStatusTimeLimitExceeded
	case models.FaultRuntimeError:
		return models.SubmissionStatusRuntimeError
	}
	if o.Grade == models.ProblemStatusAccepted {
		return models.SubmissionStatusAccepted
	}
	return models.SubmissionStatusWrongAnswer
}
