package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codearena/judge-core/internal/dto"
	"github.com/codearena/judge-core/internal/models"
	"github.com/codearena/judge-core/internal/observability"
	"github.com/codearena/judge-core/internal/repository"
	"github.com/codearena/judge-core/internal/service"
)

// Grader grades one submission against a problem.
type Grader interface {
	Grade(ctx context.Context, code, language string, problem models.Problem) (service.Outcome, error)
}

// ResultRecorder merges a graded outcome into the user's contest result.
type ResultRecorder interface {
	RecordSubmission(ctx context.Context, userID, contestID, problemID uint, outcome service.Outcome) (models.ContestResult, error)
}

// popTimeout bounds each blocking queue read so shutdown is responsive even
// on redis clients that do not honor context cancellation inside BRPOP.
const popTimeout = 5 * time.Second

// Config holds worker knobs.
type Config struct {
	QueueName   string
	Concurrency int
}

// Worker consumes grading jobs from a redis list queue. Each job is one
// submission; jobs for different submissions run fully in parallel across
// the worker goroutines because grading shares no mutable state.
type Worker struct {
	rdb         *redis.Client
	cfg         Config
	grader      Grader
	recorder    ResultRecorder
	problems    repository.ProblemRepository
	contests    repository.ContestRepository
	submissions repository.SubmissionRepository
	publisher   *StatusPublisher
	validate    *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// New constructs a worker.
func New(rdb *redis.Client, cfg Config, grader Grader, recorder ResultRecorder, problems repository.ProblemRepository, contests repository.ContestRepository, submissions repository.SubmissionRepository, publisher *StatusPublisher, validate *validator.Validate, logger zerolog.Logger) *Worker {
	if cfg.QueueName == "" {
		cfg.QueueName = "judge:queue"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Worker{
		rdb:         rdb,
		cfg:         cfg,
		grader:      grader,
		recorder:    recorder,
		problems:    problems,
		contests:    contests,
		submissions: submissions,
		publisher:   publisher,
		validate:    validate,
		logger:      logger.With().Str("component", "judge_worker").Logger(),
		now:         time.Now,
	}
}

// Start runs the consume loops until the context is canceled and all
// in-flight jobs have finished.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().
		Str("queue", w.cfg.QueueName).
		Int("concurrency", w.cfg.Concurrency).
		Msg("judge worker started")

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()

	w.logger.Info().Msg("judge worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		values, err := w.rdb.BRPop(ctx, popTimeout, w.cfg.QueueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error().Err(err).Str("queue", w.cfg.QueueName).Msg("queue pop failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if len(values) < 2 || values[1] == "" {
			continue
		}
		w.Process(ctx, values[1])
	}
}

// Process grades one queued job payload. Exported so callers can drive jobs
// synchronously without the queue loop.
func (w *Worker) Process(ctx context.Context, payload string) {
	var job dto.GradeJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		w.logger.Error().Err(err).Msg("discarding malformed job payload")
		return
	}
	if err := w.validate.Struct(job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.JobID).Msg("discarding invalid job")
		return
	}

	logger := w.logger.With().Str("job_id", job.JobID).Uint("problem_id", job.ProblemID).Logger()

	problem, err := w.problems.GetByID(ctx, job.ProblemID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch problem")
		return
	}

	if job.ContestID != 0 {
		contest, err := w.contests.GetByID(ctx, job.ContestID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to fetch contest")
			return
		}
		if !contest.IsOpenAt(w.now()) {
			logger.Warn().Uint("contest_id", job.ContestID).Msg("rejecting submission outside contest window")
			return
		}
	}

	w.publishStatus(job, 0, models.SubmissionStatusRunning, 0, 0)

	start := w.now()
	outcome, err := w.grader.Grade(ctx, job.Code, job.Language, problem)
	if err != nil {
		// Submission-level rejection: unsupported language, budget ceiling,
		// or cancellation. Nothing was graded, nothing is persisted.
		logger.Error().Err(err).Msg("grading rejected")
		observability.GradeRejections().WithLabelValues(job.Language).Inc()
		return
	}

	observability.GradeDuration().WithLabelValues(job.Language).Observe(w.now().Sub(start).Seconds())
	observability.SubmissionsGraded().WithLabelValues(job.Language, outcome.Submission.Status).Inc()

	submission := outcome.Submission
	submission.UserID = job.UserID
	submission.ContestID = job.ContestID

	if err := w.submissions.Create(ctx, &submission); err != nil {
		logger.Error().Err(err).Msg("failed to persist submission")
	}

	if job.ContestID != 0 {
		if _, err := w.recorder.RecordSubmission(ctx, job.UserID, job.ContestID, job.ProblemID, outcome); err != nil {
			logger.Error().Err(err).Msg("failed to record contest result")
		}
	}

	w.publishStatus(job, submission.ID, submission.Status, submission.Score, submission.MaxScore)

	logger.Info().
		Str("status", submission.Status).
		Int("score", submission.Score).
		Int("max_score", submission.MaxScore).
		Msg("submission graded")
}

func (w *Worker) publishStatus(job dto.GradeJob, submissionID uint, status string, score, maxScore int) {
	w.publisher.Publish(dto.StatusEvent{
		JobID:        job.JobID,
		UserID:       job.UserID,
		ContestID:    job.ContestID,
		ProblemID:    job.ProblemID,
		SubmissionID: submissionID,
		Status:       status,
		Score:        score,
		MaxScore:     maxScore,
		OccurredAt:   w.now(),
	})
}
