package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/codearena/judge-core/internal/dto"
	"github.com/codearena/judge-core/internal/models"
	"github.com/codearena/judge-core/internal/service"
)

type stubGrader struct {
	outcome service.Outcome
	err     error
	calls   int
}

func (s *stubGrader) Grade(ctx context.Context, code, language string, problem models.Problem) (service.Outcome, error) {
	s.calls++
	if s.err != nil {
		return service.Outcome{}, s.err
	}
	return s.outcome, nil
}

type stubRecorder struct {
	mu    sync.Mutex
	calls int
	last  service.Outcome
}

func (s *stubRecorder) RecordSubmission(ctx context.Context, userID, contestID, problemID uint, outcome service.Outcome) (models.ContestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = outcome
	return models.ContestResult{}, nil
}

type stubProblemStore struct {
	problem models.Problem
	err     error
}

func (s *stubProblemStore) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	return s.problem, s.err
}

type stubContestStore struct {
	contest models.Contest
}

func (s *stubContestStore) GetByID(ctx context.Context, id uint) (models.Contest, error) {
	return s.contest, nil
}

type stubSubmissionStore struct {
	mu      sync.Mutex
	created []models.Submission
}

func (s *stubSubmissionStore) Create(ctx context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission.ID = uint(len(s.created) + 1)
	s.created = append(s.created, *submission)
	return nil
}

func (s *stubSubmissionStore) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	return models.Submission{}, errors.New("not implemented")
}

func (s *stubSubmissionStore) ListByUserAndProblem(ctx context.Context, userID, problemID uint) ([]models.Submission, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSubmissionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func acceptedOutcome() service.Outcome {
	return service.Outcome{
		Submission: models.Submission{
			ProblemID: 1,
			Language:  "python",
			Status:    models.SubmissionStatusAccepted,
			Score:     100,
			MaxScore:  100,
		},
		Grade: models.ProblemStatusAccepted,
	}
}

func openContest() models.Contest {
	return models.Contest{
		ID:        3,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}
}

func newTestWorker(t *testing.T, rdb *redis.Client, grader *stubGrader, recorder *stubRecorder, problems *stubProblemStore, contests *stubContestStore, submissions *stubSubmissionStore) *Worker {
	t.Helper()
	return New(rdb, Config{QueueName: "judge:test", Concurrency: 1},
		grader, recorder, problems, contests, submissions,
		NewStatusPublisher(nil, "", zerolog.Nop()),
		validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func jobPayload(t *testing.T, job dto.GradeJob) string {
	t.Helper()
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	return string(payload)
}

func TestProcessGradesAndRecords(t *testing.T) {
	grader := &stubGrader{outcome: acceptedOutcome()}
	recorder := &stubRecorder{}
	submissions := &stubSubmissionStore{}
	w := newTestWorker(t, nil, grader, recorder,
		&stubProblemStore{problem: models.Problem{ID: 1}},
		&stubContestStore{contest: openContest()}, submissions)

	w.Process(context.Background(), jobPayload(t, dto.GradeJob{
		JobID: "j1", UserID: 5, ContestID: 3, ProblemID: 1,
		Language: "python", Code: "print(1)",
	}))

	require.Equal(t, 1, grader.calls)
	require.Equal(t, 1, recorder.calls)
	require.Equal(t, 1, submissions.count())
	require.Equal(t, uint(5), submissions.created[0].UserID)
	require.Equal(t, uint(3), submissions.created[0].ContestID)
}

func TestProcessSkipsContestRecordingForPracticeSubmission(t *testing.T) {
	grader := &stubGrader{outcome: acceptedOutcome()}
	recorder := &stubRecorder{}
	submissions := &stubSubmissionStore{}
	w := newTestWorker(t, nil, grader, recorder,
		&stubProblemStore{problem: models.Problem{ID: 1}},
		&stubContestStore{}, submissions)

	w.Process(context.Background(), jobPayload(t, dto.GradeJob{
		JobID: "j2", UserID: 5, ProblemID: 1, Language: "python", Code: "print(1)",
	}))

	require.Equal(t, 1, submissions.count())
	require.Zero(t, recorder.calls, "practice submissions do not touch contest results")
}

func TestProcessRejectsSubmissionOutsideContestWindow(t *testing.T) {
	grader := &stubGrader{outcome: acceptedOutcome()}
	recorder := &stubRecorder{}
	submissions := &stubSubmissionStore{}
	closed := models.Contest{
		ID:        3,
		StartTime: time.Now().Add(-2 * time.Hour),
		EndTime:   time.Now().Add(-time.Hour),
	}
	w := newTestWorker(t, nil, grader, recorder,
		&stubProblemStore{problem: models.Problem{ID: 1}},
		&stubContestStore{contest: closed}, submissions)

	w.Process(context.Background(), jobPayload(t, dto.GradeJob{
		JobID: "j3", UserID: 5, ContestID: 3, ProblemID: 1,
		Language: "python", Code: "print(1)",
	}))

	require.Zero(t, grader.calls, "nothing is graded outside the contest window")
	require.Zero(t, submissions.count())
}

func TestProcessDropsRejectedSubmission(t *testing.T) {
	grader := &stubGrader{err: service.ErrUnsupportedLanguage}
	recorder := &stubRecorder{}
	submissions := &stubSubmissionStore{}
	w := newTestWorker(t, nil, grader, recorder,
		&stubProblemStore{problem: models.Problem{ID: 1}},
		&stubContestStore{contest: openContest()}, submissions)

	w.Process(context.Background(), jobPayload(t, dto.GradeJob{
		JobID: "j4", UserID: 5, ContestID: 3, ProblemID: 1,
		Language: "befunge", Code: "@",
	}))

	require.Zero(t, submissions.count(), "rejected submissions are not persisted")
	require.Zero(t, recorder.calls)
}

func TestProcessDiscardsInvalidPayload(t *testing.T) {
	grader := &stubGrader{outcome: acceptedOutcome()}
	submissions := &stubSubmissionStore{}
	w := newTestWorker(t, nil, grader, &stubRecorder{},
		&stubProblemStore{problem: models.Problem{ID: 1}},
		&stubContestStore{}, submissions)

	w.Process(context.Background(), "{not json")
	w.Process(context.Background(), jobPayload(t, dto.GradeJob{JobID: "missing-fields"}))

	require.Zero(t, grader.calls)
}

func TestStartConsumesQueuedJobs(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	grader := &stubGrader{outcome: acceptedOutcome()}
	recorder := &stubRecorder{}
	submissions := &stubSubmissionStore{}
	w := newTestWorker(t, rdb, grader, recorder,
		&stubProblemStore{problem: models.Problem{ID: 1}},
		&stubContestStore{contest: openContest()}, submissions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	payload := jobPayload(t, dto.GradeJob{
		JobID: "j5", UserID: 5, ContestID: 3, ProblemID: 1,
		Language: "python", Code: "print(1)",
	})
	require.NoError(t, rdb.LPush(context.Background(), "judge:test", payload).Err())

	require.Eventually(t, func() bool {
		return submissions.count() == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
