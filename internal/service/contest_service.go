package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codearena/judge-core/internal/models"
	"github.com/codearena/judge-core/internal/repository"
)

// ErrContestResultCompleted indicates the result is closed and no further
// submissions may be merged into it.
var ErrContestResultCompleted = errors.New("contest result is completed")

// ErrLockContended indicates the per-(user, contest) lock could not be
// acquired within the retry budget.
var ErrLockContended = errors.New("contest result lock contended")

const (
	resultLockTTL    = 10 * time.Second
	lockAttempts     = 5
	lockRetryBackoff = 100 * time.Millisecond
	saveAttempts     = 3
)

// ContestService owns the read-merge-write cycle around contest results.
// The merge itself is the pure ApplySubmission; this service adds the
// per-key lock and the optimistic retry that keep concurrent submissions
// for the same (user, contest) pair from losing updates.
type ContestService struct {
	results  repository.ContestResultRepository
	contests repository.ContestRepository
	problems repository.ProblemRepository
	locker   repository.Locker
	logger   zerolog.Logger
	now      func() time.Time
}

// NewContestService constructs the contest result aggregator service.
func NewContestService(results repository.ContestResultRepository, contests repository.ContestRepository, problems repository.ProblemRepository, locker repository.Locker, logger zerolog.Logger) *ContestService {
	return &ContestService{
		results:  results,
		contests: contests,
		problems: problems,
		locker:   locker,
		logger:   logger.With().Str("component", "contest_service").Logger(),
		now:      time.Now,
	}
}

// JoinContest creates the contest result for a user with a not_attempted
// entry per contest problem. Joining twice returns the existing record.
func (s *ContestService) JoinContest(ctx context.Context, userID, contestID uint) (models.ContestResult, error) {
	if existing, err := s.results.Find(ctx, userID, contestID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ContestResult{}, err
	}

	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return models.ContestResult{}, fmt.Errorf("fetch contest: %w", err)
	}

	maxScores := make(map[uint]int, len(contest.Problems))
	for _, cp := range contest.Problems {
		problem, err := s.problems.GetByID(ctx, cp.ProblemID)
		if err != nil {
			return models.ContestResult{}, fmt.Errorf("fetch problem %d: %w", cp.ProblemID, err)
		}
		maxScores[cp.ProblemID] = problem.MaxScore()
	}

	result := models.ContestResult{
		UserID:    userID,
		ContestID: contestID,
	}
	result.SetResults(InitialProblemResults(contest, maxScores))

	if err := s.results.Create(ctx, &result); err != nil {
		return models.ContestResult{}, err
	}
	return result, nil
}

// RecordSubmission merges a graded submission into the user's contest
// result. The read-modify-write cycle is serialized per (user, contest) by
// a distributed lock, and the save retries on version conflicts so a racing
// writer can never lose a score improvement or double-count time spent.
func (s *ContestService) RecordSubmission(ctx context.Context, userID, contestID, problemID uint, outcome Outcome) (models.ContestResult, error) {
	release, err := s.acquireLock(ctx, userID, contestID)
	if err != nil {
		return models.ContestResult{}, err
	}
	defer release()

	for attempt := 0; attempt < saveAttempts; attempt++ {
		result, err := s.results.Find(ctx, userID, contestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result, err = s.JoinContest(ctx, userID, contestID)
		}
		if err != nil {
			return models.ContestResult{}, err
		}

		if result.IsCompleted {
			return models.ContestResult{}, ErrContestResultCompleted
		}

		merged := ApplySubmission(result, problemID, outcome, s.now())
		if err := s.results.Save(ctx, &merged); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				s.logger.Warn().
					Uint("user_id", userID).
					Uint("contest_id", contestID).
					Int("attempt", attempt+1).
					Msg("contest result version conflict, retrying merge")
				continue
			}
			return models.ContestResult{}, err
		}
		return merged, nil
	}

	return models.ContestResult{}, repository.ErrVersionConflict
}

// Complete closes the contest result; subsequent merges are rejected.
func (s *ContestService) Complete(ctx context.Context, userID, contestID uint) (models.ContestResult, error) {
	release, err := s.acquireLock(ctx, userID, contestID)
	if err != nil {
		return models.ContestResult{}, err
	}
	defer release()

	result, err := s.results.Find(ctx, userID, contestID)
	if err != nil {
		return models.ContestResult{}, err
	}
	if result.IsCompleted {
		return result, nil
	}

	result.IsCompleted = true
	if err := s.results.Save(ctx, &result); err != nil {
		return models.ContestResult{}, err
	}
	return result, nil
}

func (s *ContestService) acquireLock(ctx context.Context, userID, contestID uint) (func(), error) {
	key := fmt.Sprintf("judge:contest_result:%d:%d", contestID, userID)

	for attempt := 0; attempt < lockAttempts; attempt++ {
		release, acquired, err := s.locker.Acquire(ctx, key, resultLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire contest result lock: %w", err)
		}
		if acquired {
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	return nil, ErrLockContended
}
