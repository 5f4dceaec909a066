package service

import (
	"time"

	"github.com/codearena/judge-core/internal/models"
)

// ApplySubmission merges one graded submission into a contest result and
// returns the updated value. It is a pure function: the previous value is
// never mutated, and the persistence layer owns the read-merge-write
// transaction around it.
//
// Per-problem invariants: score only ever rises, time spent accumulates,
// the submission counter increments on every call, an accepted status never
// regresses, and FirstAcceptedAt is written exactly once.
func ApplySubmission(prev models.ContestResult, problemID uint, outcome Outcome, submittedAt time.Time) models.ContestResult {
	next := prev

	results := models.ProblemResultMap{}
	for id, pr := range prev.Results() {
		results[id] = pr
	}

	pr, ok := results[problemID]
	if !ok {
		// The contest result may predate the final problem list; synthesize
		// an entry from the submission's own max score.
		pr = models.ProblemResult{
			MaxScore: outcome.Submission.MaxScore,
			Status:   models.ProblemStatusNotAttempted,
		}
	}
	if pr.MaxScore == 0 {
		pr.MaxScore = outcome.Submission.MaxScore
	}

	if outcome.Submission.Score > pr.Score {
		pr.Score = outcome.Submission.Score
	}
	pr.TimeSpentMs += outcome.Submission.TotalExecutionTimeMs
	pr.SubmissionCount++

	if pr.Status != models.ProblemStatusAccepted {
		switch outcome.Grade {
		case models.ProblemStatusAccepted:
			pr.Status = models.ProblemStatusAccepted
		case models.ProblemStatusPartial:
			pr.Status = models.ProblemStatusPartial
		default:
			if pr.Status == models.ProblemStatusNotAttempted {
				pr.Status = models.ProblemStatusAttempted
			}
		}
	}

	if pr.Status == models.ProblemStatusAccepted && pr.FirstAcceptedAt == nil {
		at := submittedAt
		pr.FirstAcceptedAt = &at
	}

	results[problemID] = pr
	next.SetResults(results)
	return next
}

// InitialProblemResults builds the not_attempted entries created when a user
// joins a contest, one per contest problem.
func InitialProblemResults(contest models.Contest, maxScores map[uint]int) models.ProblemResultMap {
	results := models.ProblemResultMap{}
	for _, cp := range contest.Problems {
		max, ok := maxScores[cp.ProblemID]
		if !ok {
			max = cp.Points
		}
		results[cp.ProblemID] = models.ProblemResult{
			MaxScore: max,
			Status:   models.ProblemStatusNotAttempted,
		}
	}
	return results
}
