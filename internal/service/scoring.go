package service

import (
	"errors"
	"fmt"

	"github.com/codearena/judge-core/internal/models"
)

// ErrResultCountMismatch indicates the test result list does not align with
// the test case list. This is a programming error, never a tolerated state.
var ErrResultCountMismatch = errors.New("test result count does not match test case count")

// ScoreSummary is the scoring engine's verdict for one submission.
type ScoreSummary struct {
	Score    int
	MaxScore int
	Status   models.ProblemStatus
}

// ScoreResults maps per-test results to points. Results must be order-aligned
// with the test cases; fallbackPoints is the problem's flat score used when
// it has no test cases at all.
func ScoreResults(results []models.TestResult, testCases []models.TestCase, fallbackPoints int) (ScoreSummary, error) {
	if len(results) != len(testCases) {
		return ScoreSummary{}, fmt.Errorf("%w: %d results for %d test cases",
			ErrResultCountMismatch, len(results), len(testCases))
	}

	summary := ScoreSummary{}
	if len(testCases) == 0 {
		summary.MaxScore = fallbackPoints
		summary.Status = models.ProblemStatusAttempted
		return summary, nil
	}

	for i, tc := range testCases {
		points := tc.EffectivePoints()
		summary.MaxScore += points
		if results[i].Passed {
			summary.Score += points
		}
	}

	switch {
	case summary.Score == summary.MaxScore && summary.MaxScore > 0:
		summary.Status = models.ProblemStatusAccepted
	case summary.Score > 0:
		summary.Status = models.ProblemStatusPartial
	default:
		summary.Status = models.ProblemStatusAttempted
	}

	return summary, nil
}
