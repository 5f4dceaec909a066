package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codearena/judge-core/internal/models"
)

func TestScoreResultsPartialCredit(t *testing.T) {
	testCases := []models.TestCase{
		{ID: 1, Points: 40},
		{ID: 2, Points: 60},
	}
	results := []models.TestResult{
		{TestCaseID: 1, Passed: false},
		{TestCaseID: 2, Passed: true},
	}

	summary, err := ScoreResults(results, testCases, 0)
	require.NoError(t, err)
	require.Equal(t, 60, summary.Score)
	require.Equal(t, 100, summary.MaxScore)
	require.Equal(t, models.ProblemStatusPartial, summary.Status)
}

func TestScoreResultsAccepted(t *testing.T) {
	testCases := []models.TestCase{{ID: 1, Points: 50}, {ID: 2, Points: 50}}
	results := []models.TestResult{
		{TestCaseID: 1, Passed: true},
		{TestCaseID: 2, Passed: true},
	}

	summary, err := ScoreResults(results, testCases, 0)
	require.NoError(t, err)
	require.Equal(t, 100, summary.Score)
	require.Equal(t, models.ProblemStatusAccepted, summary.Status)
}

func TestScoreResultsAllFailedIsAttempted(t *testing.T) {
	testCases := []models.TestCase{{ID: 1, Points: 50}}
	results := []models.TestResult{{TestCaseID: 1, Passed: false}}

	summary, err := ScoreResults(results, testCases, 0)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Score)
	require.Equal(t, models.ProblemStatusAttempted, summary.Status)
}

func TestScoreResultsEmptyTestCasesFallsBackToFlatPoints(t *testing.T) {
	summary, err := ScoreResults(nil, nil, 100)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Score)
	require.Equal(t, 100, summary.MaxScore)
	require.Equal(t, models.ProblemStatusAttempted, summary.Status)
}

func TestScoreResultsDefaultsPointsToOne(t *testing.T) {
	testCases := []models.TestCase{{ID: 1}, {ID: 2}, {ID: 3}}
	results := []models.TestResult{
		{TestCaseID: 1, Passed: true},
		{TestCaseID: 2, Passed: true},
		{TestCaseID: 3, Passed: false},
	}

	summary, err := ScoreResults(results, testCases, 0)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Score)
	require.Equal(t, 3, summary.MaxScore)
}

func TestScoreResultsLengthMismatchIsAnError(t *testing.T) {
	testCases := []models.TestCase{{ID: 1}, {ID: 2}}
	results := []models.TestResult{{TestCaseID: 1}}

	_, err := ScoreResults(results, testCases, 0)
	require.ErrorIs(t, err, ErrResultCountMismatch)
}
