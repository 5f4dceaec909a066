package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codearena/judge-core/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Problem{}, &models.TestCase{},
		&models.Submission{}, &models.TestResult{},
		&models.Contest{}, &models.ContestProblem{}, &models.ContestResult{},
	))
	return db
}

func TestContestResultRepositoryRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestResultRepository(db)

	result := models.ContestResult{UserID: 5, ContestID: 3}
	result.SetResults(models.ProblemResultMap{
		1: {MaxScore: 100, Status: models.ProblemStatusNotAttempted},
	})
	require.NoError(t, repo.Create(context.Background(), &result))

	found, err := repo.Find(context.Background(), 5, 3)
	require.NoError(t, err)
	require.Equal(t, result.ID, found.ID)
	require.Equal(t, 100, found.Results()[1].MaxScore)
}

func TestContestResultRepositoryFindMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestResultRepository(db)

	_, err := repo.Find(context.Background(), 5, 3)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestContestResultRepositorySaveBumpsVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestResultRepository(db)

	result := models.ContestResult{UserID: 5, ContestID: 3}
	result.SetResults(models.ProblemResultMap{1: {MaxScore: 100}})
	require.NoError(t, repo.Create(context.Background(), &result))

	result.SetResults(models.ProblemResultMap{
		1: {Score: 40, MaxScore: 100, SubmissionCount: 1, Status: models.ProblemStatusPartial},
	})
	require.NoError(t, repo.Save(context.Background(), &result))
	require.Equal(t, int64(1), result.Version)

	found, err := repo.Find(context.Background(), 5, 3)
	require.NoError(t, err)
	require.Equal(t, int64(1), found.Version)
	require.Equal(t, 40, found.Results()[1].Score)
}

func TestContestResultRepositorySaveDetectsConcurrentWriter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestResultRepository(db)

	result := models.ContestResult{UserID: 5, ContestID: 3}
	result.SetResults(models.ProblemResultMap{1: {MaxScore: 100}})
	require.NoError(t, repo.Create(context.Background(), &result))

	stale := result
	require.NoError(t, repo.Save(context.Background(), &result))

	err := repo.Save(context.Background(), &stale)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.Equal(t, int64(0), stale.Version, "a failed save leaves the version untouched")
}

func TestProblemRepositoryOrdersTestCases(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProblemRepository(db)

	problem := models.Problem{
		Title: "Sum",
		TestCases: []models.TestCase{
			{Input: "b", Position: 2, Points: 60},
			{Input: "a", Position: 1, Points: 40},
		},
	}
	require.NoError(t, db.Create(&problem).Error)

	found, err := repo.GetByID(context.Background(), problem.ID)
	require.NoError(t, err)
	require.Len(t, found.TestCases, 2)
	require.Equal(t, "a", found.TestCases[0].Input, "test cases come back in declared order")
	require.Equal(t, 100, found.MaxScore())
}

func TestSubmissionRepositoryAppendsHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	first := models.Submission{
		UserID: 5, ProblemID: 1, Language: "python",
		Status: models.SubmissionStatusWrongAnswer, Score: 40, MaxScore: 100,
		TestResults: []models.TestResult{
			{TestCaseID: 1, Passed: true, ExecutionTimeMs: 12},
			{TestCaseID: 2, Passed: false, Error: "wrong output"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), &first))

	second := models.Submission{
		UserID: 5, ProblemID: 1, Language: "python",
		Status: models.SubmissionStatusAccepted, Score: 100, MaxScore: 100,
	}
	require.NoError(t, repo.Create(context.Background(), &second))

	found, err := repo.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, found.TestResults, 2)

	history, err := repo.ListByUserAndProblem(context.Background(), 5, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
}
