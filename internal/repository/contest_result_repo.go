package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/codearena/judge-core/internal/models"
)

// ErrVersionConflict indicates a concurrent writer updated the contest
// result between read and save. Callers re-read and retry the merge.
var ErrVersionConflict = errors.New("contest result version conflict")

// ContestResultRepository owns the single logical record per (user, contest)
// pair. Save is compare-and-swap on the record version so concurrent merges
// for the same pair cannot lose a score improvement or double-count time.
type ContestResultRepository interface {
	Find(ctx context.Context, userID, contestID uint) (models.ContestResult, error)
	Create(ctx context.Context, result *models.ContestResult) error
	Save(ctx context.Context, result *models.ContestResult) error
}

// NewContestResultRepository constructs a contest result repository.
func NewContestResultRepository(db *gorm.DB) ContestResultRepository {
	return &contestResultRepository{db: db}
}

type contestResultRepository struct {
	db *gorm.DB
}

func (r *contestResultRepository) Find(ctx context.Context, userID, contestID uint) (models.ContestResult, error) {
	var result models.ContestResult
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		First(&result).Error
	if err != nil {
		return models.ContestResult{}, err
	}
	return result, nil
}

func (r *contestResultRepository) Create(ctx context.Context, result *models.ContestResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *contestResultRepository) Save(ctx context.Context, result *models.ContestResult) error {
	previous := result.Version
	result.Version = previous + 1

	tx := r.db.WithContext(ctx).
		Model(&models.ContestResult{}).
		Where("id = ? AND version = ?", result.ID, previous).
		Updates(map[string]interface{}{
			"problem_results": result.ProblemResults,
			"total_score":     result.TotalScore,
			"total_time_ms":   result.TotalTimeMs,
			"is_completed":    result.IsCompleted,
			"version":         result.Version,
		})
	if tx.Error != nil {
		result.Version = previous
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		result.Version = previous
		return ErrVersionConflict
	}
	return nil
}
