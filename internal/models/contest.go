package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProblemStatus tracks a user's cumulative standing on one contest problem.
// These are grading outcomes; infrastructure faults live in Fault.
type ProblemStatus string

// ProblemStatus values, in order of progression.
const (
	ProblemStatusNotAttempted ProblemStatus = "not_attempted"
	ProblemStatusAttempted    ProblemStatus = "attempted"
	ProblemStatusPartial      ProblemStatus = "partial"
	ProblemStatusAccepted     ProblemStatus = "accepted"
)

// Contest groups an ordered list of problems inside a time window. The core
// only consumes the window and the problem list; enforcing the window is the
// caller's responsibility.
type Contest struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Problems  []ContestProblem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"problems"`
	CreatedAt time.Time        `json:"created_at"`
}

// ContestProblem links a problem into a contest at a given position.
type ContestProblem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ContestID uint `gorm:"not null;index" json:"contest_id"`
	ProblemID uint `gorm:"not null" json:"problem_id"`
	Position  int  `gorm:"default:0" json:"position"`
	Points    int  `gorm:"default:0" json:"points"`
}

// IsOpenAt reports whether the contest accepts submissions at the given time.
func (c Contest) IsOpenAt(t time.Time) bool {
	if t.Before(c.StartTime) {
		return false
	}
	if !c.EndTime.IsZero() && t.After(c.EndTime) {
		return false
	}
	return true
}

// ProblemResult is a user's cumulative result for one problem within a
// contest. Score only ever rises, TimeSpentMs only ever accumulates, and
// FirstAcceptedAt is written exactly once.
type ProblemResult struct {
	Score           int           `json:"score"`
	MaxScore        int           `json:"max_score"`
	TimeSpentMs     int64         `json:"time_spent_ms"`
	SubmissionCount int           `json:"submission_count"`
	FirstAcceptedAt *time.Time    `json:"first_accepted_at,omitempty"`
	Status          ProblemStatus `json:"status"`
}

// ProblemResultMap keys per-problem results by problem id.
type ProblemResultMap map[uint]ProblemResult

// ContestResult is the single logical record for one (user, contest) pair.
// TotalScore and TotalTimeMs are derived sums over ProblemResults and are
// recomputed on every merge, never mutated independently.
type ContestResult struct {
	ID             uint                                    `gorm:"primaryKey" json:"id"`
	UserID         uint                                    `gorm:"not null;uniqueIndex:idx_contest_result_user" json:"user_id"`
	ContestID      uint                                    `gorm:"not null;uniqueIndex:idx_contest_result_user" json:"contest_id"`
	ProblemResults datatypes.JSONType[ProblemResultMap]    `json:"problem_results"`
	TotalScore     int                                     `gorm:"default:0" json:"total_score"`
	TotalTimeMs    int64                                   `gorm:"default:0" json:"total_time_ms"`
	IsCompleted    bool                                    `gorm:"default:false" json:"is_completed"`
	Version        int64                                   `gorm:"default:0" json:"version"`
	CreatedAt      time.Time                               `json:"created_at"`
	UpdatedAt      time.Time                               `json:"updated_at"`
}

// Results unwraps the per-problem result map, never returning nil.
func (r ContestResult) Results() ProblemResultMap {
	m := r.ProblemResults.Data()
	if m == nil {
		return ProblemResultMap{}
	}
	return m
}

// SetResults stores the per-problem result map and recomputes the derived
// totals.
func (r *ContestResult) SetResults(m ProblemResultMap) {
	r.ProblemResults = datatypes.NewJSONType(m)
	r.TotalScore = 0
	r.TotalTimeMs = 0
	for _, pr := range m {
		r.TotalScore += pr.Score
		r.TotalTimeMs += pr.TimeSpentMs
	}
}
