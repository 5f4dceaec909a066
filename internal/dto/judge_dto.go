package dto

import "time"

// GradeJob is the queue payload asking the worker to grade one submission.
type GradeJob struct {
	JobID     string `json:"job_id"`
	UserID    uint   `json:"user_id" validate:"required"`
	ContestID uint   `json:"contest_id"`
	ProblemID uint   `json:"problem_id" validate:"required"`
	Language  string `json:"language" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

// StatusEvent announces a submission lifecycle transition to interested
// consumers (leaderboards, UIs). It carries no authority: the persisted
// submission is the source of truth.
type StatusEvent struct {
	JobID        string    `json:"job_id"`
	UserID       uint      `json:"user_id"`
	ContestID    uint      `json:"contest_id,omitempty"`
	ProblemID    uint      `json:"problem_id"`
	SubmissionID uint      `json:"submission_id,omitempty"`
	Status       string    `json:"status"`
	Score        int       `json:"score"`
	MaxScore     int       `json:"max_score"`
	OccurredAt   time.Time `json:"occurred_at"`
}
