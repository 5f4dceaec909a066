package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// TestCase is one (input, expected output, points) triple owned by a problem.
// Grading reads a snapshot of the problem's test cases; rows are never
// mutated once a submission references them.
type TestCase struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProblemID      uint      `gorm:"not null;index" json:"problem_id"`
	Input          string    `gorm:"type:text" json:"input"`
	ExpectedOutput string    `gorm:"type:text" json:"expected_output"`
	IsHidden       bool      `gorm:"default:false" json:"is_hidden"`
	Points         int       `gorm:"default:1" json:"points"`
	Position       int       `gorm:"default:0" json:"position"`
	CreatedAt      time.Time `json:"created_at"`
}

// EffectivePoints returns the score value of the test case, applying the
// default of one point when no explicit value was stored.
func (t TestCase) EffectivePoints() int {
	if t.Points <= 0 {
		return 1
	}
	return t.Points
}

// Problem describes a gradable task: its ordered test cases, per-language
// harness and starter code, and execution limits.
type Problem struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Title         string            `gorm:"size:255;not null" json:"title"`
	Statement     string            `gorm:"type:text" json:"statement"`
	Harness       string            `gorm:"type:text" json:"harness"`
	HarnessByLang datatypes.JSONMap `json:"harness_by_lang"`
	CodeTemplates datatypes.JSONMap `json:"code_templates"`
	TimeLimitMs   int               `gorm:"default:5000" json:"time_limit_ms"`
	MemoryLimitMb int               `gorm:"default:256" json:"memory_limit_mb"`
	Points        int               `gorm:"default:0" json:"points"`
	TestCases     []TestCase        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"test_cases"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// HarnessFor resolves the harness text for a language. A per-language map
// takes precedence over the shared harness string; a language missing from
// the map resolves to the empty harness.
func (p Problem) HarnessFor(language string) string {
	if len(p.HarnessByLang) > 0 {
		if v, ok := p.HarnessByLang[strings.ToLower(language)]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	return p.Harness
}

// TemplateFor returns the starter code registered for a language, or the
// empty string when none exists.
func (p Problem) TemplateFor(language string) string {
	if len(p.CodeTemplates) == 0 {
		return ""
	}
	if v, ok := p.CodeTemplates[strings.ToLower(language)]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MaxScore is the problem's effective maximum: the sum of test case points,
// falling back to the flat problem score when no test cases exist.
func (p Problem) MaxScore() int {
	if len(p.TestCases) == 0 {
		return p.Points
	}
	total := 0
	for _, tc := range p.TestCases {
		total += tc.EffectivePoints()
	}
	return total
}
