package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	submissionsGraded *prometheus.CounterVec
	gradeRejections   *prometheus.CounterVec
	gradeDuration     *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the judge worker.
func RegisterMetrics() {
	registerOnce.Do(func() {
		submissionsGraded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_submissions_graded_total",
			Help: "Total number of submissions graded, by language and final status.",
		}, []string{"language", "status"})

		gradeRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_grade_rejections_total",
			Help: "Submissions rejected before any test ran (unsupported language, budget ceiling).",
		}, []string{"language"})

		gradeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judge_grade_duration_seconds",
			Help:    "End-to-end grading duration per submission.",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"language"})

		prometheus.MustRegister(submissionsGraded, gradeRejections, gradeDuration)
	})
}

// SubmissionsGraded exposes the graded submissions counter.
func SubmissionsGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsGraded
}

// GradeRejections exposes the rejected submissions counter.
func GradeRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeRejections
}

// GradeDuration exposes the grading latency histogram.
func GradeDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradeDuration
}
