// Package readiness turns course progress and assignment state into a 0-100 readiness score.
package readiness

import (
	"math"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core/assignment"
)

type Status string

const (
	StatusOnTrack        Status = "on_track"
	StatusNeedsAttention Status = "needs_attention"
	StatusAtRisk         Status = "at_risk"
)

// weights
const (
	completionWeight = 0.5
	pendingWeight    = 0.3
	overdueWeight    = 0.2

	onTrackFrom        = 80
	needsAttentionFrom = 50
)

// Snapshot is derived on demand and never stored.
type Snapshot struct {
	Score               int    `json:"score"`
	Status              Status `json:"status"`
	MandatoryComplete   int    `json:"mandatory_complete"`
	MandatoryTotal      int    `json:"mandatory_total"`
	CourseCompletionPct int    `json:"course_completion_pct"`
}

// CourseInput is one course on the learner's path.
type CourseInput struct {
	CourseID         string
	Mandatory        bool
	DueAt            null.Time
	TotalModules     int
	CompletedModules int
	Completed        bool
}

func (ci CourseInput) completionRate() float64 {
	if ci.TotalModules <= 0 {
		return 0
	}
	return math.Min(100*float64(ci.CompletedModules)/float64(ci.TotalModules), 100)
}

func (ci CourseInput) overdue(now time.Time) bool {
	return ci.Mandatory && !ci.Completed && ci.DueAt.Valid && now.After(ci.DueAt.Time)
}

type Input struct {
	Courses     []CourseInput
	Assignments []assignment.Assignment
	Now         time.Time
}

// StatusFor maps a score to its tier. 80 is on track, 50 needs attention.
func StatusFor(score int) Status {
	switch {
	case score >= onTrackFrom:
		return StatusOnTrack
	case score >= needsAttentionFrom:
		return StatusNeedsAttention
	default:
		return StatusAtRisk
	}
}

// Compute is a pure function of its input: same input, same Snapshot.
// Missing data never fails: no courses gives 0% completion, no assignments 0% pending
// and no mandatory courses 0% overdue.
func Compute(in Input) Snapshot {
	courses := make([]CourseInput, len(in.Courses))
	copy(courses, in.Courses)
	sort.Slice(courses, func(i, j int) bool { return courses[i].CourseID < courses[j].CourseID })

	var (
		snap          Snapshot
		completionSum float64
		overdue       int
	)
	for _, c := range courses {
		completionSum += c.completionRate()
		if c.Mandatory {
			snap.MandatoryTotal++
			if c.Completed {
				snap.MandatoryComplete++
			}
			if c.overdue(in.Now) {
				overdue++
			}
		}
	}

	var completionPct, pendingPct, overduePct float64
	if len(courses) > 0 {
		completionPct = completionSum / float64(len(courses))
	}
	if len(in.Assignments) > 0 {
		var pending int
		for _, a := range in.Assignments {
			if a.IsPending() {
				pending++
			}
		}
		pendingPct = 100 * float64(pending) / float64(len(in.Assignments))
	}
	if snap.MandatoryTotal > 0 {
		overduePct = 100 * float64(overdue) / float64(snap.MandatoryTotal)
	}

	score := completionWeight*completionPct + pendingWeight*(100-pendingPct) + overdueWeight*(100-overduePct)
	snap.Score = clamp(int(math.Round(score)), 0, 100)
	snap.Status = StatusFor(snap.Score)
	snap.CourseCompletionPct = clamp(int(math.Round(completionPct)), 0, 100)
	return snap
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
