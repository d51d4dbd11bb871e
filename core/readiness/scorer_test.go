package readiness_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core/assignment"
	"github.com/trezcool/tayari/core/readiness"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func pending(due ...time.Time) assignment.Assignment {
	a := assignment.Assignment{Status: assignment.StatusPending}
	if len(due) > 0 {
		a.DueAt = null.TimeFrom(due[0])
	}
	return a
}

func submitted() assignment.Assignment {
	return assignment.Assignment{Status: assignment.StatusSubmitted}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		score int
		want  readiness.Status
	}{
		{100, readiness.StatusOnTrack},
		{80, readiness.StatusOnTrack},
		{79, readiness.StatusNeedsAttention},
		{50, readiness.StatusNeedsAttention},
		{49, readiness.StatusAtRisk},
		{0, readiness.StatusAtRisk},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, readiness.StatusFor(tt.score), "score %d", tt.score)
	}
}

func TestCompute(t *testing.T) {
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		in   readiness.Input
		want readiness.Snapshot
	}{
		{
			name: "no data",
			in:   readiness.Input{Now: now},
			want: readiness.Snapshot{Score: 50, Status: readiness.StatusNeedsAttention},
		},
		{
			name: "everything done",
			in: readiness.Input{
				Courses: []readiness.CourseInput{
					{CourseID: "a", Mandatory: true, TotalModules: 4, CompletedModules: 4, Completed: true},
				},
				Assignments: []assignment.Assignment{submitted()},
				Now:         now,
			},
			want: readiness.Snapshot{
				Score: 100, Status: readiness.StatusOnTrack,
				MandatoryComplete: 1, MandatoryTotal: 1, CourseCompletionPct: 100,
			},
		},
		{
			// 0.5*50 + 0.3*(100-50) + 0.2*(100-50) = 25 + 15 + 10
			name: "half of everything",
			in: readiness.Input{
				Courses: []readiness.CourseInput{
					{CourseID: "a", Mandatory: true, TotalModules: 2, CompletedModules: 1, DueAt: null.TimeFrom(yesterday)},
					{CourseID: "b", Mandatory: true, TotalModules: 2, CompletedModules: 1, DueAt: null.TimeFrom(tomorrow)},
				},
				Assignments: []assignment.Assignment{pending(), submitted()},
				Now:         now,
			},
			want: readiness.Snapshot{
				Score: 50, Status: readiness.StatusNeedsAttention,
				MandatoryTotal: 2, CourseCompletionPct: 50,
			},
		},
		{
			// 0.5*(100/3) + 0.3*0 + 0.2*0 = 16.67
			name: "at risk",
			in: readiness.Input{
				Courses: []readiness.CourseInput{
					{CourseID: "a", Mandatory: true, TotalModules: 3, CompletedModules: 1, DueAt: null.TimeFrom(yesterday)},
				},
				Assignments: []assignment.Assignment{pending(yesterday), pending()},
				Now:         now,
			},
			want: readiness.Snapshot{
				Score: 17, Status: readiness.StatusAtRisk,
				MandatoryTotal: 1, CourseCompletionPct: 33,
			},
		},
		{
			// optional courses never count as overdue: 0.5*0 + 0.3*100 + 0.2*100
			name: "optional course past due",
			in: readiness.Input{
				Courses: []readiness.CourseInput{
					{CourseID: "a", TotalModules: 2, DueAt: null.TimeFrom(yesterday)},
				},
				Now: now,
			},
			want: readiness.Snapshot{Score: 50, Status: readiness.StatusNeedsAttention},
		},
		{
			// a completed mandatory course is not overdue, whatever its due date
			name: "completed late",
			in: readiness.Input{
				Courses: []readiness.CourseInput{
					{CourseID: "a", Mandatory: true, TotalModules: 2, CompletedModules: 2, Completed: true, DueAt: null.TimeFrom(yesterday)},
				},
				Now: now,
			},
			want: readiness.Snapshot{
				Score: 100, Status: readiness.StatusOnTrack,
				MandatoryComplete: 1, MandatoryTotal: 1, CourseCompletionPct: 100,
			},
		},
		{
			// 0.5*80 + 0.3*100 + 0.2*50 = 80
			name: "on track boundary",
			in: readiness.Input{
				Courses: []readiness.CourseInput{
					{CourseID: "a", Mandatory: true, TotalModules: 5, CompletedModules: 3, DueAt: null.TimeFrom(yesterday)},
					{CourseID: "b", Mandatory: true, TotalModules: 5, CompletedModules: 5, Completed: true},
				},
				Now: now,
			},
			want: readiness.Snapshot{
				Score: 80, Status: readiness.StatusOnTrack,
				MandatoryComplete: 1, MandatoryTotal: 2, CourseCompletionPct: 80,
			},
		},
		{
			name: "module counts beyond the outline are capped",
			in: readiness.Input{
				Courses: []readiness.CourseInput{{CourseID: "a", TotalModules: 2, CompletedModules: 5}},
				Now:     now,
			},
			want: readiness.Snapshot{Score: 100, Status: readiness.StatusOnTrack, CourseCompletionPct: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readiness.Compute(tt.in)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Score, 0)
			assert.LessOrEqual(t, got.Score, 100)
		})
	}
}

func TestCompute_pure(t *testing.T) {
	in := readiness.Input{
		Courses: []readiness.CourseInput{
			{CourseID: "b", Mandatory: true, TotalModules: 3, CompletedModules: 2},
			{CourseID: "a", TotalModules: 4, CompletedModules: 1},
		},
		Assignments: []assignment.Assignment{pending(), submitted(), pending()},
		Now:         now,
	}
	first := readiness.Compute(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, readiness.Compute(in))
	}

	// input order does not matter and the input is left untouched
	swapped := in
	swapped.Courses = []readiness.CourseInput{in.Courses[1], in.Courses[0]}
	assert.Equal(t, first, readiness.Compute(swapped))
	assert.Equal(t, "b", in.Courses[0].CourseID)
}
