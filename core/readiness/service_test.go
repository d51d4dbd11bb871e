package readiness_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tayari/core/assignment"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/progress"
	"github.com/trezcool/tayari/core/readiness"
	"github.com/trezcool/tayari/tests"
)

func TestService_ComputeForLearner(t *testing.T) {
	c := testutil.NewContainer(t)
	ctx := context.Background()
	l := testutil.CreateLearner(t, c.Repos.Learner, "Awe", "awe@test.cd", learner.RoleLearner, "")

	_, err := c.ReadinessSvc.ComputeForLearner(ctx, "lol")
	assert.Equal(t, learner.ErrNotFound, err)

	snap, err := c.ReadinessSvc.ComputeForLearner(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, snap.Score)

	mandatory := testutil.CreateCourse(t, c.Repos.Course, "Safety", "inst", catalog.StatusPublished, true, testutil.Modules(4))
	optional := testutil.CreateCourse(t, c.Repos.Course, "Go", "inst", catalog.StatusPublished, false, testutil.Modules(2))
	draft := testutil.CreateCourse(t, c.Repos.Course, "Soon", "inst", catalog.StatusDraft, true, testutil.Modules(2))

	past := time.Now().Add(-time.Hour)
	_, err = c.ProgressSvc.Enroll(ctx, l.ID, progress.NewEnrollment{CourseID: mandatory.ID, DueAt: &past})
	require.NoError(t, err)
	for _, id := range []string{"m1", "m2"} {
		_, err = c.ProgressSvc.MarkModuleComplete(ctx, l.ID, mandatory.ID, id)
		require.NoError(t, err)
	}
	for _, id := range []string{"m1", "m2"} {
		_, err = c.ProgressSvc.MarkModuleComplete(ctx, l.ID, optional.ID, id)
		require.NoError(t, err)
	}
	_, err = c.ProgressSvc.MarkModuleComplete(ctx, l.ID, draft.ID, "m1")
	require.Error(t, err)

	a, err := c.AssignmentSvc.Assign(ctx, assignment.NewAssignment{LearnerID: l.ID, Title: "Essay"})
	require.NoError(t, err)
	_, err = c.AssignmentSvc.Assign(ctx, assignment.NewAssignment{LearnerID: l.ID, Title: "Quiz prep"})
	require.NoError(t, err)

	// completion (50+100)/2=75, pending 2/2, overdue 1/1: 37.5 + 0 + 0
	snap, err = c.ReadinessSvc.ComputeForLearner(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, readiness.Snapshot{
		Score: 38, Status: readiness.StatusAtRisk,
		MandatoryTotal: 1, CourseCompletionPct: 75,
	}, snap)

	// finishing the mandatory course clears the overdue signal: 50 + 15 + 20
	for _, id := range []string{"m3", "m4"} {
		_, err = c.ProgressSvc.MarkModuleComplete(ctx, l.ID, mandatory.ID, id)
		require.NoError(t, err)
	}
	_, err = c.AssignmentSvc.Submit(ctx, l.ID, a.ID)
	require.NoError(t, err)

	snap, err = c.ReadinessSvc.ComputeForLearner(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 85, snap.Score)
	assert.Equal(t, readiness.StatusOnTrack, snap.Status)
	assert.Equal(t, 1, snap.MandatoryComplete)
}

func TestService_TeamReport(t *testing.T) {
	c := testutil.NewContainer(t)
	ctx := context.Background()

	mgr := testutil.CreateLearner(t, c.Repos.Learner, "Boss", "boss@test.cd", learner.RoleManager, "")
	ready := testutil.CreateLearner(t, c.Repos.Learner, "Ada", "ada@test.cd", learner.RoleLearner, mgr.ID)
	late := testutil.CreateLearner(t, c.Repos.Learner, "Bob", "bob@test.cd", learner.RoleLearner, mgr.ID)
	gone := testutil.CreateLearner(t, c.Repos.Learner, "Cid", "cid@test.cd", learner.RoleLearner, mgr.ID)
	testutil.CreateLearner(t, c.Repos.Learner, "Dee", "dee@test.cd", learner.RoleLearner, "")

	inactive := false
	_, err := c.LearnerSvc.Update(ctx, gone.ID, learner.UpdateLearner{IsActive: &inactive})
	require.NoError(t, err)

	course := testutil.CreateCourse(t, c.Repos.Course, "Safety", "inst", catalog.StatusPublished, true, testutil.Modules(1))
	_, err = c.ProgressSvc.MarkModuleComplete(ctx, ready.ID, course.ID, "m1")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = c.ProgressSvc.Enroll(ctx, late.ID, progress.NewEnrollment{CourseID: course.ID, DueAt: &past})
	require.NoError(t, err)
	_, err = c.AssignmentSvc.Assign(ctx, assignment.NewAssignment{LearnerID: late.ID, Title: "Essay", DueAt: &past})
	require.NoError(t, err)

	_, err = c.ReadinessSvc.TeamReport(ctx, "lol")
	assert.Equal(t, learner.ErrNotFound, err)

	report, err := c.ReadinessSvc.TeamReport(ctx, mgr.ID)
	require.NoError(t, err)
	require.Len(t, report.Members, 2)

	// members come sorted by name
	assert.Equal(t, ready.ID, report.Members[0].LearnerID)
	assert.Equal(t, 100, report.Members[0].Readiness.Score)
	assert.Equal(t, late.ID, report.Members[1].LearnerID)
	assert.Equal(t, 0, report.Members[1].Readiness.Score)
	assert.Equal(t, readiness.StatusAtRisk, report.Members[1].Readiness.Status)
	assert.Equal(t, 1, report.Members[1].OverdueAssignments)

	assert.Equal(t, 50, report.AverageScore)
	assert.Equal(t, 50, report.AverageCompletionPct)
	assert.Equal(t, 1, report.OverdueAssignments)
	assert.Equal(t, 1, report.AtRisk)

	empty, err := c.ReadinessSvc.TeamReport(ctx, ready.ID)
	require.NoError(t, err)
	assert.Empty(t, empty.Members)
	assert.Zero(t, empty.AverageScore)
}
