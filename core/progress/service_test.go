package progress_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/progress"
	dummydb "github.com/trezcool/tayari/storage/database/dummy"
	"github.com/trezcool/tayari/tests"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Publish(_ context.Context, ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(typ core.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	svc        *progress.Service
	events     *recorder
	learnerID  string
	courseRepo catalog.Repository
}

// microsecondRepo stores records at postgres precision but hands back what fn wrote.
type microsecondRepo struct {
	progress.Repository
}

func (r microsecondRepo) UpdateCourseProgress(
	ctx context.Context,
	learnerID, courseID string,
	fn func(p *progress.CourseProgress) error,
) (progress.CourseProgress, error) {
	var written *progress.CourseProgress
	stored, err := r.Repository.UpdateCourseProgress(ctx, learnerID, courseID, func(p *progress.CourseProgress) error {
		if err := fn(p); err != nil {
			return err
		}
		cp := *p
		written = &cp
		p.CreatedAt = p.CreatedAt.Truncate(time.Microsecond)
		p.UpdatedAt = p.UpdatedAt.Truncate(time.Microsecond)
		p.LastAccessedAt.Time = p.LastAccessedAt.Time.Truncate(time.Microsecond)
		p.CompletedAt.Time = p.CompletedAt.Time.Truncate(time.Microsecond)
		return nil
	})
	if err != nil || written == nil {
		return stored, err
	}
	return *written, nil
}

func setup(t *testing.T, wrap ...func(progress.Repository) progress.Repository) fixture {
	conf := testutil.NewConfig()
	db := testutil.NewDB(t)
	learnerRepo := dummydb.NewLearnerRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	events := new(recorder)

	repo := dummydb.NewProgressRepository(db)
	for _, w := range wrap {
		repo = w(repo)
	}
	svc := progress.NewService(
		repo,
		catalog.NewService(courseRepo),
		learner.NewService(learnerRepo),
		events,
		testutil.NewLogger(conf),
	)
	l := testutil.CreateLearner(t, learnerRepo, "Awe", "awe@test.cd", learner.RoleLearner, "")
	return fixture{svc: svc, events: events, learnerID: l.ID, courseRepo: courseRepo}
}

func (f fixture) course(t *testing.T, status catalog.Status, modules []catalog.Module) catalog.Course {
	return testutil.CreateCourse(t, f.courseRepo, "Onboarding", "inst", status, true, modules)
}

func TestService_MarkModuleComplete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.course(t, catalog.StatusPublished, testutil.Modules(5, 4, 5))

	for _, id := range []string{"m1", "m2", "m3"} {
		p, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, id)
		require.NoError(t, err)
		assert.False(t, p.CourseCompleted, "after %s", id)
	}
	p, err := f.svc.GetCourseProgress(ctx, f.learnerID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, p.CompletedModuleIDs)
	assert.Equal(t, 5, p.TotalModules)
	assert.Equal(t, 60, p.Percent)
	assert.False(t, p.CompletedAt.Valid)

	_, err = f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m4")
	require.NoError(t, err)
	p, err = f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m5")
	require.NoError(t, err)
	assert.True(t, p.CourseCompleted)
	assert.True(t, p.CompletedAt.Valid)
	assert.Equal(t, 100, p.Percent)

	assert.Equal(t, 5, f.events.count(core.EventModuleCompleted))
	assert.Equal(t, 1, f.events.count(core.EventCourseCompleted))
}

func TestService_MarkModuleComplete_idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.course(t, catalog.StatusPublished, testutil.Modules(2))

	first, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m1")
	require.NoError(t, err)
	again, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m1")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, []string{"m1"}, again.CompletedModuleIDs)
	assert.Equal(t, 1, f.events.count(core.EventModuleCompleted))

	// completing the last one finishes the course once, and further calls leave it completed
	_, err = f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m2")
	require.NoError(t, err)
	p, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m2")
	require.NoError(t, err)
	assert.True(t, p.CourseCompleted)
	assert.Equal(t, 1, f.events.count(core.EventCourseCompleted))
}

func TestService_MarkModuleComplete_storedPrecision(t *testing.T) {
	f := setup(t, func(repo progress.Repository) progress.Repository { return microsecondRepo{repo} })
	ctx := context.Background()
	c := f.course(t, catalog.StatusPublished, testutil.Modules(1))

	first, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m1")
	require.NoError(t, err)
	require.True(t, first.CompletedAt.Valid)
	again, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	stored, err := f.svc.GetCourseProgress(ctx, f.learnerID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestService_MarkModuleComplete_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	published := f.course(t, catalog.StatusPublished, testutil.Modules(3))
	draft := f.course(t, catalog.StatusDraft, testutil.Modules(3))

	tests := []struct {
		name      string
		learnerID string
		courseID  string
		moduleID  string
		wantErr   error
	}{
		{name: "locked module", learnerID: f.learnerID, courseID: published.ID, moduleID: "m3", wantErr: progress.ErrModuleLocked},
		{name: "unknown module", learnerID: f.learnerID, courseID: published.ID, moduleID: "lol", wantErr: progress.ErrModuleNotInCourse},
		{name: "draft course", learnerID: f.learnerID, courseID: draft.ID, moduleID: "m1", wantErr: catalog.ErrCourseNotFound},
		{name: "unknown course", learnerID: f.learnerID, courseID: "lol", moduleID: "m1", wantErr: catalog.ErrCourseNotFound},
		{name: "unknown learner", learnerID: "lol", courseID: published.ID, moduleID: "m1", wantErr: learner.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.MarkModuleComplete(ctx, tt.learnerID, tt.courseID, tt.moduleID)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	p, err := f.svc.GetCourseProgress(ctx, f.learnerID, published.ID)
	require.NoError(t, err)
	assert.Empty(t, p.CompletedModuleIDs)
	assert.Zero(t, f.events.count(core.EventModuleCompleted))
}

func TestService_MarkModuleComplete_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.course(t, catalog.StatusPublished, testutil.Modules(1))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := f.svc.GetCourseProgress(ctx, f.learnerID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, p.CompletedModuleIDs)
	assert.True(t, p.CourseCompleted)
	assert.Equal(t, 1, f.events.count(core.EventModuleCompleted))
	assert.Equal(t, 1, f.events.count(core.EventCourseCompleted))
}

// Random completion attempts never shrink the completed set nor complete a module
// whose predecessor is not completed.
func TestService_MarkModuleComplete_invariants(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	modules := testutil.Modules(6, 2, 6)
	c := f.course(t, catalog.StatusPublished, modules)

	rnd := rand.New(rand.NewSource(42))
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := modules[rnd.Intn(len(modules))].ID
		_, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, id)
		if err != nil {
			require.Equal(t, progress.ErrModuleLocked, errors.Cause(err), "attempt %d on %s", i, id)
		}

		p, err := f.svc.GetCourseProgress(ctx, f.learnerID, c.ID)
		require.NoError(t, err)
		for prev := range seen {
			assert.True(t, p.HasCompleted(prev), "%s was lost", prev)
		}
		for idx, m := range modules {
			if !p.HasCompleted(m.ID) {
				continue
			}
			seen[m.ID] = true
			if idx > 0 {
				assert.True(t, p.HasCompleted(modules[idx-1].ID), "%s completed before its predecessor", m.ID)
			}
		}
		assert.Equal(t, p.HasCompletedAll([]string{"m2", "m6"}), p.CourseCompleted)
	}
	assert.Len(t, seen, len(modules))
}

func TestService_ModuleStates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.course(t, catalog.StatusPublished, testutil.Modules(4))

	_, err := f.svc.MarkModuleComplete(ctx, f.learnerID, c.ID, "m1")
	require.NoError(t, err)

	states, err := f.svc.ModuleStates(ctx, f.learnerID, c.ID)
	require.NoError(t, err)
	require.Len(t, states, 4)

	want := []progress.ModuleStatus{progress.StatusCompleted, progress.StatusUnlocked, progress.StatusLocked, progress.StatusLocked}
	for i, st := range states {
		assert.Equal(t, fmt.Sprintf("m%d", i+1), st.ID)
		assert.Equal(t, want[i], st.Status)
		assert.Equal(t, want[i] == progress.StatusLocked, st.Locked)
	}

	ok, err := f.svc.CanAccess(ctx, f.learnerID, c.ID, "m2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.CanAccess(ctx, f.learnerID, c.ID, "m3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_RecordCourseAccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.course(t, catalog.StatusPublished, testutil.Modules(3))
	second := f.course(t, catalog.StatusPublished, testutil.Modules(3))

	_, err := f.svc.MostRecentCourse(ctx, f.learnerID)
	assert.Equal(t, progress.ErrNoRecentCourse, err)

	_, err = f.svc.RecordCourseAccess(ctx, f.learnerID, first.ID, "m2")
	assert.Equal(t, progress.ErrModuleLocked, err)

	p, err := f.svc.RecordCourseAccess(ctx, f.learnerID, first.ID, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", p.LastAccessedModuleID.String)
	assert.Empty(t, p.CompletedModuleIDs)

	time.Sleep(2 * time.Millisecond)
	_, err = f.svc.RecordCourseAccess(ctx, f.learnerID, second.ID, "m1")
	require.NoError(t, err)

	recent, err := f.svc.MostRecentCourse(ctx, f.learnerID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, recent.CourseID)
	assert.Equal(t, 2, f.events.count(core.EventCourseAccessed))
}

func TestService_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	published := f.course(t, catalog.StatusPublished, testutil.Modules(3))
	draft := f.course(t, catalog.StatusDraft, testutil.Modules(3))
	due := fixedNow.Add(48 * time.Hour)

	_, err := f.svc.Enroll(ctx, f.learnerID, progress.NewEnrollment{CourseID: draft.ID})
	assert.Equal(t, catalog.ErrCourseNotPublished, err)

	e, err := f.svc.Enroll(ctx, f.learnerID, progress.NewEnrollment{CourseID: published.ID, DueAt: &due})
	require.NoError(t, err)
	assert.True(t, e.DueAt.Time.Equal(due))

	again, err := f.svc.Enroll(ctx, f.learnerID, progress.NewEnrollment{CourseID: published.ID})
	require.NoError(t, err)
	assert.Equal(t, e, again)

	list, err := f.svc.ListEnrollments(ctx, f.learnerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	records, err := f.svc.ListCourseProgress(ctx, f.learnerID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].TotalModules)
	assert.Equal(t, 1, f.events.count(core.EventCourseEnrolled))
}

// enrollmentOnlyRepo rejects progress writes made outside CreateEnrollment.
type enrollmentOnlyRepo struct {
	progress.Repository
}

func (enrollmentOnlyRepo) UpdateCourseProgress(
	context.Context,
	string, string,
	func(p *progress.CourseProgress) error,
) (progress.CourseProgress, error) {
	return progress.CourseProgress{}, errors.New("progress written outside the enrollment")
}

func TestService_Enroll_singleWrite(t *testing.T) {
	f := setup(t, func(repo progress.Repository) progress.Repository { return enrollmentOnlyRepo{repo} })
	ctx := context.Background()
	c := f.course(t, catalog.StatusPublished, testutil.Modules(4))

	e, err := f.svc.Enroll(ctx, f.learnerID, progress.NewEnrollment{CourseID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, c.ID, e.CourseID)

	p, err := f.svc.GetCourseProgress(ctx, f.learnerID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.TotalModules)
	assert.Equal(t, e.EnrolledAt, p.CreatedAt)
	assert.Empty(t, p.CompletedModuleIDs)
}

func TestService_VideoCheckpoint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	modules := testutil.Modules(2)
	modules[1].Type = catalog.ModuleQuiz
	c := f.course(t, catalog.StatusPublished, modules)

	_, err := f.svc.GetVideoCheckpoint(ctx, f.learnerID, c.ID, "m1")
	assert.Equal(t, progress.ErrCheckpointNotFound, errors.Cause(err))

	_, err = f.svc.SaveVideoCheckpoint(ctx, f.learnerID, c.ID, "m2", progress.SaveCheckpoint{PositionSeconds: 5})
	assert.Equal(t, progress.ErrNotAVideo, err)

	// m1 lasts 10 minutes
	cp, err := f.svc.SaveVideoCheckpoint(ctx, f.learnerID, c.ID, "m1", progress.SaveCheckpoint{PositionSeconds: 9000})
	require.NoError(t, err)
	assert.Equal(t, 600.0, cp.PositionSeconds)

	got, err := f.svc.GetVideoCheckpoint(ctx, f.learnerID, c.ID, "m1")
	require.NoError(t, err)
	assert.Equal(t, cp.PositionSeconds, got.PositionSeconds)
}

func TestService_Summary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	done := f.course(t, catalog.StatusPublished, testutil.Modules(2))
	started := f.course(t, catalog.StatusPublished, testutil.Modules(3))

	for _, id := range []string{"m1", "m2"} {
		_, err := f.svc.MarkModuleComplete(ctx, f.learnerID, done.ID, id)
		require.NoError(t, err)
	}
	_, err := f.svc.MarkModuleComplete(ctx, f.learnerID, started.ID, "m1")
	require.NoError(t, err)

	sum, err := f.svc.Summary(ctx, f.learnerID)
	require.NoError(t, err)
	assert.Equal(t, progress.Summary{
		CompletedCourses:  1,
		InProgressCourses: 1,
		CompletedModules:  3,
		LearningMinutes:   30,
		LearningHours:     0.5,
	}, sum)
}
