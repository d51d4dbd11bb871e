package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/notify"
	emailsvc "github.com/trezcool/tayari/services/email"
	"github.com/trezcool/tayari/services/eventbus"
	dummydb "github.com/trezcool/tayari/storage/database/dummy"
	"github.com/trezcool/tayari/tests"
)

type fixture struct {
	notifier *notify.Notifier
	mailer   *emailsvc.ConsoleServiceMock
	learners learner.Repository
	course   catalog.Course
}

func setup(t *testing.T) fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(logger, conf)

	db := testutil.NewDB(t)
	learners := dummydb.NewLearnerRepository(db)
	courses := dummydb.NewCourseRepository(db)
	mailer := emailsvc.NewConsoleServiceMock(logger, conf)
	course := testutil.CreateCourse(t, courses, "Safety first", "inst", catalog.StatusPublished, true, testutil.Modules(1))

	return fixture{
		notifier: notify.NewNotifier(learner.NewService(learners), catalog.NewService(courses), mailer, logger),
		mailer:   mailer,
		learners: learners,
		course:   course,
	}
}

func TestNotifier_Handle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	active := testutil.CreateLearner(t, f.learners, "Awe", "awe@test.cd", learner.RoleLearner, "")
	gone := testutil.CreateLearner(t, f.learners, "Bob", "bob@test.cd", learner.RoleLearner, "")
	gone.IsActive = false
	_, err := f.learners.UpdateLearner(ctx, gone)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, f.notifier.Handle(ctx, core.NewEvent(core.EventModuleCompleted, active.ID, f.course.ID, "m1", now)))
	require.NoError(t, f.notifier.Handle(ctx, core.NewEvent(core.EventCourseCompleted, gone.ID, f.course.ID, "", now)))
	assert.Empty(t, f.mailer.Sent())

	require.NoError(t, f.notifier.Handle(ctx, core.NewEvent(core.EventCourseCompleted, active.ID, f.course.ID, "", now)))
	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "awe@test.cd", sent[0].To[0].Address)
	assert.Equal(t, "You completed Safety first", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Safety first")
	assert.Contains(t, sent[0].TextContent, "/courses/"+f.course.ID)

	assert.Error(t, f.notifier.Handle(ctx, core.NewEvent(core.EventCourseCompleted, "lol", f.course.ID, "", now)))
}

func TestNotifier_Run(t *testing.T) {
	f := setup(t)
	l := testutil.CreateLearner(t, f.learners, "Awe", "awe@test.cd", learner.RoleLearner, "")

	bus := eventbus.NewBus(testutil.NewLogger(testutil.NewConfig()), 8)
	events, unsubscribe := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		f.notifier.Run(context.Background(), events)
		close(done)
	}()

	require.NoError(t, bus.Publish(context.Background(), core.NewEvent(core.EventCourseCompleted, l.ID, f.course.ID, "", time.Now())))
	assert.Eventually(t, func() bool { return len(f.mailer.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	// the loop ends once the subscription is gone
	unsubscribe()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after unsubscribe")
	}
}
