package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/assignment"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/progress"
	"github.com/trezcool/tayari/core/quizscore"
	sqlxrepos "github.com/trezcool/tayari/storage/database/sqlx"
	"github.com/trezcool/tayari/tests"
)

var ctxBg = context.Background()

// fixture runs against the postgres database named by testutil.DatabaseURLEnv.
type fixture struct {
	db          *sqlx.DB
	conf        *core.Config
	learners    learner.Repository
	courses     catalog.Repository
	progress    progress.Repository
	quizScores  quizscore.Repository
	assignments assignment.Repository
}

func setup(t *testing.T) fixture {
	db := testutil.OpenDB(t)
	return fixture{
		db:          db,
		conf:        testutil.NewConfig(),
		learners:    sqlxrepos.NewLearnerRepository(db),
		courses:     sqlxrepos.NewCourseRepository(db),
		progress:    sqlxrepos.NewProgressRepository(db),
		quizScores:  sqlxrepos.NewQuizScoreRepository(db),
		assignments: sqlxrepos.NewAssignmentRepository(db),
	}
}

func (f fixture) learner(t *testing.T, email string) learner.Learner {
	return testutil.CreateLearner(t, f.learners, "Awe", email, learner.RoleLearner, "")
}

func (f fixture) course(t *testing.T, status catalog.Status, modules []catalog.Module) catalog.Course {
	return testutil.CreateCourse(t, f.courses, "Go", "inst", status, false, modules)
}

func (f fixture) progressSvc() *progress.Service {
	return progress.NewService(
		f.progress,
		catalog.NewService(f.courses),
		learner.NewService(f.learners),
		nil,
		testutil.NewLogger(f.conf),
	)
}
