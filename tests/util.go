// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"github.com/trezcool/tayari/apps/api/di"
	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	logsvc "github.com/trezcool/tayari/services/logger"
	"github.com/trezcool/tayari/storage/database"
	dummydb "github.com/trezcool/tayari/storage/database/dummy"
)

// DatabaseURLEnv names the postgres DSN used by the sql repository tests. They are skipped without it.
const DatabaseURLEnv = "TAYARI_TEST_DATABASE_URL"

// NewConfig returns a test configuration backed by the memory engine. It ignores the environment.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Tayari",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret-key",
		DefaultFromEmail: mail.Address{Name: "Tayari", Address: "noreply@localhost"},
		FrontendBaseURL:  "http://localhost:3000",
		WorkDir:          core.Getwd(),
		Server: core.ServerConfig{
			Host:               "localhost:0",
			DebugHost:          "localhost:0",
			ReadTimeout:        time.Second,
			WriteTimeout:       time.Second,
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
		Database: core.DatabaseConfig{Engine: core.EngineMemory},
		Readiness: core.ReadinessConfig{
			MaxConflictRetries: 3,
			EventBuffer:        64,
		},
	}
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zap.NewNop().Sugar(), conf)
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, di.NewTranslator())
	return validate
}

func NewDB(t *testing.T) *dummydb.DB {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// OpenDB connects to the test postgres database, migrates it and empties every table.
// The database is shared: tests using it must not run in parallel.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s is not set", DatabaseURLEnv)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sqlx.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err = database.Migrate(ctx, db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	_, err = db.ExecContext(ctx, `TRUNCATE learners, quiz_submissions, courses, course_modules, quiz_configs,
		course_progress, enrollments, video_checkpoints, assignments CASCADE`)
	if err != nil {
		t.Fatalf("truncating tables failed: %v", err)
	}
	return db
}

// NewContainer wires the whole application on the memory engine.
func NewContainer(t *testing.T) *di.Container {
	t.Helper()
	c, err := di.New(context.Background(), NewConfig())
	if err != nil {
		t.Fatalf("di.New() failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func CreateLearner(t *testing.T, repo learner.Repository, name, email, role, managerID string) learner.Learner {
	t.Helper()
	now := core.Now()
	l := learner.Learner{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		ManagerID: null.NewString(managerID, managerID != ""),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l, err := repo.CreateLearner(context.Background(), l)
	if err != nil {
		t.Fatalf("createLearner() failed: %v", err)
	}
	return l
}

// Modules builds n modules m1..mn ordered 1..n. The listed positions (1-based) are mandatory.
func Modules(n int, mandatory ...int) []catalog.Module {
	flagged := make(map[int]bool, len(mandatory))
	for _, pos := range mandatory {
		flagged[pos] = true
	}
	modules := make([]catalog.Module, 0, n)
	for i := 1; i <= n; i++ {
		modules = append(modules, catalog.Module{
			ID:        fmt.Sprintf("m%d", i),
			Title:     fmt.Sprintf("Module %d", i),
			Order:     i,
			Type:      catalog.ModuleVideo,
			Mandatory: flagged[i],
			Duration:  10,
		})
	}
	return modules
}

func CreateCourse(
	t *testing.T,
	repo catalog.Repository,
	title, instructorID string,
	status catalog.Status,
	isMandatory bool,
	modules []catalog.Module,
) catalog.Course {
	t.Helper()
	now := core.Now()
	c := catalog.Course{
		ID:           uuid.New().String(),
		Title:        title,
		InstructorID: instructorID,
		IsMandatory:  isMandatory,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if status != catalog.StatusDraft {
		c.PublishedAt = null.TimeFrom(now)
	}
	c.Modules = make([]catalog.Module, len(modules))
	for i, m := range modules {
		m.CourseID = c.ID
		c.Modules[i] = m
	}
	c, err := repo.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return c
}

// CreateQuiz stores a quiz config straight through the repository, skipping the outline checks.
func CreateQuiz(t *testing.T, repo catalog.Repository, id, courseID, moduleID string, passingScore float64) catalog.QuizConfig {
	t.Helper()
	now := core.Now()
	q, err := repo.SaveQuizConfig(context.Background(), catalog.QuizConfig{
		ID:            id,
		CourseID:      courseID,
		ModuleID:      moduleID,
		Title:         "Quiz " + id,
		PassingScore:  passingScore,
		QuestionCount: 10,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("createQuiz() failed: %v", err)
	}
	return q
}
