package catalog_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	dummydb "github.com/trezcool/tayari/storage/database/dummy"
	"github.com/trezcool/tayari/tests"
)

func setup(t *testing.T) *catalog.Service {
	return catalog.NewService(dummydb.NewCourseRepository(testutil.NewDB(t)))
}

func outline(mods ...catalog.NewModule) catalog.SetModules {
	return catalog.SetModules{Modules: mods}
}

func TestNewCourse_Validate(t *testing.T) {
	validate := testutil.NewValidator()

	nc := catalog.NewCourse{Title: "  Go basics ", PathSlug: "Backend-Track"}
	require.NoError(t, nc.Validate(validate))
	assert.Equal(t, "Go basics", nc.Title)
	assert.Equal(t, "backend-track", nc.PathSlug)

	assert.Error(t, (&catalog.NewCourse{Title: "   "}).Validate(validate))
	assert.Error(t, (&catalog.NewCourse{Title: "Go", PathSlug: "not a slug"}).Validate(validate))

	sm := outline(catalog.NewModule{Title: "Intro", Type: "podcast"})
	assert.Error(t, sm.Validate(validate))
	assert.Error(t, (&catalog.SetModules{}).Validate(validate))
}

func TestService_lifecycle(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "inst", catalog.NewCourse{Title: "Go", IsMandatory: true})
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusDraft, c.Status)
	assert.Empty(t, c.Modules)

	_, err = svc.Publish(ctx, c.ID)
	assert.Equal(t, catalog.ErrCourseHasNoModules, err)
	_, err = svc.Archive(ctx, c.ID)
	assert.Equal(t, catalog.ErrCourseNotPublished, err)

	c, err = svc.SetModules(ctx, c.ID, outline(
		catalog.NewModule{ID: "intro", Title: "Intro", Type: catalog.ModuleVideo},
		catalog.NewModule{ID: "quiz", Title: "Quiz", Type: catalog.ModuleQuiz, Mandatory: true},
	))
	require.NoError(t, err)
	require.Len(t, c.Modules, 2)
	assert.Equal(t, 1, c.Modules[0].Order)
	assert.Equal(t, 2, c.Modules[1].Order)

	published, err := svc.IsCoursePublished(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, published)

	c, err = svc.Publish(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPublished, c.Status)
	assert.True(t, c.PublishedAt.Valid)

	again, err := svc.Publish(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.PublishedAt, again.PublishedAt)

	published, err = svc.IsCoursePublished(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, published)

	ids, err := svc.GetMandatoryModuleIDs(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"quiz"}, ids)

	// published outlines are frozen and published courses are kept
	_, err = svc.SetModules(ctx, c.ID, outline(catalog.NewModule{Title: "New", Type: catalog.ModuleReading}))
	assert.Equal(t, catalog.ErrCourseNotDraft, err)
	assert.Equal(t, catalog.ErrCourseNotDraft, svc.Delete(ctx, c.ID))

	title := "Go 101"
	c, err = svc.Update(ctx, c.ID, catalog.UpdateCourse{Title: title})
	require.NoError(t, err)
	assert.Equal(t, title, c.Title)

	c, err = svc.Archive(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusArchived, c.Status)
	assert.True(t, c.VisibleToLearners())

	_, err = svc.Update(ctx, c.ID, catalog.UpdateCourse{Title: "Nope"})
	assert.Equal(t, catalog.ErrCourseNotDraft, err)
	_, err = svc.Publish(ctx, c.ID)
	assert.Equal(t, catalog.ErrCourseNotDraft, err)
}

func TestService_SetModules(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "inst", catalog.NewCourse{Title: "Go"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		modules   []catalog.NewModule
		wantErr   error
		wantOrder []string
	}{
		{
			name: "explicit orders sort the outline",
			modules: []catalog.NewModule{
				{ID: "c", Title: "C", Order: 30, Type: catalog.ModuleReading},
				{ID: "a", Title: "A", Order: 10, Type: catalog.ModuleVideo},
				{ID: "b", Title: "B", Order: 20, Type: catalog.ModuleQuiz},
			},
			wantOrder: []string{"a", "b", "c"},
		},
		{
			name: "duplicate ids",
			modules: []catalog.NewModule{
				{ID: "a", Title: "A", Type: catalog.ModuleVideo},
				{ID: "a", Title: "B", Type: catalog.ModuleVideo},
			},
			wantErr: catalog.ErrDuplicateModuleID,
		},
		{
			name: "duplicate orders",
			modules: []catalog.NewModule{
				{ID: "a", Title: "A", Order: 1, Type: catalog.ModuleVideo},
				{ID: "b", Title: "B", Order: 1, Type: catalog.ModuleVideo},
			},
			wantErr: catalog.ErrDuplicateOrder,
		},
		{
			name: "missing order among explicit ones",
			modules: []catalog.NewModule{
				{ID: "a", Title: "A", Order: 1, Type: catalog.ModuleVideo},
				{ID: "b", Title: "B", Type: catalog.ModuleVideo},
			},
			wantErr: catalog.ErrDuplicateOrder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SetModules(ctx, c.ID, outline(tt.modules...))
			if tt.wantErr != nil {
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantErr, verr.Err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, got.ModuleIDs())
		})
	}

	// failed replacements keep the previous outline
	got, err := svc.GetModulesForCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestService_Query(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "ann", catalog.NewCourse{Title: "Go basics", PathSlug: "backend"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", catalog.NewCourse{Title: "SQL", PathSlug: "backend", IsMandatory: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", catalog.NewCourse{Title: "CSS", PathSlug: "frontend"})
	require.NoError(t, err)

	mandatory := true
	tests := []struct {
		name   string
		filter *catalog.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{"CSS", "Go basics", "SQL"}},
		{name: "search", filter: &catalog.QueryFilter{Search: "go"}, want: []string{"Go basics"}},
		{name: "path", filter: &catalog.QueryFilter{PathSlug: "backend"}, want: []string{"Go basics", "SQL"}},
		{name: "instructor", filter: &catalog.QueryFilter{InstructorID: "bob"}, want: []string{"CSS", "SQL"}},
		{name: "mandatory", filter: &catalog.QueryFilter{IsMandatory: &mandatory}, want: []string{"SQL"}},
		{name: "published", filter: &catalog.QueryFilter{Statuses: []catalog.Status{catalog.StatusPublished}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := svc.Query(ctx, tt.filter, []core.DBOrdering{{Field: "title", Ascending: true}})
			require.NoError(t, err)
			titles := make([]string, 0, len(courses))
			for _, c := range courses {
				titles = append(titles, c.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestService_Delete(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "inst", catalog.NewCourse{Title: "Go"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, c.ID))

	_, err = svc.GetCourse(ctx, c.ID)
	assert.Equal(t, catalog.ErrCourseNotFound, err)
	assert.Equal(t, catalog.ErrCourseNotFound, svc.Delete(ctx, c.ID))
}

func TestSaveQuizConfig_Validate(t *testing.T) {
	validate := testutil.NewValidator()

	sq := catalog.SaveQuizConfig{ID: " final ", ModuleID: "quiz", Title: " Final ", PassingScore: 70, QuestionCount: 10}
	require.NoError(t, sq.Validate(validate))
	assert.Equal(t, "final", sq.ID)
	assert.Equal(t, "Final", sq.Title)

	assert.Error(t, (&catalog.SaveQuizConfig{ID: "q", ModuleID: "quiz", Title: "Q", PassingScore: 101, QuestionCount: 1}).Validate(validate))
	assert.Error(t, (&catalog.SaveQuizConfig{ID: "q", ModuleID: "quiz", Title: "Q", QuestionCount: 0}).Validate(validate))
	assert.Error(t, (&catalog.SaveQuizConfig{ID: "q", ModuleID: "quiz", Title: "  ", QuestionCount: 1}).Validate(validate))
}

func TestQuizConfig_Passed(t *testing.T) {
	q := catalog.QuizConfig{PassingScore: 70}
	assert.True(t, q.Passed(70))
	assert.True(t, q.Passed(100))
	assert.False(t, q.Passed(69.99))
}

func TestService_QuizConfigs(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "inst", catalog.NewCourse{Title: "Go"})
	require.NoError(t, err)
	c, err = svc.SetModules(ctx, c.ID, outline(
		catalog.NewModule{ID: "intro", Title: "Intro", Type: catalog.ModuleVideo},
		catalog.NewModule{ID: "check", Title: "Check", Type: catalog.ModuleQuiz},
		catalog.NewModule{ID: "final", Title: "Final", Type: catalog.ModuleQuiz},
	))
	require.NoError(t, err)
	other, err := svc.Create(ctx, "inst", catalog.NewCourse{Title: "SQL"})
	require.NoError(t, err)
	_, err = svc.SetModules(ctx, other.ID, outline(catalog.NewModule{ID: "final", Title: "Final", Type: catalog.ModuleQuiz}))
	require.NoError(t, err)

	save := func(courseID, id, moduleID string) (catalog.QuizConfig, error) {
		return svc.SaveQuizConfig(ctx, courseID, catalog.SaveQuizConfig{
			ID: id, ModuleID: moduleID, Title: "Quiz " + id, PassingScore: 70, QuestionCount: 10,
		})
	}

	_, err = save("lol", "q1", "check")
	assert.Equal(t, catalog.ErrCourseNotFound, err)
	_, err = save(c.ID, "q1", "intro")
	assert.Equal(t, catalog.ErrNotAQuizModule, err)
	_, err = save(c.ID, "q1", "nope")
	assert.Equal(t, catalog.ErrNotAQuizModule, err)

	final, err := save(c.ID, "q2", "final")
	require.NoError(t, err)
	assert.Equal(t, c.ID, final.CourseID)
	assert.Equal(t, "final", final.ModuleID)
	check, err := save(c.ID, "q1", "check")
	require.NoError(t, err)

	_, err = save(c.ID, "q3", "check")
	assert.Equal(t, catalog.ErrQuizModuleTaken, err)
	_, err = save(other.ID, "q1", "final")
	assert.Equal(t, catalog.ErrQuizIDTaken, err)

	t.Run("replacing keeps the creation time", func(t *testing.T) {
		got, err := svc.SaveQuizConfig(ctx, c.ID, catalog.SaveQuizConfig{
			ID: "q1", ModuleID: "check", Title: "Checkpoint", PassingScore: 50, QuestionCount: 5,
		})
		require.NoError(t, err)
		assert.Equal(t, check.CreatedAt, got.CreatedAt)
		assert.Equal(t, "Checkpoint", got.Title)

		stored, err := svc.GetQuizConfig(ctx, "q1")
		require.NoError(t, err)
		assert.Equal(t, got, stored)
	})

	t.Run("listed in module order", func(t *testing.T) {
		list, err := svc.ListQuizConfigs(ctx, c.ID)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, q := range list {
			ids = append(ids, q.ID)
		}
		assert.Equal(t, []string{"q1", "q2"}, ids)
	})

	t.Run("only published courses expose quizzes", func(t *testing.T) {
		list, err := svc.PublishedQuizConfigs(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = svc.Publish(ctx, c.ID)
		require.NoError(t, err)
		list, err = svc.PublishedQuizConfigs(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("archived courses are frozen", func(t *testing.T) {
		_, err := svc.Archive(ctx, c.ID)
		require.NoError(t, err)
		_, err = save(c.ID, "q2", "final")
		assert.Equal(t, catalog.ErrCourseArchived, err)
	})

	_, err = svc.GetQuizConfig(ctx, "lol")
	assert.Equal(t, catalog.ErrQuizNotFound, err)
}
