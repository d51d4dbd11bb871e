package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
)

var (
	// errors
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrCourseNotDraft     = core.NewValidationError(errors.New("only draft courses can be changed this way"))
	ErrCourseNotPublished = core.NewValidationError(errors.New("course is not published"))
	ErrCourseHasNoModules = core.NewValidationError(errors.New("a course needs at least one module to be published"))
	ErrCourseArchived     = core.NewValidationError(errors.New("archived courses cannot be changed"))
	ErrDuplicateModuleID  = errors.New("module ids must be unique")
	ErrDuplicateOrder     = errors.New("module orders must be unique")
	ErrQuizNotFound       = core.NewNotFoundError("quiz")
	ErrQuizModuleTaken    = core.NewConflictError("module already has a quiz")
	ErrQuizIDTaken        = core.NewConflictError("quiz id is used by another course")
	ErrNotAQuizModule     = core.NewValidationError(
		errors.New("module is not a quiz module of this course"),
		core.FieldError{Field: "module_id", Error: "not a quiz module of this course"},
	)
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// GetCourse returns the course along with its modules sorted by Order.
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses does not load modules.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		// UpdateCourse saves the course fields; modules are left untouched.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		ReplaceModules(ctx context.Context, courseID string, modules []Module) error
		DeleteCourse(ctx context.Context, id string) error

		// SaveQuizConfig inserts the config or replaces the one with the same id.
		// Returns ErrQuizModuleTaken if another config already holds the module.
		SaveQuizConfig(ctx context.Context, q QuizConfig) (QuizConfig, error)
		GetQuizConfig(ctx context.Context, id string) (QuizConfig, error)
		ListQuizConfigs(ctx context.Context, courseID string) ([]QuizConfig, error)
	}

	// Reader is the read-only view of the catalog consumed by progress tracking.
	Reader interface {
		GetCourse(ctx context.Context, courseID string) (Course, error)
		GetModulesForCourse(ctx context.Context, courseID string) ([]Module, error)
		GetMandatoryModuleIDs(ctx context.Context, courseID string) ([]string, error)
		IsCoursePublished(ctx context.Context, courseID string) (bool, error)
	}

	Service struct {
		repo Repository
		now  func() time.Time
	}
)

var _ Reader = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: core.Now}
}

func (svc *Service) GetCourse(ctx context.Context, courseID string) (Course, error) {
	return svc.repo.GetCourse(ctx, core.CleanString(courseID))
}

func (svc *Service) GetModulesForCourse(ctx context.Context, courseID string) ([]Module, error) {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return c.Modules, nil
}

func (svc *Service) GetMandatoryModuleIDs(ctx context.Context, courseID string) ([]string, error) {
	modules, err := svc.GetModulesForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return MandatoryModuleIDs(modules), nil
}

func (svc *Service) IsCoursePublished(ctx context.Context, courseID string) (bool, error) {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return false, err
	}
	return c.Status == StatusPublished, nil
}

// Create expects a validated NewCourse. Courses start as drafts.
func (svc *Service) Create(ctx context.Context, instructorID string, nc NewCourse) (Course, error) {
	now := svc.now().UTC()
	c := Course{
		ID:           uuid.New().String(),
		Title:        nc.Title,
		Description:  nc.Description,
		PathSlug:     nc.PathSlug,
		InstructorID: instructorID,
		IsMandatory:  nc.IsMandatory,
		Status:       StatusDraft,
		Modules:      []Module{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c, err := svc.repo.CreateCourse(ctx, c)
	return c, errors.Wrap(err, "creating course")
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "updated_at", Ascending: false}}
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

// Update expects a validated UpdateCourse.
func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if c.Status == StatusArchived {
		return Course{}, ErrCourseNotDraft
	}
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.PathSlug != nil {
		c.PathSlug = *uc.PathSlug
	}
	if uc.IsMandatory != nil {
		c.IsMandatory = *uc.IsMandatory
	}
	c.UpdatedAt = svc.now().UTC()

	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "updating course")
}

// SetModules replaces the outline of a draft course.
// Orders left at 0 follow list position; explicit orders must be unique.
// Published outlines are frozen so recorded progress always refers to existing modules.
func (svc *Service) SetModules(ctx context.Context, courseID string, sm SetModules) (Course, error) {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if c.Status != StatusDraft {
		return Course{}, ErrCourseNotDraft
	}

	modules, err := buildModules(c.ID, sm.Modules)
	if err != nil {
		return Course{}, err
	}
	if err = svc.repo.ReplaceModules(ctx, c.ID, modules); err != nil {
		return Course{}, errors.Wrap(err, "replacing modules")
	}

	c.UpdatedAt = svc.now().UTC()
	if _, err = svc.repo.UpdateCourse(ctx, c); err != nil {
		return Course{}, errors.Wrap(err, "touching course")
	}
	return svc.GetCourse(ctx, c.ID)
}

func buildModules(courseID string, nms []NewModule) ([]Module, error) {
	explicit := false
	for _, nm := range nms {
		if nm.Order > 0 {
			explicit = true
			break
		}
	}

	ids := make(map[string]bool, len(nms))
	orders := make(map[int]bool, len(nms))
	modules := make([]Module, 0, len(nms))
	for i, nm := range nms {
		m := Module{
			ID:        nm.ID,
			CourseID:  courseID,
			Title:     nm.Title,
			Order:     nm.Order,
			Type:      nm.Type,
			Mandatory: nm.Mandatory,
			Duration:  nm.Duration,
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if !explicit {
			m.Order = i + 1
		}

		field := fmt.Sprintf("modules[%d]", i)
		if ids[m.ID] {
			return nil, core.NewValidationError(ErrDuplicateModuleID, core.FieldError{Field: field + ".id", Error: ErrDuplicateModuleID.Error()})
		}
		if m.Order <= 0 || orders[m.Order] {
			return nil, core.NewValidationError(ErrDuplicateOrder, core.FieldError{Field: field + ".order", Error: ErrDuplicateOrder.Error()})
		}
		ids[m.ID] = true
		orders[m.Order] = true
		modules = append(modules, m)
	}
	SortModules(modules)
	return modules, nil
}

func (svc *Service) Publish(ctx context.Context, courseID string) (Course, error) {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	switch c.Status {
	case StatusPublished:
		return c, nil
	case StatusArchived:
		return Course{}, ErrCourseNotDraft
	}
	if len(c.Modules) == 0 {
		return Course{}, ErrCourseHasNoModules
	}

	now := svc.now().UTC()
	c.Status = StatusPublished
	c.PublishedAt = null.TimeFrom(now)
	c.UpdatedAt = now
	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "publishing course")
}

// Archive hides a published course from new enrollments. Learners keep access to their progress.
func (svc *Service) Archive(ctx context.Context, courseID string) (Course, error) {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	switch c.Status {
	case StatusArchived:
		return c, nil
	case StatusDraft:
		return Course{}, ErrCourseNotPublished
	}

	c.Status = StatusArchived
	c.UpdatedAt = svc.now().UTC()
	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "archiving course")
}

// Delete removes a draft course. Anything a learner could have seen is kept.
func (svc *Service) Delete(ctx context.Context, courseID string) error {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if c.Status != StatusDraft {
		return ErrCourseNotDraft
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, c.ID), "deleting course")
}

func findModule(modules []Module, id string) (Module, bool) {
	for _, m := range modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// SaveQuizConfig expects a validated SaveQuizConfig. Quizzes stay editable until the course is archived.
func (svc *Service) SaveQuizConfig(ctx context.Context, courseID string, sq SaveQuizConfig) (QuizConfig, error) {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return QuizConfig{}, err
	}
	if c.Status == StatusArchived {
		return QuizConfig{}, ErrCourseArchived
	}
	m, ok := findModule(c.Modules, sq.ModuleID)
	if !ok || m.Type != ModuleQuiz {
		return QuizConfig{}, ErrNotAQuizModule
	}

	now := svc.now().UTC()
	q := QuizConfig{
		ID:            sq.ID,
		CourseID:      c.ID,
		ModuleID:      m.ID,
		Title:         sq.Title,
		PassingScore:  sq.PassingScore,
		QuestionCount: sq.QuestionCount,
		TimeLimit:     sq.TimeLimit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	existing, err := svc.repo.GetQuizConfig(ctx, q.ID)
	switch {
	case err == nil:
		if existing.CourseID != c.ID {
			return QuizConfig{}, ErrQuizIDTaken
		}
		q.CreatedAt = existing.CreatedAt
	case errors.Cause(err) != ErrQuizNotFound:
		return QuizConfig{}, errors.Wrap(err, "loading quiz config")
	}

	q, err = svc.repo.SaveQuizConfig(ctx, q)
	if err != nil {
		if errors.Cause(err) == ErrQuizModuleTaken {
			return QuizConfig{}, ErrQuizModuleTaken
		}
		return QuizConfig{}, errors.Wrap(err, "saving quiz config")
	}
	return q, nil
}

func (svc *Service) GetQuizConfig(ctx context.Context, id string) (QuizConfig, error) {
	return svc.repo.GetQuizConfig(ctx, core.CleanString(id))
}

// ListQuizConfigs returns the quizzes of the course in module order.
// A quiz whose module left a draft outline is not listed.
func (svc *Service) ListQuizConfigs(ctx context.Context, courseID string) ([]QuizConfig, error) {
	c, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	list, err := svc.repo.ListQuizConfigs(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing quiz configs")
	}

	byModule := make(map[string]QuizConfig, len(list))
	for _, q := range list {
		byModule[q.ModuleID] = q
	}
	quizzes := make([]QuizConfig, 0, len(list))
	for _, m := range c.Modules {
		if q, ok := byModule[m.ID]; ok && m.Type == ModuleQuiz {
			quizzes = append(quizzes, q)
		}
	}
	return quizzes, nil
}

// PublishedQuizConfigs returns the quizzes of every published course, courses sorted by title.
func (svc *Service) PublishedQuizConfigs(ctx context.Context) ([]QuizConfig, error) {
	courses, err := svc.repo.QueryCourses(ctx,
		&QueryFilter{Statuses: []Status{StatusPublished}},
		[]core.DBOrdering{{Field: "title", Ascending: true}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying published courses")
	}
	quizzes := make([]QuizConfig, 0)
	for _, c := range courses {
		list, err := svc.ListQuizConfigs(ctx, c.ID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		quizzes = append(quizzes, list...)
	}
	return quizzes, nil
}
