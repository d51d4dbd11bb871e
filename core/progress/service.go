package progress

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
)

var (
	// errors
	ErrProgressNotFound   = core.NewNotFoundError("course progress")
	ErrCheckpointNotFound = core.NewNotFoundError("video checkpoint")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrNoRecentCourse     = core.NewNotFoundError("recent course")
	ErrAlreadyEnrolled    = errors.New("learner already enrolled in course")
	ErrModuleNotInCourse  = core.NewValidationError(
		errors.New("module does not belong to course"),
		core.FieldError{Field: "module_id", Error: "module does not belong to course"},
	)
	ErrModuleLocked = core.NewValidationError(
		errors.New("module is locked until the previous module is completed"),
		core.FieldError{Field: "module_id", Error: "module is locked"},
	)
	ErrNotAVideo = core.NewValidationError(
		errors.New("checkpoints are only kept for video modules"),
		core.FieldError{Field: "module_id", Error: "not a video module"},
	)

	// ErrUnchanged is returned from an UpdateCourseProgress callback to leave the record as is.
	ErrUnchanged = errors.New("progress unchanged")

	errInvalidPosition = errors.New("position must be a finite number of seconds")
)

type (
	Repository interface {
		GetCourseProgress(ctx context.Context, learnerID, courseID string) (CourseProgress, error)
		ListCourseProgress(ctx context.Context, learnerID string) ([]CourseProgress, error)
		// UpdateCourseProgress is the single-writer primitive for a learner x course record.
		// It loads the record (creating it if missing), runs fn on it and saves the result atomically.
		// Concurrent callers for the same pair are serialized. If fn fails nothing is written;
		// ErrUnchanged skips the write but still returns the current record.
		UpdateCourseProgress(ctx context.Context, learnerID, courseID string, fn func(p *CourseProgress) error) (CourseProgress, error)

		SaveVideoCheckpoint(ctx context.Context, cp VideoCheckpoint) (VideoCheckpoint, error)
		GetVideoCheckpoint(ctx context.Context, learnerID, courseID, moduleID string) (VideoCheckpoint, error)

		// CreateEnrollment stores the enrollment and makes sure the progress record exists with
		// totalModules, in one atomic write. Returns ErrAlreadyEnrolled, writing nothing, if the pair exists.
		CreateEnrollment(ctx context.Context, e Enrollment, totalModules int) (Enrollment, error)
		GetEnrollment(ctx context.Context, learnerID, courseID string) (Enrollment, error)
		ListEnrollments(ctx context.Context, learnerID string) ([]Enrollment, error)
	}

	LearnerFinder interface {
		GetByID(ctx context.Context, id string) (learner.Learner, error)
	}

	// Service is the completion engine: it records completions, enforces unlock gating
	// and derives per-course progress.
	Service struct {
		repo     Repository
		courses  catalog.Reader
		learners LearnerFinder
		events   core.EventPublisher
		logger   core.Logger
		now      func() time.Time
	}
)

func NewService(repo Repository, courses catalog.Reader, learners LearnerFinder, events core.EventPublisher, logger core.Logger) *Service {
	if events == nil {
		events = core.NopPublisher{}
	}
	return &Service{
		repo:     repo,
		courses:  courses,
		learners: learners,
		events:   events,
		logger:   logger,
		now:      core.Now,
	}
}

// visibleCourse loads a course a learner may interact with. Drafts do not exist for learners.
func (svc *Service) visibleCourse(ctx context.Context, courseID string) (catalog.Course, error) {
	c, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Cause(err) == catalog.ErrCourseNotFound {
			return catalog.Course{}, err
		}
		return catalog.Course{}, errors.Wrap(err, "loading course")
	}
	if !c.VisibleToLearners() {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return c, nil
}

func (svc *Service) checkLearner(ctx context.Context, learnerID string) error {
	if _, err := svc.learners.GetByID(ctx, learnerID); err != nil {
		if errors.Cause(err) == learner.ErrNotFound {
			return err
		}
		return errors.Wrap(err, "loading learner")
	}
	return nil
}

func (svc *Service) load(ctx context.Context, learnerID, courseID string) (catalog.Course, error) {
	if err := svc.checkLearner(ctx, learnerID); err != nil {
		return catalog.Course{}, err
	}
	return svc.visibleCourse(ctx, courseID)
}

func (svc *Service) publish(ctx context.Context, ev core.Event) {
	if err := svc.events.Publish(ctx, ev); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s event: %v", ev.Type, err), err)
	}
}

// MarkModuleComplete records the completion of a module. Completing a completed module is a no-op.
// When the completed set covers every required module the course flips to completed, for good.
func (svc *Service) MarkModuleComplete(ctx context.Context, learnerID, courseID, moduleID string) (CourseProgress, error) {
	course, err := svc.load(ctx, learnerID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	module, ok := findModule(course.Modules, moduleID)
	if !ok {
		return CourseProgress{}, ErrModuleNotInCourse
	}
	required := RequiredModuleIDs(course.Modules)

	var moduleDone, courseDone bool
	now := svc.now().UTC()
	p, err := svc.repo.UpdateCourseProgress(ctx, learnerID, course.ID, func(p *CourseProgress) error {
		if p.HasCompleted(module.ID) {
			return ErrUnchanged
		}
		if !CanAccessModule(course.Modules, module, *p) {
			return ErrModuleLocked
		}
		p.addCompleted(module.ID)
		p.TotalModules = len(course.Modules)
		p.UpdatedAt = now
		moduleDone = true

		if !p.CourseCompleted && p.HasCompletedAll(required) {
			p.CourseCompleted = true
			p.CompletedAt = null.TimeFrom(now)
			courseDone = true
		}
		return nil
	})
	if err != nil {
		if errors.Cause(err) == ErrModuleLocked {
			return CourseProgress{}, ErrModuleLocked
		}
		return CourseProgress{}, errors.Wrap(err, "updating course progress")
	}

	if moduleDone {
		ev := core.NewEvent(core.EventModuleCompleted, learnerID, course.ID, module.ID, now)
		ev.Data = map[string]interface{}{"completed_modules": len(p.CompletedModuleIDs)}
		if next, ok := successor(course.Modules, module); ok {
			ev.Data["unlocked_module_id"] = next.ID
		}
		svc.publish(ctx, ev)
	}
	if courseDone {
		ev := core.NewEvent(core.EventCourseCompleted, learnerID, course.ID, "", now)
		ev.Data = map[string]interface{}{"course_title": course.Title}
		svc.publish(ctx, ev)
	}
	return p.withCourse(course.Modules), nil
}

// CanAccess reports whether the learner may open the module right now.
func (svc *Service) CanAccess(ctx context.Context, learnerID, courseID, moduleID string) (bool, error) {
	course, p, err := svc.current(ctx, learnerID, courseID)
	if err != nil {
		return false, err
	}
	module, ok := findModule(course.Modules, moduleID)
	if !ok {
		return false, ErrModuleNotInCourse
	}
	return CanAccessModule(course.Modules, module, p), nil
}

func (svc *Service) current(ctx context.Context, learnerID, courseID string) (catalog.Course, CourseProgress, error) {
	course, err := svc.load(ctx, learnerID, courseID)
	if err != nil {
		return catalog.Course{}, CourseProgress{}, err
	}
	p, err := svc.repo.GetCourseProgress(ctx, learnerID, course.ID)
	if err != nil {
		if errors.Cause(err) != ErrProgressNotFound {
			return catalog.Course{}, CourseProgress{}, errors.Wrap(err, "loading course progress")
		}
		p = NewCourseProgress(learnerID, course.ID, time.Time{})
	}
	return course, p.withCourse(course.Modules), nil
}

// GetCourseProgress returns the learner's progress, a blank one if they never touched the course.
func (svc *Service) GetCourseProgress(ctx context.Context, learnerID, courseID string) (CourseProgress, error) {
	_, p, err := svc.current(ctx, learnerID, courseID)
	return p, err
}

// ModuleStates returns every module of the course with its state for the learner.
func (svc *Service) ModuleStates(ctx context.Context, learnerID, courseID string) ([]ModuleState, error) {
	course, p, err := svc.current(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	return moduleStates(course.Modules, p), nil
}

// RecordCourseAccess remembers the module the learner last opened ("continue learning").
func (svc *Service) RecordCourseAccess(ctx context.Context, learnerID, courseID, moduleID string) (CourseProgress, error) {
	course, err := svc.load(ctx, learnerID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	module, ok := findModule(course.Modules, moduleID)
	if !ok {
		return CourseProgress{}, ErrModuleNotInCourse
	}

	now := svc.now().UTC()
	p, err := svc.repo.UpdateCourseProgress(ctx, learnerID, course.ID, func(p *CourseProgress) error {
		if !CanAccessModule(course.Modules, module, *p) {
			return ErrModuleLocked
		}
		p.LastAccessedModuleID = null.StringFrom(module.ID)
		p.LastAccessedAt = null.TimeFrom(now)
		p.TotalModules = len(course.Modules)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Cause(err) == ErrModuleLocked {
			return CourseProgress{}, ErrModuleLocked
		}
		return CourseProgress{}, errors.Wrap(err, "recording course access")
	}

	svc.publish(ctx, core.NewEvent(core.EventCourseAccessed, learnerID, course.ID, module.ID, now))
	return p.withCourse(course.Modules), nil
}

// SaveVideoCheckpoint expects a validated SaveCheckpoint.
func (svc *Service) SaveVideoCheckpoint(ctx context.Context, learnerID, courseID, moduleID string, sc SaveCheckpoint) (VideoCheckpoint, error) {
	course, err := svc.load(ctx, learnerID, courseID)
	if err != nil {
		return VideoCheckpoint{}, err
	}
	module, ok := findModule(course.Modules, moduleID)
	if !ok {
		return VideoCheckpoint{}, ErrModuleNotInCourse
	}
	if module.Type != catalog.ModuleVideo {
		return VideoCheckpoint{}, ErrNotAVideo
	}
	if limit := float64(module.Duration * 60); module.Duration > 0 && sc.PositionSeconds > limit {
		sc.PositionSeconds = limit
	}

	cp, err := svc.repo.SaveVideoCheckpoint(ctx, VideoCheckpoint{
		LearnerID:       learnerID,
		CourseID:        course.ID,
		ModuleID:        module.ID,
		PositionSeconds: sc.PositionSeconds,
		UpdatedAt:       svc.now().UTC(),
	})
	return cp, errors.Wrap(err, "saving video checkpoint")
}

func (svc *Service) GetVideoCheckpoint(ctx context.Context, learnerID, courseID, moduleID string) (VideoCheckpoint, error) {
	course, err := svc.load(ctx, learnerID, courseID)
	if err != nil {
		return VideoCheckpoint{}, err
	}
	if _, ok := findModule(course.Modules, moduleID); !ok {
		return VideoCheckpoint{}, ErrModuleNotInCourse
	}
	return svc.repo.GetVideoCheckpoint(ctx, learnerID, course.ID, moduleID)
}

// Enroll puts a published course on the learner's path. Enrolling twice returns the first enrollment.
func (svc *Service) Enroll(ctx context.Context, learnerID string, ne NewEnrollment) (Enrollment, error) {
	if err := svc.checkLearner(ctx, learnerID); err != nil {
		return Enrollment{}, err
	}
	published, err := svc.courses.IsCoursePublished(ctx, ne.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !published {
		return Enrollment{}, catalog.ErrCourseNotPublished
	}
	course, err := svc.courses.GetCourse(ctx, ne.CourseID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "loading course")
	}

	now := svc.now().UTC()
	e := Enrollment{
		LearnerID:  learnerID,
		CourseID:   course.ID,
		PathSlug:   course.PathSlug,
		DueAt:      null.TimeFromPtr(ne.DueAt),
		EnrolledAt: now,
	}
	if e.DueAt.Valid {
		e.DueAt.Time = e.DueAt.Time.UTC().Truncate(time.Microsecond)
	}
	// the progress record exists from enrollment on
	e, err = svc.repo.CreateEnrollment(ctx, e, len(course.Modules))
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return svc.repo.GetEnrollment(ctx, learnerID, course.ID)
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	svc.publish(ctx, core.NewEvent(core.EventCourseEnrolled, learnerID, course.ID, "", now))
	return e, nil
}

func (svc *Service) ListEnrollments(ctx context.Context, learnerID string) ([]Enrollment, error) {
	if err := svc.checkLearner(ctx, learnerID); err != nil {
		return nil, err
	}
	return svc.repo.ListEnrollments(ctx, learnerID)
}

// ListCourseProgress returns every progress record of the learner, refreshed against the catalog.
func (svc *Service) ListCourseProgress(ctx context.Context, learnerID string) ([]CourseProgress, error) {
	if err := svc.checkLearner(ctx, learnerID); err != nil {
		return nil, err
	}
	list, err := svc.repo.ListCourseProgress(ctx, learnerID)
	if err != nil {
		return nil, errors.Wrap(err, "listing course progress")
	}
	out := make([]CourseProgress, 0, len(list))
	for _, p := range list {
		modules, err := svc.courses.GetModulesForCourse(ctx, p.CourseID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, errors.Wrap(err, "loading modules")
		}
		out = append(out, p.withCourse(modules))
	}
	return out, nil
}

// Summary counts completed and in-progress courses and the time spent on completed modules.
func (svc *Service) Summary(ctx context.Context, learnerID string) (Summary, error) {
	if err := svc.checkLearner(ctx, learnerID); err != nil {
		return Summary{}, err
	}
	list, err := svc.repo.ListCourseProgress(ctx, learnerID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "listing course progress")
	}

	var sum Summary
	for _, p := range list {
		modules, err := svc.courses.GetModulesForCourse(ctx, p.CourseID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return Summary{}, errors.Wrap(err, "loading modules")
		}
		switch {
		case p.CourseCompleted:
			sum.CompletedCourses++
		case p.Started():
			sum.InProgressCourses++
		}
		for _, m := range modules {
			if p.HasCompleted(m.ID) {
				sum.CompletedModules++
				sum.LearningMinutes += m.Duration
			}
		}
	}
	sum.LearningHours = math.Round(float64(sum.LearningMinutes)/60*10) / 10
	return sum, nil
}

// MostRecentCourse returns the progress of the course the learner touched last.
func (svc *Service) MostRecentCourse(ctx context.Context, learnerID string) (CourseProgress, error) {
	if err := svc.checkLearner(ctx, learnerID); err != nil {
		return CourseProgress{}, err
	}
	list, err := svc.repo.ListCourseProgress(ctx, learnerID)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "listing course progress")
	}

	var (
		recent CourseProgress
		at     time.Time
		found  bool
	)
	for _, p := range list {
		if !p.Started() || p.CourseCompleted {
			continue
		}
		touched := p.UpdatedAt
		if p.LastAccessedAt.Valid && p.LastAccessedAt.Time.After(touched) {
			touched = p.LastAccessedAt.Time
		}
		if !found || touched.After(at) {
			recent, at, found = p, touched, true
		}
	}
	if !found {
		return CourseProgress{}, ErrNoRecentCourse
	}

	modules, err := svc.courses.GetModulesForCourse(ctx, recent.CourseID)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "loading modules")
	}
	return recent.withCourse(modules), nil
}
