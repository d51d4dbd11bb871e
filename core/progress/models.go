package progress

import (
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
)

// CourseProgress is the learner x course completion record. It is never deleted.
type CourseProgress struct {
	LearnerID            string      `json:"learner_id"`
	CourseID             string      `json:"course_id"`
	CompletedModuleIDs   []string    `json:"completed_module_ids"` // sorted, no duplicates
	TotalModules         int         `json:"total_modules"`
	Percent              int         `json:"percent"`
	CourseCompleted      bool        `json:"course_completed"`
	LastAccessedModuleID null.String `json:"last_accessed_module_id"`
	LastAccessedAt       null.Time   `json:"last_accessed_at"`
	CompletedAt          null.Time   `json:"completed_at"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

func NewCourseProgress(learnerID, courseID string, now time.Time) CourseProgress {
	return CourseProgress{
		LearnerID:          learnerID,
		CourseID:           courseID,
		CompletedModuleIDs: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (p CourseProgress) HasCompleted(moduleID string) bool {
	i := sort.SearchStrings(p.CompletedModuleIDs, moduleID)
	return i < len(p.CompletedModuleIDs) && p.CompletedModuleIDs[i] == moduleID
}

// HasCompletedAll reports whether every id is in the completed set.
func (p CourseProgress) HasCompletedAll(ids []string) bool {
	for _, id := range ids {
		if !p.HasCompleted(id) {
			return false
		}
	}
	return true
}

// addCompleted inserts moduleID keeping the set sorted. Returns false when already present.
func (p *CourseProgress) addCompleted(moduleID string) bool {
	i := sort.SearchStrings(p.CompletedModuleIDs, moduleID)
	if i < len(p.CompletedModuleIDs) && p.CompletedModuleIDs[i] == moduleID {
		return false
	}
	ids := make([]string, 0, len(p.CompletedModuleIDs)+1)
	ids = append(ids, p.CompletedModuleIDs[:i]...)
	ids = append(ids, moduleID)
	ids = append(ids, p.CompletedModuleIDs[i:]...)
	p.CompletedModuleIDs = ids
	return true
}

// CompletionRate is the share of the course modules completed, in percent.
func (p CourseProgress) CompletionRate() float64 {
	if p.TotalModules <= 0 {
		return 0
	}
	rate := 100 * float64(len(p.CompletedModuleIDs)) / float64(p.TotalModules)
	return math.Min(rate, 100)
}

// Started is true once the learner opened or completed anything in the course.
func (p CourseProgress) Started() bool {
	return len(p.CompletedModuleIDs) > 0 || p.LastAccessedModuleID.Valid
}

// withCourse fills in the fields derived from the current course outline.
func (p CourseProgress) withCourse(modules []catalog.Module) CourseProgress {
	p.TotalModules = len(modules)
	if p.CompletedModuleIDs == nil {
		p.CompletedModuleIDs = []string{}
	}
	p.Percent = int(math.Round(p.CompletionRate()))
	return p
}

type ModuleStatus string

const (
	StatusLocked    ModuleStatus = "locked"
	StatusUnlocked  ModuleStatus = "unlocked"
	StatusCompleted ModuleStatus = "completed"
)

type ModuleState struct {
	catalog.Module
	Status ModuleStatus `json:"status"`
	Locked bool         `json:"locked"`
}

// Enrollment puts a course on a learner's path. DueAt drives the overdue signal of mandatory courses.
type Enrollment struct {
	LearnerID  string    `json:"learner_id"`
	CourseID   string    `json:"course_id"`
	PathSlug   string    `json:"path_slug"`
	DueAt      null.Time `json:"due_at"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type NewEnrollment struct {
	CourseID string     `json:"course_id" validate:"required,ident"`
	DueAt    *time.Time `json:"due_at"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID)
	return validate.Struct(ne)
}

// VideoCheckpoint remembers where a learner stopped watching a video module.
type VideoCheckpoint struct {
	LearnerID       string    `json:"learner_id"`
	CourseID        string    `json:"course_id"`
	ModuleID        string    `json:"module_id"`
	PositionSeconds float64   `json:"position_seconds"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SaveCheckpoint struct {
	PositionSeconds float64 `json:"position_seconds" validate:"gte=0"`
}

func (sc *SaveCheckpoint) Validate(validate *validator.Validate) error {
	if math.IsNaN(sc.PositionSeconds) || math.IsInf(sc.PositionSeconds, 0) {
		return core.NewValidationError(errInvalidPosition, core.FieldError{Field: "position_seconds", Error: errInvalidPosition.Error()})
	}
	return validate.Struct(sc)
}

// Summary aggregates a learner's activity across courses.
type Summary struct {
	CompletedCourses  int     `json:"completed_courses"`
	InProgressCourses int     `json:"in_progress_courses"`
	CompletedModules  int     `json:"completed_modules"`
	LearningMinutes   int     `json:"learning_minutes"`
	LearningHours     float64 `json:"learning_hours"`
}
