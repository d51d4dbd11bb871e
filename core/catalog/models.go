package catalog

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

type ModuleType string

const (
	ModuleVideo      ModuleType = "video"
	ModuleQuiz       ModuleType = "quiz"
	ModuleAssignment ModuleType = "assignment"
	ModuleReading    ModuleType = "reading"
)

// Module belongs to exactly one Course. Whether it is locked for a learner is derived from their progress.
type Module struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"course_id"`
	Title     string     `json:"title"`
	Order     int        `json:"order"`
	Type      ModuleType `json:"type"`
	Mandatory bool       `json:"mandatory"`
	Duration  int        `json:"duration"` // minutes
}

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PathSlug     string    `json:"path_slug"`
	InstructorID string    `json:"instructor_id"`
	IsMandatory  bool      `json:"is_mandatory"`
	Status       Status    `json:"status"`
	Modules      []Module  `json:"modules"` // sorted by Order
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PublishedAt  null.Time `json:"published_at"`
}

// VisibleToLearners is true for published and archived courses.
func (c Course) VisibleToLearners() bool {
	return c.Status == StatusPublished || c.Status == StatusArchived
}

func (c Course) ModuleIDs() []string {
	ids := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		ids = append(ids, m.ID)
	}
	return ids
}

// MandatoryModuleIDs returns the ids of the modules flagged mandatory, in module order.
func MandatoryModuleIDs(modules []Module) []string {
	ids := make([]string, 0, len(modules))
	for _, m := range modules {
		if m.Mandatory {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// SortModules orders modules by Order, then ID.
func SortModules(modules []Module) {
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Order == modules[j].Order {
			return modules[i].ID < modules[j].ID
		}
		return modules[i].Order < modules[j].Order
	})
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=5000"`
	PathSlug    string `json:"path_slug" validate:"omitempty,slug"`
	IsMandatory bool   `json:"is_mandatory"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.PathSlug = core.CleanString(nc.PathSlug, true /* lower */)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       string  `json:"title" validate:"max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	PathSlug    *string `json:"path_slug" validate:"omitempty,slug"`
	IsMandatory *bool   `json:"is_mandatory"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	if uc.Description != nil {
		d := core.CleanString(*uc.Description)
		uc.Description = &d
	}
	if uc.PathSlug != nil {
		s := core.CleanString(*uc.PathSlug, true /* lower */)
		uc.PathSlug = &s
	}
	return validate.Struct(uc)
}

// NewModule describes one module of a course outline. Order may be left empty to follow list position.
type NewModule struct {
	ID        string     `json:"id" validate:"omitempty,ident"`
	Title     string     `json:"title" validate:"required,notblank,max=200"`
	Order     int        `json:"order" validate:"gte=0"`
	Type      ModuleType `json:"type" validate:"required,oneof=video quiz assignment reading"`
	Mandatory bool       `json:"mandatory"`
	Duration  int        `json:"duration" validate:"gte=0"`
}

type SetModules struct {
	Modules []NewModule `json:"modules" validate:"required,min=1,dive"`
}

func (sm *SetModules) Validate(validate *validator.Validate) error {
	for i := range sm.Modules {
		sm.Modules[i].ID = core.CleanString(sm.Modules[i].ID)
		sm.Modules[i].Title = core.CleanString(sm.Modules[i].Title)
	}
	return validate.Struct(sm)
}

type QueryFilter struct {
	Search       string   `query:"search"`
	Statuses     []Status `query:"status"`
	PathSlug     string   `query:"path_slug"`
	InstructorID string   `query:"instructor_id"`
	IsMandatory  *bool    `query:"is_mandatory"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.PathSlug = core.CleanString(qf.PathSlug, true /* lower */)
	qf.InstructorID = core.CleanString(qf.InstructorID)
}
