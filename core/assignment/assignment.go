package assignment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
)

var ErrNotFound = core.NewNotFoundError("assignment")

// Assignment is work handed to a learner. Pending ones weigh on the readiness score.
type Assignment struct {
	ID          string    `json:"id"`
	LearnerID   string    `json:"learner_id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Status      Status    `json:"status"`
	DueAt       null.Time `json:"due_at"`
	SubmittedAt null.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a Assignment) IsPending() bool {
	return a.Status == StatusPending
}

func (a Assignment) IsOverdue(now time.Time) bool {
	return a.IsPending() && a.DueAt.Valid && now.After(a.DueAt.Time)
}

const (
	AssessmentQuiz       = "quiz"
	AssessmentAssignment = "assignment"
)

// Assessment is one entry of a learner's to-do list: a quiz of a published course or
// one of their pending assignments.
type Assessment struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	CourseID string    `json:"course_id,omitempty"`
	DueAt    null.Time `json:"due_at"`
}

type NewAssignment struct {
	LearnerID string     `json:"learner_id" validate:"required,ident"`
	CourseID  string     `json:"course_id" validate:"omitempty,ident"`
	Title     string     `json:"title" validate:"required,notblank,max=200"`
	DueAt     *time.Time `json:"due_at"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.LearnerID = core.CleanString(na.LearnerID)
	na.CourseID = core.CleanString(na.CourseID)
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// ListAssignments returns the learner's assignments, oldest first.
		ListAssignments(ctx context.Context, learnerID string) ([]Assignment, error)
		// SubmitAssignment flips a pending assignment of the learner to submitted at the given time,
		// in one conditional write. An already submitted one is returned unchanged.
		// Returns ErrNotFound when the assignment does not exist or is someone else's.
		SubmitAssignment(ctx context.Context, id, learnerID string, at time.Time) (Assignment, error)
	}

	LearnerFinder interface {
		GetByID(ctx context.Context, id string) (learner.Learner, error)
	}

	// CourseFinder is the catalog view needed to assign work and list quizzes.
	CourseFinder interface {
		catalog.Reader
		PublishedQuizConfigs(ctx context.Context) ([]catalog.QuizConfig, error)
	}

	Service struct {
		repo     Repository
		learners LearnerFinder
		courses  CourseFinder
		now      func() time.Time
	}
)

func NewService(repo Repository, learners LearnerFinder, courses CourseFinder) *Service {
	return &Service{repo: repo, learners: learners, courses: courses, now: core.Now}
}

// Assign expects a validated NewAssignment.
func (svc *Service) Assign(ctx context.Context, na NewAssignment) (Assignment, error) {
	if _, err := svc.learners.GetByID(ctx, na.LearnerID); err != nil {
		return Assignment{}, err
	}
	if na.CourseID != "" {
		if _, err := svc.courses.GetCourse(ctx, na.CourseID); err != nil {
			return Assignment{}, err
		}
	}

	a := Assignment{
		ID:        uuid.New().String(),
		LearnerID: na.LearnerID,
		CourseID:  na.CourseID,
		Title:     na.Title,
		Status:    StatusPending,
		DueAt:     null.TimeFromPtr(na.DueAt),
		CreatedAt: svc.now().UTC(),
	}
	if a.DueAt.Valid {
		a.DueAt.Time = a.DueAt.Time.UTC().Truncate(time.Microsecond)
	}
	a, err := svc.repo.CreateAssignment(ctx, a)
	return a, errors.Wrap(err, "creating assignment")
}

// Submit marks the learner's assignment as submitted. Submitting twice keeps the first submission time.
func (svc *Service) Submit(ctx context.Context, learnerID, id string) (Assignment, error) {
	a, err := svc.repo.SubmitAssignment(ctx, id, learnerID, svc.now().UTC())
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, errors.Wrap(err, "submitting assignment")
	}
	return a, nil
}

func (svc *Service) ListForLearner(ctx context.Context, learnerID string) ([]Assignment, error) {
	return svc.repo.ListAssignments(ctx, learnerID)
}

// AvailableAssessments lists the quizzes of published courses, then the learner's pending assignments.
func (svc *Service) AvailableAssessments(ctx context.Context, learnerID string) ([]Assessment, error) {
	quizzes, err := svc.courses.PublishedQuizConfigs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing quizzes")
	}
	assignments, err := svc.repo.ListAssignments(ctx, learnerID)
	if err != nil {
		return nil, errors.Wrap(err, "listing assignments")
	}

	out := make([]Assessment, 0, len(quizzes)+len(assignments))
	for _, q := range quizzes {
		out = append(out, Assessment{ID: q.ID, Title: q.Title, Type: AssessmentQuiz, CourseID: q.CourseID})
	}
	for _, a := range assignments {
		if !a.IsPending() {
			continue
		}
		out = append(out, Assessment{ID: a.ID, Title: a.Title, Type: AssessmentAssignment, CourseID: a.CourseID, DueAt: a.DueAt})
	}
	return out, nil
}
