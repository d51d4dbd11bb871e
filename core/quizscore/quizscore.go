// Package quizscore keeps the rolling average of a learner's quiz scores.
package quizscore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
)

const (
	minScore = 0
	maxScore = 100

	defaultMaxRetries = 3
)

var (
	// errors
	ErrInvalidScore = core.NewValidationError(
		errors.New("score must be a finite number between 0 and 100"),
		core.FieldError{Field: "score", Error: "score must be a finite number between 0 and 100"},
	)
	ErrMissingSubmissionID = core.NewValidationError(
		errors.New("submission id is required"),
		core.FieldError{Field: "submission_id", Error: "this field is required"},
	)
	ErrUnknownQuiz = core.NewValidationError(
		errors.New("unknown quiz"),
		core.FieldError{Field: "quiz_id", Error: "unknown quiz"},
	)
	ErrDuplicateSubmission = core.NewConflictError("quiz submission already recorded")
	ErrConcurrency         = core.NewConflictError("too many concurrent quiz submissions, try again")
)

// RollingAverage lives on the learner record: readiness_score, readiness_score_quiz_count
// and readiness_score_updated_at. Version guards the optimistic update.
type RollingAverage struct {
	LearnerID string    `json:"learner_id"`
	Score     float64   `json:"readiness_score"`
	QuizCount int       `json:"quiz_count"`
	UpdatedAt null.Time `json:"readiness_score_updated_at"`
	Version   int       `json:"-"`
}

// Next folds one more score into the average. The stored value keeps 2 decimals.
func (ra RollingAverage) Next(score float64, now time.Time) RollingAverage {
	avg := (ra.Score*float64(ra.QuizCount) + score) / float64(ra.QuizCount+1)
	avg = math.Max(minScore, math.Min(maxScore, Round2(avg)))
	return RollingAverage{
		LearnerID: ra.LearnerID,
		Score:     avg,
		QuizCount: ra.QuizCount + 1,
		UpdatedAt: null.TimeFrom(now),
		Version:   ra.Version + 1,
	}
}

// Round2 rounds half away from zero to 2 decimals, the precision of the stored column.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ValidScore(score float64) bool {
	return !math.IsNaN(score) && !math.IsInf(score, 0) && score >= minScore && score <= maxScore
}

// Submission is kept to reject replays of the same graded quiz.
type Submission struct {
	ID          string    `json:"submission_id"`
	LearnerID   string    `json:"learner_id"`
	QuizID      string    `json:"quiz_id,omitempty"`
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewSubmission is the payload of a graded quiz. QuizID, when given, must name a published quiz.
type NewSubmission struct {
	Score        *float64 `json:"score" validate:"required"`
	SubmissionID string   `json:"submission_id" validate:"required,ident"`
	QuizID       string   `json:"quiz_id" validate:"omitempty,ident"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.SubmissionID = core.CleanString(ns.SubmissionID)
	ns.QuizID = core.CleanString(ns.QuizID)
	return validate.Struct(ns)
}

type (
	Repository interface {
		GetRollingAverage(ctx context.Context, learnerID string) (RollingAverage, error)
		// SaveSubmission stores sub and next in one transaction.
		// It returns ErrDuplicateSubmission if sub was seen before and core.ErrVersionConflict
		// if the stored average is no longer at expectedVersion. Nothing is written in either case.
		SaveSubmission(ctx context.Context, sub Submission, next RollingAverage, expectedVersion int) (RollingAverage, error)
	}

	// QuizFinder resolves quiz ids against the catalog.
	QuizFinder interface {
		GetQuizConfig(ctx context.Context, id string) (catalog.QuizConfig, error)
		GetCourse(ctx context.Context, courseID string) (catalog.Course, error)
	}

	Service struct {
		repo       Repository
		quizzes    QuizFinder
		events     core.EventPublisher
		logger     core.Logger
		maxRetries int
		backoff    time.Duration
		now        func() time.Time
	}
)

// NewService builds the aggregator. With a nil quizzes, quiz ids are not checked.
func NewService(repo Repository, quizzes QuizFinder, events core.EventPublisher, logger core.Logger, conf *core.Config) *Service {
	svc := &Service{
		repo:       repo,
		quizzes:    quizzes,
		events:     events,
		logger:     logger,
		maxRetries: conf.Readiness.MaxConflictRetries,
		backoff:    conf.Readiness.RetryBackoff,
		now:        core.Now,
	}
	if svc.events == nil {
		svc.events = core.NopPublisher{}
	}
	if svc.maxRetries < 0 {
		svc.maxRetries = defaultMaxRetries
	}
	return svc
}

func (svc *Service) Get(ctx context.Context, learnerID string) (RollingAverage, error) {
	return svc.repo.GetRollingAverage(ctx, learnerID)
}

// RecordQuizSubmission folds a graded quiz into the learner's rolling average.
// Lost updates are prevented with optimistic versioning: a conflicting write is retried
// up to maxRetries times before giving up with ErrConcurrency.
func (svc *Service) RecordQuizSubmission(ctx context.Context, learnerID string, score float64, submissionID string) (RollingAverage, error) {
	return svc.record(ctx, learnerID, score, submissionID, nil)
}

// Submit expects a validated NewSubmission. A quiz id must name a quiz of a published course.
func (svc *Service) Submit(ctx context.Context, learnerID string, ns NewSubmission) (RollingAverage, error) {
	if ns.Score == nil {
		return RollingAverage{}, ErrInvalidScore
	}
	if ns.QuizID == "" || svc.quizzes == nil {
		return svc.record(ctx, learnerID, *ns.Score, ns.SubmissionID, nil)
	}

	quiz, err := svc.quizzes.GetQuizConfig(ctx, ns.QuizID)
	if err != nil {
		if errors.Cause(err) == catalog.ErrQuizNotFound {
			return RollingAverage{}, ErrUnknownQuiz
		}
		return RollingAverage{}, errors.Wrap(err, "loading quiz")
	}
	course, err := svc.quizzes.GetCourse(ctx, quiz.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return RollingAverage{}, ErrUnknownQuiz
		}
		return RollingAverage{}, errors.Wrap(err, "loading course")
	}
	if course.Status != catalog.StatusPublished {
		return RollingAverage{}, ErrUnknownQuiz
	}
	return svc.record(ctx, learnerID, *ns.Score, ns.SubmissionID, &quiz)
}

func (svc *Service) record(ctx context.Context, learnerID string, score float64, submissionID string, quiz *catalog.QuizConfig) (RollingAverage, error) {
	if !ValidScore(score) {
		return RollingAverage{}, ErrInvalidScore
	}
	submissionID = core.CleanString(submissionID)
	if submissionID == "" {
		return RollingAverage{}, ErrMissingSubmissionID
	}

	for attempt := 0; ; attempt++ {
		cur, err := svc.repo.GetRollingAverage(ctx, learnerID)
		if err != nil {
			if errors.Cause(err) == learner.ErrNotFound {
				return RollingAverage{}, err
			}
			return RollingAverage{}, errors.Wrap(err, "loading rolling average")
		}

		now := svc.now().UTC()
		sub := Submission{ID: submissionID, LearnerID: learnerID, Score: score, SubmittedAt: now}
		if quiz != nil {
			sub.QuizID = quiz.ID
		}
		saved, err := svc.repo.SaveSubmission(ctx, sub, cur.Next(score, now), cur.Version)
		switch cause := errors.Cause(err); {
		case err == nil:
			svc.publish(ctx, sub, saved, quiz)
			return saved, nil
		case cause == ErrDuplicateSubmission:
			return RollingAverage{}, ErrDuplicateSubmission
		case cause != core.ErrVersionConflict:
			return RollingAverage{}, errors.Wrap(err, "saving quiz submission")
		}

		if attempt >= svc.maxRetries {
			svc.logger.Warn(fmt.Sprintf("quiz submission %s gave up after %d retries", submissionID, attempt),
				map[string]interface{}{"learner_id": learnerID})
			return RollingAverage{}, ErrConcurrency
		}
		if err = svc.wait(ctx, attempt); err != nil {
			return RollingAverage{}, err
		}
	}
}

// wait backs off linearly between attempts.
func (svc *Service) wait(ctx context.Context, attempt int) error {
	if svc.backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(attempt+1) * svc.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (svc *Service) publish(ctx context.Context, sub Submission, ra RollingAverage, quiz *catalog.QuizConfig) {
	var courseID, moduleID string
	if quiz != nil {
		courseID, moduleID = quiz.CourseID, quiz.ModuleID
	}
	ev := core.NewEvent(core.EventQuizRecorded, sub.LearnerID, courseID, moduleID, sub.SubmittedAt)
	ev.Data = map[string]interface{}{"readiness_score": ra.Score, "quiz_count": ra.QuizCount}
	if quiz != nil {
		ev.Data["quiz_id"] = quiz.ID
		ev.Data["passed"] = quiz.Passed(sub.Score)
	}
	if err := svc.events.Publish(ctx, ev); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s event: %v", ev.Type, err), err)
	}
}
