package readiness

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/assignment"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/progress"
)

const teamConcurrency = 4

type (
	ProgressReader interface {
		ListEnrollments(ctx context.Context, learnerID string) ([]progress.Enrollment, error)
		ListCourseProgress(ctx context.Context, learnerID string) ([]progress.CourseProgress, error)
	}

	AssignmentLister interface {
		ListForLearner(ctx context.Context, learnerID string) ([]assignment.Assignment, error)
	}

	LearnerDirectory interface {
		GetByID(ctx context.Context, id string) (learner.Learner, error)
		Team(ctx context.Context, managerID string) ([]learner.Learner, error)
	}

	Service struct {
		progress    ProgressReader
		assignments AssignmentLister
		courses     catalog.Reader
		learners    LearnerDirectory
		now         func() time.Time
	}

	MemberReadiness struct {
		LearnerID          string   `json:"learner_id"`
		Name               string   `json:"name"`
		Email              string   `json:"email"`
		Readiness          Snapshot `json:"readiness"`
		QuizAverage        float64  `json:"quiz_average"`
		QuizCount          int      `json:"quiz_count"`
		OverdueAssignments int      `json:"overdue_assignments"`
	}

	// TeamReport is what a manager sees for their direct reports.
	TeamReport struct {
		ManagerID            string            `json:"manager_id"`
		Members              []MemberReadiness `json:"members"`
		AverageScore         int               `json:"average_score"`
		AverageCompletionPct int               `json:"average_completion_pct"`
		OverdueAssignments   int               `json:"overdue_assignments"`
		AtRisk               int               `json:"at_risk"`
	}
)

func NewService(progress ProgressReader, assignments AssignmentLister, courses catalog.Reader, learners LearnerDirectory) *Service {
	return &Service{
		progress:    progress,
		assignments: assignments,
		courses:     courses,
		learners:    learners,
		now:         core.Now,
	}
}

// ComputeForLearner gathers the learner's current state and scores it.
func (svc *Service) ComputeForLearner(ctx context.Context, learnerID string) (Snapshot, error) {
	if _, err := svc.learners.GetByID(ctx, learnerID); err != nil {
		return Snapshot{}, err
	}
	in, err := svc.input(ctx, learnerID)
	if err != nil {
		return Snapshot{}, err
	}
	return Compute(in), nil
}

func (svc *Service) input(ctx context.Context, learnerID string) (Input, error) {
	var (
		enrollments []progress.Enrollment
		records     []progress.CourseProgress
		assignments []assignment.Assignment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrollments, err = svc.progress.ListEnrollments(gctx, learnerID)
		return errors.Wrap(err, "listing enrollments")
	})
	g.Go(func() error {
		var err error
		records, err = svc.progress.ListCourseProgress(gctx, learnerID)
		return errors.Wrap(err, "listing course progress")
	})
	g.Go(func() error {
		var err error
		assignments, err = svc.assignments.ListForLearner(gctx, learnerID)
		return errors.Wrap(err, "listing assignments")
	})
	if err := g.Wait(); err != nil {
		return Input{}, err
	}

	// a course is on the path once enrolled in or started
	byCourse := make(map[string]*CourseInput)
	ids := make([]string, 0, len(enrollments)+len(records))
	get := func(courseID string) *CourseInput {
		ci, ok := byCourse[courseID]
		if !ok {
			ci = &CourseInput{CourseID: courseID}
			byCourse[courseID] = ci
			ids = append(ids, courseID)
		}
		return ci
	}
	for _, e := range enrollments {
		get(e.CourseID).DueAt = e.DueAt
	}
	for _, p := range records {
		ci := get(p.CourseID)
		ci.CompletedModules = len(p.CompletedModuleIDs)
		ci.Completed = p.CourseCompleted
	}
	sort.Strings(ids)

	courses := make([]CourseInput, 0, len(ids))
	for _, id := range ids {
		c, err := svc.courses.GetCourse(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return Input{}, errors.Wrap(err, "loading course")
		}
		if !c.VisibleToLearners() {
			continue
		}
		ci := byCourse[id]
		ci.Mandatory = c.IsMandatory
		ci.TotalModules = len(c.Modules)
		courses = append(courses, *ci)
	}

	return Input{Courses: courses, Assignments: assignments, Now: svc.now().UTC()}, nil
}

// TeamReport scores every active direct report of the manager.
func (svc *Service) TeamReport(ctx context.Context, managerID string) (TeamReport, error) {
	if _, err := svc.learners.GetByID(ctx, managerID); err != nil {
		return TeamReport{}, err
	}
	team, err := svc.learners.Team(ctx, managerID)
	if err != nil {
		return TeamReport{}, errors.Wrap(err, "listing team")
	}

	members := make([]MemberReadiness, len(team))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(teamConcurrency)
	for i, l := range team {
		i, l := i, l
		g.Go(func() error {
			in, err := svc.input(gctx, l.ID)
			if err != nil {
				return errors.Wrapf(err, "scoring learner %s", l.ID)
			}
			var overdue int
			for _, a := range in.Assignments {
				if a.IsOverdue(in.Now) {
					overdue++
				}
			}
			members[i] = MemberReadiness{
				LearnerID:          l.ID,
				Name:               l.Name,
				Email:              l.Email,
				Readiness:          Compute(in),
				QuizAverage:        l.ReadinessScore,
				QuizCount:          l.ReadinessScoreQuizCount,
				OverdueAssignments: overdue,
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return TeamReport{}, err
	}

	report := TeamReport{ManagerID: managerID, Members: members}
	if len(members) == 0 {
		return report, nil
	}
	var scoreSum, completionSum int
	for _, m := range members {
		scoreSum += m.Readiness.Score
		completionSum += m.Readiness.CourseCompletionPct
		report.OverdueAssignments += m.OverdueAssignments
		if m.Readiness.Status == StatusAtRisk {
			report.AtRisk++
		}
	}
	n := float64(len(members))
	report.AverageScore = int(math.Round(float64(scoreSum) / n))
	report.AverageCompletionPct = int(math.Round(float64(completionSum) / n))
	return report, nil
}
