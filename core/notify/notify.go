// Package notify reacts to progress events on behalf of learners.
package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
)

type (
	LearnerFinder interface {
		GetByID(ctx context.Context, id string) (learner.Learner, error)
	}

	Notifier struct {
		learners LearnerFinder
		courses  catalog.Reader
		mailSvc  core.EmailService
		logger   core.Logger
	}

	courseCompletedData struct {
		Name        string
		CourseID    string
		CourseTitle string
	}
)

func NewNotifier(learners LearnerFinder, courses catalog.Reader, mailSvc core.EmailService, logger core.Logger) *Notifier {
	return &Notifier{learners: learners, courses: courses, mailSvc: mailSvc, logger: logger}
}

// Run handles events until ctx is done or events is closed.
func (n *Notifier) Run(ctx context.Context, events <-chan core.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := n.Handle(ctx, ev); err != nil {
				n.logger.Error(fmt.Sprintf("handling %s event: %v", ev.Type, err), err)
			}
		}
	}
}

func (n *Notifier) Handle(ctx context.Context, ev core.Event) error {
	switch ev.Type {
	case core.EventCourseCompleted:
		return n.courseCompleted(ctx, ev)
	default:
		return nil
	}
}

func (n *Notifier) courseCompleted(ctx context.Context, ev core.Event) error {
	l, err := n.learners.GetByID(ctx, ev.LearnerID)
	if err != nil {
		return errors.Wrap(err, "loading learner")
	}
	if !l.IsActive || l.Email == "" {
		return nil
	}
	c, err := n.courses.GetCourse(ctx, ev.CourseID)
	if err != nil {
		return errors.Wrap(err, "loading course")
	}

	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: l.Name, Address: l.Email}},
		Subject:      fmt.Sprintf("You completed %s", c.Title),
		TemplateName: "course_completed",
		TemplateData: courseCompletedData{Name: l.Name, CourseID: c.ID, CourseTitle: c.Title},
	})
	return nil
}
