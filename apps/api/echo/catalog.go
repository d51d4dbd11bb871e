package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
)

var authorRoles = []string{learner.RoleAdmin, learner.RoleInstructor}

type catalogApi struct {
	svc      *catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, svc *catalog.Service, validate *validator.Validate) {
	api := catalogApi{svc: svc, validate: validate}
	authors := roleMiddleware(authorRoles...)

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.POST("", api.create, authors)

	// detail endpoints
	cg.GET("/:courseID", api.retrieve)
	cg.PUT("/:courseID", api.update, authors, api.ownerMiddleware)
	cg.PUT("/:courseID/modules", api.setModules, authors, api.ownerMiddleware)
	cg.POST("/:courseID/publish", api.publish, authors, api.ownerMiddleware)
	cg.POST("/:courseID/archive", api.archive, authors, api.ownerMiddleware)
	cg.DELETE("/:courseID", api.destroy, authors, api.ownerMiddleware)

	// quizzes
	cg.GET("/:courseID/quizzes", api.queryQuizzes)
	cg.PUT("/:courseID/quizzes/:quizID", api.saveQuiz, authors, api.ownerMiddleware)
	g.GET("/quizzes/:quizID", api.retrieveQuiz)
}

// ownerMiddleware restricts instructors to the courses they author. Admins manage every course.
func (api *catalogApi) ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxLrn, err := getContextLearner(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context learner")
		}
		course, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("courseID"))
		if err != nil {
			return errors.Wrap(err, "finding course by ID")
		}
		if !ctxLrn.IsAdmin() && course.InstructorID != ctxLrn.ID {
			return errHttpNotFound
		}
		return next(ctx)
	}
}

// Handlers

func (api *catalogApi) create(ctx echo.Context) error {
	var data catalog.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ctxLrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}

	course, err := api.svc.Create(ctx.Request().Context(), ctxLrn.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *catalogApi) query(ctx echo.Context) error {
	filter := new(catalog.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	// learners only browse what they can take
	ctxLrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	if !ctxLrn.HasAnyRole(authorRoles...) {
		filter.Statuses = []catalog.Status{catalog.StatusPublished}
	}

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	course, err := api.visibleCourse(ctx, ctx.Param("courseID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

// visibleCourse hides drafts and archived courses from everyone but admins and their author.
func (api *catalogApi) visibleCourse(ctx echo.Context, courseID string) (catalog.Course, error) {
	ctxLrn, err := getContextLearner(ctx)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "getting context learner")
	}
	course, err := api.svc.GetCourse(ctx.Request().Context(), courseID)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "finding course by ID")
	}
	if !course.VisibleToLearners() && !ctxLrn.IsAdmin() && course.InstructorID != ctxLrn.ID {
		return catalog.Course{}, errHttpNotFound
	}
	return course, nil
}

func (api *catalogApi) update(ctx echo.Context) error {
	var data catalog.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	course, err := api.svc.Update(ctx.Request().Context(), ctx.Param("courseID"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) setModules(ctx echo.Context) error {
	var data catalog.SetModules
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetModules")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	course, err := api.svc.SetModules(ctx.Request().Context(), ctx.Param("courseID"), data)
	if err != nil {
		return errors.Wrap(err, "setting course modules")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) publish(ctx echo.Context) error {
	course, err := api.svc.Publish(ctx.Request().Context(), ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "publishing course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) archive(ctx echo.Context) error {
	course, err := api.svc.Archive(ctx.Request().Context(), ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "archiving course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("courseID")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) saveQuiz(ctx echo.Context) error {
	var data catalog.SaveQuizConfig
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveQuizConfig")
	}
	data.ID = ctx.Param("quizID")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	quiz, err := api.svc.SaveQuizConfig(ctx.Request().Context(), ctx.Param("courseID"), data)
	if err != nil {
		return errors.Wrap(err, "saving quiz")
	}
	return ctx.JSON(http.StatusOK, quiz)
}

func (api *catalogApi) queryQuizzes(ctx echo.Context) error {
	course, err := api.visibleCourse(ctx, ctx.Param("courseID"))
	if err != nil {
		return err
	}
	quizzes, err := api.svc.ListQuizConfigs(ctx.Request().Context(), course.ID)
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *catalogApi) retrieveQuiz(ctx echo.Context) error {
	quiz, err := api.svc.GetQuizConfig(ctx.Request().Context(), ctx.Param("quizID"))
	if err != nil {
		return errors.Wrap(err, "finding quiz by ID")
	}
	if _, err := api.visibleCourse(ctx, quiz.CourseID); err != nil {
		if errors.Cause(err) == catalog.ErrCourseNotFound {
			return catalog.ErrQuizNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, quiz)
}
