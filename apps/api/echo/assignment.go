package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core/assignment"
	"github.com/trezcool/tayari/core/learner"
)

type assignmentApi struct {
	svc      *assignment.Service
	validate *validator.Validate
}

func registerAssignmentAPI(g *echo.Group, svc *assignment.Service, validate *validator.Validate) {
	api := assignmentApi{svc: svc, validate: validate}

	ag := g.Group("/assignments")
	ag.GET("", api.query)
	ag.POST("", api.create, roleMiddleware(learner.RoleAdmin, learner.RoleInstructor, learner.RoleManager))
	ag.POST("/:id/submit", api.submit)

	g.GET("/assessments", api.assessments)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Assign(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	list, err := api.svc.ListForLearner(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	a, err := api.svc.Submit(ctx.Request().Context(), lrn.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) assessments(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	list, err := api.svc.AvailableAssessments(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "listing assessments")
	}
	return ctx.JSON(http.StatusOK, list)
}
