package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/readiness"
)

type readinessApi struct {
	svc      *readiness.Service
	learners *learner.Service
}

func registerReadinessAPI(g *echo.Group, svc *readiness.Service, learners *learner.Service) {
	api := readinessApi{svc: svc, learners: learners}

	g.GET("/readiness", api.mine)
	g.GET("/learners/:id/readiness", api.forLearner, roleMiddleware(learner.RoleAdmin, learner.RoleManager))
	g.GET("/team/readiness", api.team, roleMiddleware(learner.RoleAdmin, learner.RoleManager))
}

// Handlers

func (api *readinessApi) mine(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	snap, err := api.svc.ComputeForLearner(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "computing readiness")
	}
	return ctx.JSON(http.StatusOK, snap)
}

// forLearner is reserved to admins and the learner's direct manager.
func (api *readinessApi) forLearner(ctx echo.Context) error {
	ctxLrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	target, err := api.learners.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding learner by ID")
	}
	if !ctxLrn.IsAdmin() && !ctxLrn.Manages(target) {
		return errHttpNotFound
	}

	snap, err := api.svc.ComputeForLearner(ctx.Request().Context(), target.ID)
	if err != nil {
		return errors.Wrap(err, "computing readiness")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *readinessApi) team(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	managerID := lrn.ID
	if lrn.IsAdmin() && ctx.QueryParam("manager_id") != "" {
		managerID = ctx.QueryParam("manager_id")
	}

	report, err := api.svc.TeamReport(ctx.Request().Context(), managerID)
	if err != nil {
		return errors.Wrap(err, "building team report")
	}
	return ctx.JSON(http.StatusOK, report)
}
