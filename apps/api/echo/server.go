package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/assignment"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/progress"
	"github.com/trezcool/tayari/core/quizscore"
	"github.com/trezcool/tayari/core/readiness"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		DB            core.Pinger
		LearnerSvc    *learner.Service
		CatalogSvc    *catalog.Service
		ProgressSvc   *progress.Service
		ReadinessSvc  *readiness.Service
		QuizScoreSvc  *quizscore.Service
		AssignmentSvc *assignment.Service
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server struct {
		app      *echo.Echo
		conf     *core.Config
		db       core.Pinger
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		conf:     deps.Conf,
		db:       deps.DB,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.SignalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.health)

	v1 := s.app.Group("/v1")
	g := v1.Group("", newJWTMiddleware(s.conf.SecretKey), learnerMiddleware(deps.LearnerSvc))

	registerLearnerAPI(g, deps.LearnerSvc, deps.Validate)
	registerCatalogAPI(g, deps.CatalogSvc, deps.Validate)
	registerProgressAPI(g, deps.ProgressSvc, deps.Validate)
	registerReadinessAPI(g, deps.ReadinessSvc, deps.LearnerSvc)
	registerQuizScoreAPI(g, deps.QuizScoreSvc, deps.Validate)
	registerAssignmentAPI(g, deps.AssignmentSvc, deps.Validate)
}

// Start blocks; errors other than a regular shutdown are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Build     string    `json:"build"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(ctx echo.Context) error {
	res := healthResponse{Status: "ok", Database: "ok", Build: s.conf.Build, Timestamp: time.Now().UTC()}
	code := http.StatusOK

	pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		res.Status = "degraded"
		res.Database = "unreachable"
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, res)
}
