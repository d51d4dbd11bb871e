package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/trezcool/tayari/apps/api/di"
	echoapi "github.com/trezcool/tayari/apps/api/echo"
	"github.com/trezcool/tayari/core"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := di.New(ctx, conf)
	if err != nil {
		log.Fatalf("setting up dependencies: %v", err)
	}
	logger := c.Logger
	defer func() {
		if err = c.Close(); err != nil {
			log.Printf("closing dependencies: %v", err)
		}
	}()

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// course completion mails
	events, unsubscribe := c.Bus.Subscribe()
	defer unsubscribe()
	go c.Notifier.Run(ctx, events)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db_engine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			DB:            c.DB,
			LearnerSvc:    c.LearnerSvc,
			CatalogSvc:    c.CatalogSvc,
			ProgressSvc:   c.ProgressSvc,
			ReadinessSvc:  c.ReadinessSvc,
			QuizScoreSvc:  c.QuizScoreSvc,
			AssignmentSvc: c.AssignmentSvc,
			Validate:      c.Validate,
			Translator:    c.Translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancelShutdown()

		if err = server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
