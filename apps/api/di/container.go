// Package di wires the application services for the API server and the admin CLI.
package di

import (
	"context"
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/assignment"
	"github.com/trezcool/tayari/core/catalog"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/notify"
	"github.com/trezcool/tayari/core/progress"
	"github.com/trezcool/tayari/core/quizscore"
	"github.com/trezcool/tayari/core/readiness"
	emailsvc "github.com/trezcool/tayari/services/email"
	"github.com/trezcool/tayari/services/eventbus"
	logsvc "github.com/trezcool/tayari/services/logger"
	"github.com/trezcool/tayari/storage/database"
	dummydb "github.com/trezcool/tayari/storage/database/dummy"
	sqlxrepos "github.com/trezcool/tayari/storage/database/sqlx"
)

type (
	Repositories struct {
		Learner    learner.Repository
		Course     catalog.Repository
		Progress   progress.Repository
		QuizScore  quizscore.Repository
		Assignment assignment.Repository
	}

	Container struct {
		Conf       *core.Config
		Logger     *logsvc.RollbarLogger
		DB         core.Pinger
		SQLDB      *sqlx.DB // nil with the memory engine
		Repos      Repositories
		Bus        *eventbus.Bus
		Validate   *validator.Validate
		Translator ut.Translator

		LearnerSvc    *learner.Service
		CatalogSvc    *catalog.Service
		ProgressSvc   *progress.Service
		ReadinessSvc  *readiness.Service
		QuizScoreSvc  *quizscore.Service
		AssignmentSvc *assignment.Service
		Notifier      *notify.Notifier

		closers []func() error
	}
)

func NewLogger(conf *core.Config) (*logsvc.RollbarLogger, error) {
	sugar, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	return logsvc.NewRollbarLogger(sugar, conf), nil
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// New builds every dependency. Close releases them in reverse order.
func New(ctx context.Context, conf *core.Config) (*Container, error) {
	logger, err := NewLogger(conf)
	if err != nil {
		return nil, err
	}
	c := &Container{Conf: conf, Logger: logger}
	c.closers = append(c.closers, func() error { logger.Sync(); return nil })

	if err = c.setUpStorage(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	publisher, err := c.setUpEvents(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Validate = validator.New()
	c.Translator = NewTranslator()
	core.InitValidators(c.Validate, c.Translator)
	core.ParseEmailTemplates(logger, conf)

	var mailSvc core.EmailService
	if conf.Debug || conf.TestMode || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	c.LearnerSvc = learner.NewService(c.Repos.Learner)
	c.CatalogSvc = catalog.NewService(c.Repos.Course)
	c.ProgressSvc = progress.NewService(c.Repos.Progress, c.CatalogSvc, c.LearnerSvc, publisher, logger)
	c.AssignmentSvc = assignment.NewService(c.Repos.Assignment, c.LearnerSvc, c.CatalogSvc)
	c.QuizScoreSvc = quizscore.NewService(c.Repos.QuizScore, c.CatalogSvc, publisher, logger, conf)
	c.ReadinessSvc = readiness.NewService(c.ProgressSvc, c.AssignmentSvc, c.CatalogSvc, c.LearnerSvc)
	c.Notifier = notify.NewNotifier(c.LearnerSvc, c.CatalogSvc, mailSvc, logger)
	return c, nil
}

func (c *Container) setUpStorage(ctx context.Context) error {
	if c.Conf.Database.IsMemory() {
		db, err := dummydb.Open()
		if err != nil {
			return errors.Wrap(err, "opening in-memory database")
		}
		c.DB = db
		c.closers = append(c.closers, db.Close)
		c.Repos = Repositories{
			Learner:    dummydb.NewLearnerRepository(db),
			Course:     dummydb.NewCourseRepository(db),
			Progress:   dummydb.NewProgressRepository(db),
			QuizScore:  dummydb.NewQuizScoreRepository(db),
			Assignment: dummydb.NewAssignmentRepository(db),
		}
		return nil
	}

	db, err := SetUpDB(ctx, c.Conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	c.DB = db
	c.SQLDB = db
	c.closers = append(c.closers, db.Close)
	c.Repos = Repositories{
		Learner:    sqlxrepos.NewLearnerRepository(db),
		Course:     sqlxrepos.NewCourseRepository(db),
		Progress:   sqlxrepos.NewProgressRepository(db),
		QuizScore:  sqlxrepos.NewQuizScoreRepository(db),
		Assignment: sqlxrepos.NewAssignmentRepository(db),
	}
	return nil
}

func (c *Container) setUpEvents(ctx context.Context) (core.EventPublisher, error) {
	c.Bus = eventbus.NewBus(c.Logger, c.Conf.Readiness.EventBuffer)
	c.closers = append(c.closers, c.Bus.Close)
	if !c.Conf.Redis.Enabled {
		return c.Bus, nil
	}

	rdb, err := eventbus.NewRedisClient(ctx, c.Conf)
	if err != nil {
		return nil, err
	}
	pub := eventbus.NewRedisPublisher(rdb, c.Conf.Redis.Channel)
	c.closers = append(c.closers, pub.Close)
	return eventbus.Multi{c.Bus, pub}, nil
}

// SetUpDB creates the database if needed, opens it and applies the migrations.
func SetUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	if first != nil {
		return fmt.Errorf("closing container: %w", first)
	}
	return nil
}
