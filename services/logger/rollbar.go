package logsvc

import (
	"context"
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
)

type RollbarLogger struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZap builds the local sink: human readable in debug, JSON otherwise, silent in tests.
func NewZap(conf *core.Config) (*zap.SugaredLogger, error) {
	if conf.TestMode {
		return zap.NewNop().Sugar(), nil
	}
	cfg := zap.NewProductionConfig()
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("app", conf.AppName, "env", conf.Env), nil
}

func NewRollbarLogger(sugar *zap.SugaredLogger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{sugar: sugar}
}

func (l RollbarLogger) Sync() {
	_ = l.sugar.Sync()
	rollbar.Wait()
}

// item is one log call split for both sinks. person rides on the item context,
// never on the process-wide rollbar client.
type item struct {
	person *rollbar.Person
	err    error
	extras map[string]interface{}
	fields []interface{}
}

// expected fmt: msg | error, map[string]interface{}, learner.Learner
func (l RollbarLogger) prepare(msg string, args []interface{}) item {
	it := item{extras: make(map[string]interface{})}
	for _, arg := range args {
		switch v := arg.(type) {
		case learner.Learner:
			if it.person == nil { // only keep one Learner
				it.person = &rollbar.Person{Id: v.ID, Username: v.Name, Email: v.Email}
				it.fields = append(it.fields, "learner_id", v.ID)
			}
		case error:
			if it.err == nil {
				it.err = v
			} else {
				it.extras["error"] = v.Error()
			}
			it.fields = append(it.fields, "error", fmt.Sprintf("%+v", v))
		case map[string]interface{}:
			for k, val := range v {
				it.extras[k] = val
				it.fields = append(it.fields, k, val)
			}
		default:
			it.extras["extra"] = v
			it.fields = append(it.fields, "extra", v)
		}
	}
	if it.err != nil {
		it.extras["message"] = msg
	}
	return it
}

func (l RollbarLogger) report(level, msg string, args []interface{}) []interface{} {
	it := l.prepare(msg, args)
	ctx := context.Background()
	if it.person != nil {
		ctx = rollbar.NewPersonContext(ctx, it.person)
	}
	if it.err != nil {
		rollbar.ErrorWithExtrasAndContext(ctx, level, it.err, it.extras)
	} else {
		rollbar.MessageWithExtrasAndContext(ctx, level, msg, it.extras)
	}
	return it.fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugw(msg, l.report(rollbar.DEBUG, msg, args)...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.sugar.Infow(msg, l.report(rollbar.INFO, msg, args)...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.sugar.Warnw(msg, l.report(rollbar.WARN, msg, args)...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.sugar.Errorw(msg, l.report(rollbar.ERR, msg, args)...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	fields := l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.sugar.Fatalw(msg, fields...)
}
