package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
)

func newTestLogger() *RollbarLogger {
	return NewRollbarLogger(zap.NewNop().Sugar(), &core.Config{Env: "TEST", TestMode: true})
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := newTestLogger()
	ada := learner.Learner{ID: "l1", Name: "Ada", Email: "ada@example.com"}
	bob := learner.Learner{ID: "l2", Name: "Bob", Email: "bob@example.com"}
	boom := errors.New("boom")

	it := l.prepare("publishing event", []interface{}{boom, ada, bob, map[string]interface{}{"course_id": "c1"}, 42})

	require.NotNil(t, it.person)
	assert.Equal(t, "l1", it.person.Id)
	assert.Equal(t, "Ada", it.person.Username)
	assert.Equal(t, "ada@example.com", it.person.Email)
	assert.Equal(t, boom, it.err)
	assert.Equal(t, map[string]interface{}{"course_id": "c1", "extra": 42, "message": "publishing event"}, it.extras)
	assert.Contains(t, it.fields, "learner_id")
	assert.Contains(t, it.fields, "l1")
	assert.NotContains(t, it.fields, "l2")
}

func TestRollbarLogger_prepare_noPerson(t *testing.T) {
	l := newTestLogger()

	// a previous call carrying a learner does not leak into the next one
	_ = l.prepare("first", []interface{}{learner.Learner{ID: "l1"}})
	it := l.prepare("second", nil)

	assert.Nil(t, it.person)
	assert.Nil(t, it.err)
	assert.Empty(t, it.extras)
	assert.Empty(t, it.fields)
}

func TestRollbarLogger_levels(t *testing.T) {
	l := newTestLogger()
	lrn := learner.Learner{ID: "l1", Name: "Ada"}

	assert.NotPanics(t, func() {
		l.Debug("debug", lrn)
		l.Info("info", map[string]interface{}{"k": "v"})
		l.Warn("warn")
		l.Error("error", errors.New("boom"), lrn)
		l.Sync()
	})
}
