package learner_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
	dummydb "github.com/trezcool/tayari/storage/database/dummy"
	"github.com/trezcool/tayari/tests"
)

func setup(t *testing.T) *learner.Service {
	return learner.NewService(dummydb.NewLearnerRepository(testutil.NewDB(t)))
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "not a validation error: %v", err)
	require.NotEmpty(t, verr.Fields)
	return verr.Fields[0].Field
}

func TestNewLearner_Validate(t *testing.T) {
	validate := testutil.NewValidator()

	nl := learner.NewLearner{Name: " Awe ", Email: " AWE@Test.cd "}
	require.NoError(t, nl.Validate(validate))
	assert.Equal(t, "Awe", nl.Name)
	assert.Equal(t, "awe@test.cd", nl.Email)
	assert.Equal(t, learner.RoleLearner, nl.Role)

	assert.Error(t, (&learner.NewLearner{Name: "Awe", Email: "lol"}).Validate(validate))
	assert.Error(t, (&learner.NewLearner{Name: "Awe", Email: "awe@test.cd", Role: "boss"}).Validate(validate))
	assert.Error(t, (&learner.NewLearner{Name: "  ", Email: "awe@test.cd"}).Validate(validate))
}

func TestService_Create(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	mgr, err := svc.Create(ctx, learner.NewLearner{Name: "Boss", Email: "boss@test.cd", Role: learner.RoleManager})
	require.NoError(t, err)
	peer, err := svc.Create(ctx, learner.NewLearner{Name: "Peer", Email: "peer@test.cd", Role: learner.RoleLearner})
	require.NoError(t, err)

	l, err := svc.Create(ctx, learner.NewLearner{Name: "Awe", Email: "awe@test.cd", Role: learner.RoleLearner, ManagerID: mgr.ID})
	require.NoError(t, err)
	assert.True(t, l.IsActive)
	assert.True(t, mgr.Manages(l))
	assert.Zero(t, l.ReadinessScoreQuizCount)

	_, err = svc.Create(ctx, learner.NewLearner{Name: "Dup", Email: "awe@test.cd", Role: learner.RoleLearner})
	assert.Equal(t, "email", fieldOf(t, err))

	_, err = svc.Create(ctx, learner.NewLearner{Name: "X", Email: "x@test.cd", Role: learner.RoleLearner, ManagerID: peer.ID})
	assert.Equal(t, "manager_id", fieldOf(t, err))

	_, err = svc.Create(ctx, learner.NewLearner{Name: "Y", Email: "y@test.cd", Role: learner.RoleLearner, ManagerID: "lol"})
	assert.Equal(t, "manager_id", fieldOf(t, err))

	got, err := svc.GetByEmail(ctx, " AWE@test.cd")
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
}

func TestService_Update(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	mgr, err := svc.Create(ctx, learner.NewLearner{Name: "Boss", Email: "boss@test.cd", Role: learner.RoleManager})
	require.NoError(t, err)
	l, err := svc.Create(ctx, learner.NewLearner{Name: "Awe", Email: "awe@test.cd", Role: learner.RoleLearner})
	require.NoError(t, err)

	self := l.ID
	_, err = svc.Update(ctx, l.ID, learner.UpdateLearner{ManagerID: &self})
	assert.Equal(t, "manager_id", fieldOf(t, err))

	inactive := false
	l, err = svc.Update(ctx, l.ID, learner.UpdateLearner{Name: "Awe N.", Role: learner.RoleInstructor, ManagerID: &mgr.ID, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Awe N.", l.Name)
	assert.Equal(t, learner.RoleInstructor, l.Role)
	assert.False(t, l.IsActive)
	assert.True(t, mgr.Manages(l))

	team, err := svc.Team(ctx, mgr.ID)
	require.NoError(t, err)
	assert.Empty(t, team, "inactive reports are left out")

	none := ""
	l, err = svc.Update(ctx, l.ID, learner.UpdateLearner{ManagerID: &none})
	require.NoError(t, err)
	assert.False(t, l.ManagerID.Valid)

	_, err = svc.Update(ctx, "lol", learner.UpdateLearner{Name: "X"})
	assert.Equal(t, learner.ErrNotFound, err)
}

func TestCheckRolePriority(t *testing.T) {
	admin := learner.Learner{Role: learner.RoleAdmin}
	manager := learner.Learner{Role: learner.RoleManager}

	assert.NoError(t, learner.CheckRolePriority(admin, learner.RoleAdmin))
	assert.NoError(t, learner.CheckRolePriority(manager, learner.RoleInstructor))
	assert.Equal(t, "role", fieldOf(t, learner.CheckRolePriority(manager, learner.RoleAdmin)))
}
