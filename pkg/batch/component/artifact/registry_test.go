package artifact_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

type sleeper struct {
	Delay time.Duration `batch:"delay"`
	Name  string        `batch:"name"`
}

func TestCreateCallsBuilderPerExecution(t *testing.T) {
	r := artifact.NewRegistry()
	calls := 0
	r.Register("counter", func(ctx context.Context, sc *port.StepContext) (any, error) {
		calls++
		return &calls, nil
	})

	_, err := r.Create(context.Background(), "counter", nil)
	require.NoError(t, err)
	_, err = r.Create(context.Background(), "counter", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCreateUnknownName(t *testing.T) {
	_, err := artifact.NewRegistry().Create(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, artifact.ErrArtifactNotFound)
	assert.ErrorIs(t, err, exception.ErrValidation)
}

func TestCreateWrapsBuilderError(t *testing.T) {
	boom := errors.New("boom")
	r := artifact.NewRegistry(artifact.Registration{Name: "bad", Builder: func(context.Context, *port.StepContext) (any, error) {
		return nil, boom
	}})
	_, err := r.Create(context.Background(), "bad", nil)
	assert.ErrorIs(t, err, boom)
}

func TestBoundBindsStepProperties(t *testing.T) {
	r := artifact.NewRegistry()
	r.Register("sleeper", artifact.Bound(func() *sleeper { return &sleeper{} }))
	sc := port.NewStepContext(nil, nil, nil, nil, map[string]string{"delay": "150ms", "name": "s1"}, nil)

	a, err := r.Create(context.Background(), "sleeper", sc)
	require.NoError(t, err)
	s := a.(*sleeper)
	assert.Equal(t, 150*time.Millisecond, s.Delay)
	assert.Equal(t, "s1", s.Name)
}

func TestModuleCollectsRegistrations(t *testing.T) {
	var factory port.ArtifactFactory
	var registry *artifact.Registry
	app := fxtest.New(t,
		artifact.Module,
		artifact.Provide("a", func(context.Context, *port.StepContext) (any, error) { return "A", nil }),
		artifact.Provide("b", func(context.Context, *port.StepContext) (any, error) { return "B", nil }),
		fx.Populate(&factory, &registry),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, []string{"a", "b"}, registry.Names())
	v, err := factory.Create(context.Background(), "b", nil)
	require.NoError(t, err)
	assert.Equal(t, "B", v)
}

func TestBoundSubstitutesJobParameterReferences(t *testing.T) {
	r := artifact.NewRegistry()
	r.Register("sleeper", artifact.Bound(func() *sleeper { return &sleeper{} }))
	je := &model.JobExecution{Parameters: model.JobParametersOf(map[string]string{"wait": "2s"})}
	sc := port.NewStepContext(je, nil, nil, nil, map[string]string{
		"delay": "#{jobParameters['wait']}",
		"name":  "#{jobParameters['who']}?:anonymous;",
	}, nil)

	a, err := r.Create(context.Background(), "sleeper", sc)
	require.NoError(t, err)
	s := a.(*sleeper)
	assert.Equal(t, 2*time.Second, s.Delay)
	assert.Equal(t, "anonymous", s.Name)
}
