package launchpad

import (
	"context"
	"errors"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/GoCodeAlone/launchpad/container"
)

type orderedGenerator struct {
	code  int
	order int
}

func (g orderedGenerator) ExitCode() int { return g.code }
func (g orderedGenerator) Order() int    { return g.order }

func TestExitCodeGeneratorsFirstNonZeroInOrder(t *testing.T) {
	var g ExitCodeGenerators
	assert.Zero(t, g.ExitCode())

	g.Add(nil, ExitCodeGeneratorFunc(func() int { return 0 }))
	g.Add(orderedGenerator{code: 4, order: 10})
	g.Add(orderedGenerator{code: 9, order: 10})
	g.Add(orderedGenerator{code: 2, order: 20})
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 4, g.ExitCode())

	g.Add(orderedGenerator{code: -3, order: -1})
	assert.Equal(t, -3, g.ExitCode())
}

func TestExitCodeGeneratorPanicCountsAsOne(t *testing.T) {
	var g ExitCodeGenerators
	g.Add(ExitCodeGeneratorFunc(func() int { panic("broken generator") }))
	g.Add(ExitCodeGeneratorFunc(func() int { return 5 }))
	assert.Equal(t, 1, g.ExitCode())
}

func TestExitCodeGeneratorsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		codes := rapid.SliceOf(rapid.IntRange(-2, 3)).Draw(t, "codes")
		orders := rapid.SliceOfN(rapid.IntRange(-2, 2), len(codes), len(codes)).Draw(t, "orders")

		var g ExitCodeGenerators
		want, bestOrder := 0, 0
		for i, code := range codes {
			g.Add(orderedGenerator{code: code, order: orders[i]})
			if code != 0 && (want == 0 || orders[i] < bestOrder) {
				want, bestOrder = code, orders[i]
			}
		}
		if got := g.ExitCode(); got != want {
			t.Fatalf("ExitCode() = %d, want %d", got, want)
		}
	})
}

func TestExitCodeMappersKeepMapperOrder(t *testing.T) {
	failure := errors.New("failure")
	var g ExitCodeGenerators
	g.AddMappers(failure,
		ExitCodeExceptionMapperFunc(func(error) int { return 0 }),
		orderedMapper{code: 12, order: 5},
		orderedMapper{code: 11, order: 1},
	)
	assert.Equal(t, 11, g.ExitCode())
}

type orderedMapper struct {
	code  int
	order int
}

func (m orderedMapper) ExitCodeFor(error) int { return m.code }
func (m orderedMapper) Order() int            { return m.order }

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewExitError(74, cause)
	assert.Equal(t, "disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 74, exitCodeFromCause(err))
	assert.Equal(t, 74, exitCodeFromCause(&RunError{Phase: PhaseReady, Err: err}))
	assert.Equal(t, "exit status 3", NewExitError(3, nil).Error())
	assert.Zero(t, exitCodeFromCause(cause))
}

type closeErrorBean struct{}

func (closeErrorBean) Close() error { return errors.New("close failed") }

func TestExit(t *testing.T) {
	t.Run("nil container uses explicit generators", func(t *testing.T) {
		assert.Equal(t, 6, Exit(context.Background(), nil, ExitCodeGeneratorFunc(func() int { return 6 })))
		assert.Zero(t, Exit(context.Background(), nil))
	})

	t.Run("explicit generators before beans", func(t *testing.T) {
		c := container.NewStdContainer(nil)
		require.NoError(t, c.RegisterSingleton("generator", ExitCodeGeneratorFunc(func() int { return 8 })))
		var published []int
		var sources []string
		require.NoError(t, c.AddEventListener(NewObserver("exit", func(_ context.Context, e cloudevents.Event) error {
			data, err := ExitCodeEventFrom(e)
			if err != nil {
				return err
			}
			published = append(published, data.ExitCode)
			sources = append(sources, e.Source())
			return nil
		}), EventTypeExitCode))
		require.NoError(t, c.Refresh(context.Background()))

		assert.Equal(t, 2, Exit(context.Background(), c, ExitCodeGeneratorFunc(func() int { return 2 })))
		assert.Equal(t, []int{2}, published)
		assert.Equal(t, []string{"launchpad"}, sources)
		assert.True(t, c.IsClosed())
	})

	t.Run("bean generator", func(t *testing.T) {
		c := container.NewStdContainer(nil)
		require.NoError(t, c.RegisterSingleton("generator", ExitCodeGeneratorFunc(func() int { return 8 })))
		require.NoError(t, c.Refresh(context.Background()))
		assert.Equal(t, 8, Exit(context.Background(), c))
	})

	t.Run("close failure turns success into one", func(t *testing.T) {
		c := container.NewStdContainer(nil)
		require.NoError(t, c.RegisterSingleton("closer", closeErrorBean{}))
		require.NoError(t, c.Refresh(context.Background()))
		assert.Equal(t, 1, Exit(context.Background(), c))
	})
}

func TestExitCodeEventFromRejectsOtherEvents(t *testing.T) {
	_, err := ExitCodeEventFrom(NewCloudEvent(EventTypeApplicationReady, "test", nil, nil))
	assert.ErrorIs(t, err, container.ErrInvalidEvent)
}
