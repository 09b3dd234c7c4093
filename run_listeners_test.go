package launchpad

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/startup"
)

type journalListener struct {
	BaseRunListener
	name    string
	journal *[]string
	err     error
}

func (l *journalListener) Starting(context.Context, BootstrapContext) error {
	*l.journal = append(*l.journal, l.name)
	return l.err
}

func TestRunListenersStopAtFirstError(t *testing.T) {
	var journal []string
	refused := errors.New("refused")
	steps := startup.NewBuffering(0)
	listeners := NewRunListeners(nil, steps,
		&journalListener{name: "a", journal: &journal},
		&journalListener{name: "b", journal: &journal, err: refused},
		&journalListener{name: "c", journal: &journal},
	)

	err := listeners.Starting(context.Background(), NewBootstrapContext())
	require.ErrorIs(t, err, refused)
	assert.Equal(t, []string{"a", "b"}, journal)
	assert.Len(t, listeners.Listeners(), 3)

	records := steps.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "application.starting", records[0].Name)
}

func TestRunListenersRecoverPanics(t *testing.T) {
	listeners := NewRunListeners(nil, nil, &funcListener{
		environmentPrepared: func(*env.Environment) error { panic("listener bug") },
	})

	err := listeners.EnvironmentPrepared(context.Background(), NewBootstrapContext(), env.New(env.KindStandard))
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "listener bug", panicErr.Value)
}

func TestRunListenersFailedNeverFails(t *testing.T) {
	core, logs := zapobserver.New(zapcore.WarnLevel)
	var seen []error
	boom := errors.New("boom")
	listeners := NewRunListeners(NewZapLogger(zap.New(core)), nil,
		&funcListener{failed: func(container.Container, error) error { return errors.New("ignored") }},
		&funcListener{failed: func(_ container.Container, err error) error {
			seen = append(seen, err)
			return nil
		}},
	)

	assert.NoError(t, listeners.Failed(context.Background(), nil, boom))
	assert.Equal(t, []error{boom}, seen)
	assert.Equal(t, 1, logs.FilterMessage("Error handling failed").Len())
}

func TestBaseRunListenerIsNoop(t *testing.T) {
	var l RunListener = BaseRunListener{}
	ctx := context.Background()
	c := container.NewStdContainer(nil)
	assert.NoError(t, l.Starting(ctx, NewBootstrapContext()))
	assert.NoError(t, l.EnvironmentPrepared(ctx, NewBootstrapContext(), env.New(env.KindStandard)))
	assert.NoError(t, l.ContextPrepared(ctx, c))
	assert.NoError(t, l.ContextLoaded(ctx, c))
	assert.NoError(t, l.Started(ctx, c, time.Second))
	assert.NoError(t, l.Ready(ctx, c, time.Second))
	assert.NoError(t, l.Failed(ctx, c, errors.New("x")))
}

func TestEventPublishingListenerFallsBackBeforeRefresh(t *testing.T) {
	f := newFixture(t)
	app := f.newApp()
	l, err := NewEventPublishingRunListener(app, []string{"a"})
	require.NoError(t, err)

	c := container.NewStdContainer(nil)
	require.NoError(t, l.Failed(context.Background(), c, errors.New("early")))
	assert.Equal(t, []string{EventTypeApplicationFailed}, f.events.Types())

	require.NoError(t, l.ContextLoaded(context.Background(), c))
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, l.Failed(context.Background(), c, errors.New("late")))
	assert.Equal(t, []string{
		EventTypeApplicationFailed,
		EventTypeApplicationContextLoaded,
		container.EventTypeContainerRefreshed,
		EventTypeApplicationFailed,
	}, f.events.Types())
}
