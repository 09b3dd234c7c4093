package launchpad

import (
	"context"
	"fmt"
	"slices"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/env"
)

// EventPublishingRunListener turns run notifications into CloudEvents for the
// application's observers. Until the container is loaded the events go
// through the listener's own multicaster; from then on the observers are
// registered with the container and events are published there.
type EventPublishingRunListener struct {
	source    string
	args      []string
	observers []Observer
	initial   container.Multicaster
}

// NewEventPublishingRunListener creates the listener for one run of app.
func NewEventPublishingRunListener(app *Application, args []string) (*EventPublishingRunListener, error) {
	l := &EventPublishingRunListener{
		source:    app.EventSource(),
		args:      slices.Clone(args),
		observers: app.Observers(),
	}
	for _, o := range l.observers {
		if err := l.initial.Register(o); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Order places the listener ahead of unordered listeners.
func (l *EventPublishingRunListener) Order() int { return 0 }

// Starting implements RunListener.
func (l *EventPublishingRunListener) Starting(ctx context.Context, _ BootstrapContext) error {
	return l.initial.Publish(ctx, l.event(EventTypeApplicationStarting, map[string]any{
		"args": l.args,
	}))
}

// EnvironmentPrepared implements RunListener.
func (l *EventPublishingRunListener) EnvironmentPrepared(ctx context.Context, _ BootstrapContext, e *env.Environment) error {
	return l.initial.Publish(ctx, l.event(EventTypeApplicationEnvironmentPrepared, map[string]any{
		"activeProfiles": e.ActiveProfiles(),
		"sources":        e.Sources().Names(),
	}))
}

// ContextPrepared implements RunListener.
func (l *EventPublishingRunListener) ContextPrepared(ctx context.Context, c container.Container) error {
	return l.initial.Publish(ctx, l.event(EventTypeApplicationContextPrepared, containerData(c)))
}

// ContextLoaded implements RunListener.
func (l *EventPublishingRunListener) ContextLoaded(ctx context.Context, c container.Container) error {
	for _, o := range l.observers {
		if err := c.AddEventListener(o); err != nil {
			return fmt.Errorf("failed to register observer %s: %w", o.ObserverID(), err)
		}
	}
	return l.initial.Publish(ctx, l.event(EventTypeApplicationContextLoaded, containerData(c)))
}

// Started implements RunListener.
func (l *EventPublishingRunListener) Started(ctx context.Context, c container.Container, elapsed time.Duration) error {
	return c.PublishEvent(ctx, l.event(EventTypeApplicationStarted, elapsedData(c, elapsed)))
}

// Ready implements RunListener.
func (l *EventPublishingRunListener) Ready(ctx context.Context, c container.Container, elapsed time.Duration) error {
	return c.PublishEvent(ctx, l.event(EventTypeApplicationReady, elapsedData(c, elapsed)))
}

// Failed implements RunListener. The event goes through the container only
// when it is active.
func (l *EventPublishingRunListener) Failed(ctx context.Context, c container.Container, err error) error {
	data := map[string]any{"error": err.Error()}
	event := l.event(EventTypeApplicationFailed, data)
	if c != nil && c.IsActive() {
		return c.PublishEvent(ctx, event)
	}
	return l.initial.Publish(ctx, event)
}

func (l *EventPublishingRunListener) event(eventType string, data map[string]any) cloudevents.Event {
	return NewCloudEvent(eventType, l.source, data, nil)
}

func containerData(c container.Container) map[string]any {
	return map[string]any{"container": fmt.Sprintf("%T", c)}
}

func elapsedData(c container.Container, elapsed time.Duration) map[string]any {
	data := containerData(c)
	data["elapsed"] = elapsed.String()
	data["elapsedMillis"] = elapsed.Milliseconds()
	return data
}
