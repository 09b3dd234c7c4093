package launchpad

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/launchpad/container"
)

// Observer receives the CloudEvents published while an application runs.
// Observers added with WithObservers see the early lifecycle events from the
// launcher and, once the container is loaded, every event the container
// publishes.
type Observer = container.Observer

// EventType constants for application lifecycle events.
// These follow CloudEvents naming conventions using reverse domain notation.
const (
	EventTypeApplicationStarting            = "com.launchpad.application.starting"
	EventTypeApplicationEnvironmentPrepared = "com.launchpad.application.environment-prepared"
	EventTypeApplicationContextPrepared     = "com.launchpad.application.context-prepared"
	EventTypeApplicationContextLoaded       = "com.launchpad.application.context-loaded"
	EventTypeApplicationStarted             = "com.launchpad.application.started"
	EventTypeApplicationReady               = "com.launchpad.application.ready"
	EventTypeApplicationFailed              = "com.launchpad.application.failed"
	EventTypeExitCode                       = "com.launchpad.application.exit-code"
)

// NewObserver creates an observer with the given id backed by handler.
func NewObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return container.NewFunctionalObserver(id, handler)
}

// NewCloudEvent creates a CloudEvent with a time-ordered id.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	return container.NewCloudEvent(eventType, source, data, metadata)
}
