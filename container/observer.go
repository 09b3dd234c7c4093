package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer is notified of CloudEvents published by a container or launcher.
type Observer interface {
	// OnEvent handles event. Returned errors are collected by the publisher.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// FunctionalObserver adapts a function to Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements Observer.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements Observer.
func (f *FunctionalObserver) ObserverID() string { return f.id }

// NewCloudEvent creates a CloudEvent with a time-ordered id. Metadata keys
// become event extensions.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

type observerRegistration struct {
	observer   Observer
	eventTypes map[string]bool
}

// Multicaster delivers events synchronously to registered observers in
// registration order. Registering an id again replaces the earlier observer
// in place.
type Multicaster struct {
	mu            sync.RWMutex
	registrations []*observerRegistration
}

// Register adds o, receiving only eventTypes when any are given.
func (m *Multicaster) Register(o Observer, eventTypes ...string) error {
	if o == nil {
		return ErrObserverNil
	}
	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	reg := &observerRegistration{observer: o, eventTypes: types}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.registrations {
		if r.observer.ObserverID() == o.ObserverID() {
			m.registrations[i] = reg
			return nil
		}
	}
	m.registrations = append(m.registrations, reg)
	return nil
}

// Unregister removes the observer with o's id. It is a no-op when absent.
func (m *Multicaster) Unregister(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.registrations {
		if r.observer.ObserverID() == o.ObserverID() {
			m.registrations = append(m.registrations[:i], m.registrations[i+1:]...)
			return
		}
	}
}

// Observers returns the registered observers in delivery order.
func (m *Multicaster) Observers() []Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Observer, len(m.registrations))
	for i, r := range m.registrations {
		out[i] = r.observer
	}
	return out
}

// Publish validates event and hands it to every interested observer. Every
// observer is called even when an earlier one fails; the failures, including
// recovered panics, are joined into the returned error.
func (m *Multicaster) Publish(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	m.mu.RLock()
	regs := append([]*observerRegistration(nil), m.registrations...)
	m.mu.RUnlock()

	var errs []error
	for _, r := range regs {
		if len(r.eventTypes) > 0 && !r.eventTypes[event.Type()] {
			continue
		}
		if err := notify(ctx, r.observer, event); err != nil {
			errs = append(errs, fmt.Errorf("observer %s: %w", r.observer.ObserverID(), err))
		}
	}
	return errors.Join(errs...)
}

func notify(ctx context.Context, o Observer, event cloudevents.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s: %v", event.Type(), r)
		}
	}()
	return o.OnEvent(ctx, event)
}
