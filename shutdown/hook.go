// Package shutdown tracks live application containers and shutdown handlers
// and closes or runs them, most recent first, when the process is asked to
// terminate.
package shutdown

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"slices"
	"sync"
	"syscall"
)

// Static errors for shutdown package
var (
	ErrShutdownInProgress   = errors.New("shutdown in progress")
	ErrContainerStillActive = errors.New("cannot deregister an active container")
	ErrNilHandler           = errors.New("shutdown handler is nil")
	ErrHandlerNotComparable = errors.New("shutdown handler must be a comparable value")
)

// Container is what the hook closes.
type Container interface {
	Close() error
	IsActive() bool
}

// Handler is an action run after all containers are closed. Handlers are
// identified by value, so the dynamic type must be comparable; use
// NewHandler to wrap a function.
type Handler interface {
	Run()
}

// FuncHandler is a Handler backed by a function. Each call to NewHandler
// yields a distinct handler.
type FuncHandler struct {
	fn func()
}

// NewHandler wraps fn.
func NewHandler(fn func()) *FuncHandler { return &FuncHandler{fn: fn} }

// Run implements Handler.
func (h *FuncHandler) Run() { h.fn() }

// Logger is the structured key/value logger the hook writes to.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Hook closes registered containers and runs handlers on shutdown. It is
// safe for concurrent use; registration may race with a signal-triggered Run.
type Hook struct {
	mu         sync.Mutex
	containers []Container
	closed     []Container
	handlers   []Handler
	inProgress bool

	installEnabled bool
	installOnce    sync.Once
	signals        []os.Signal
	exit           func(code int)
	logger         Logger
}

// NewHook creates a hook that installs a signal handler on the first
// container registration.
func NewHook() *Hook {
	return &Hook{
		installEnabled: true,
		signals:        []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		exit:           os.Exit,
	}
}

var (
	defaultHook     *Hook
	defaultHookOnce sync.Once
)

// Default returns the process-wide hook.
func Default() *Hook {
	defaultHookOnce.Do(func() { defaultHook = NewHook() })
	return defaultHook
}

// SetLogger sets the logger used for handler and close failures.
func (h *Hook) SetLogger(l Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = l
}

// SetInstallEnabled controls whether registering a container installs the
// signal handler. Tests disable it.
func (h *Hook) SetInstallEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installEnabled = enabled
}

// RegisterContainer adds c to the containers closed on shutdown.
func (h *Hook) RegisterContainer(c Container) error {
	h.mu.Lock()
	install := h.installEnabled
	h.mu.Unlock()
	if install {
		h.Install()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inProgress {
		return ErrShutdownInProgress
	}
	if !slices.Contains(h.containers, c) {
		h.containers = append(h.containers, c)
	}
	return nil
}

// DeregisterFailedContainer forgets c, which must no longer be active.
func (h *Hook) DeregisterFailedContainer(c Container) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.IsActive() {
		return ErrContainerStillActive
	}
	h.containers = slices.DeleteFunc(h.containers, func(existing Container) bool { return existing == c })
	return nil
}

// IsRegistered reports whether c will be closed on shutdown.
func (h *Hook) IsRegistered(c Container) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.containers, c)
}

// Handlers returns the mutable handler set.
func (h *Hook) Handlers() *Handlers { return &Handlers{hook: h} }

// Handlers adds and removes shutdown handlers of a Hook.
type Handlers struct {
	hook *Hook
}

// Add registers handler. Adding a handler already present is a no-op.
func (hs *Handlers) Add(handler Handler) error {
	if err := checkHandler(handler); err != nil {
		return err
	}
	h := hs.hook
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inProgress {
		return ErrShutdownInProgress
	}
	if !slices.Contains(h.handlers, handler) {
		h.handlers = append(h.handlers, handler)
	}
	return nil
}

// Remove unregisters handler. Removing an unknown handler is a no-op.
func (hs *Handlers) Remove(handler Handler) error {
	if err := checkHandler(handler); err != nil {
		return err
	}
	h := hs.hook
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inProgress {
		return ErrShutdownInProgress
	}
	h.handlers = slices.DeleteFunc(h.handlers, func(existing Handler) bool { return existing == handler })
	return nil
}

// Len returns the number of registered handlers.
func (hs *Handlers) Len() int {
	hs.hook.mu.Lock()
	defer hs.hook.mu.Unlock()
	return len(hs.hook.handlers)
}

func checkHandler(handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if !reflect.TypeOf(handler).Comparable() {
		return fmt.Errorf("%w: %T", ErrHandlerNotComparable, handler)
	}
	return nil
}

// Run closes every registered container, most recently registered first,
// then runs every handler, most recently added first. Only the first call
// does anything; later registrations fail with ErrShutdownInProgress.
func (h *Hook) Run() {
	h.mu.Lock()
	if h.inProgress {
		h.mu.Unlock()
		return
	}
	h.inProgress = true
	containers := slices.Clone(h.containers)
	handlers := slices.Clone(h.handlers)
	logger := h.logger
	h.mu.Unlock()

	slices.Reverse(containers)
	for _, c := range containers {
		if err := c.Close(); err != nil && logger != nil {
			logger.Error("Failed to close container during shutdown", "error", err)
		}
		h.mu.Lock()
		h.closed = append(h.closed, c)
		h.mu.Unlock()
	}

	slices.Reverse(handlers)
	for _, handler := range handlers {
		runHandler(handler, logger)
	}
}

func runHandler(handler Handler, logger Logger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("Shutdown handler panicked", "handler", fmt.Sprintf("%T", handler), "panic", r)
		}
	}()
	handler.Run()
}

// Closed returns the containers closed by Run, in closing order.
func (h *Hook) Closed() []Container {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.closed)
}

// Install starts, at most once, a goroutine that runs the hook on SIGINT or
// SIGTERM and then exits the process with 128 plus the signal number.
func (h *Hook) Install() {
	h.installOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, h.signals...)
		go func() {
			sig := <-ch
			signal.Stop(ch)
			h.Run()
			code := 1
			if s, ok := sig.(syscall.Signal); ok {
				code = 128 + int(s)
			}
			h.exit(code)
		}()
	})
}
