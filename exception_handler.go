package launchpad

import (
	"errors"
	"slices"
	"sync"
)

// MainHandlerKey identifies the handler used by Main and by runs that do not
// choose another key.
const MainHandlerKey = "main"

// ExceptionHandler remembers which failures have been logged and the exit
// code recorded for them, so the outer process wrapper neither prints a
// failure twice nor loses its exit code.
type ExceptionHandler struct {
	mu       sync.Mutex
	logged   []error
	exitCode int
}

// RegisterLoggedError records that err has been reported.
func (h *ExceptionHandler) RegisterLoggedError(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logged = append(h.logged, err)
}

// IsLogged reports whether err, or any error it wraps, has been reported.
func (h *ExceptionHandler) IsLogged(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.ContainsFunc(h.logged, func(logged error) bool { return errors.Is(err, logged) })
}

// RegisterExitCode records the exit code of the failure being handled.
func (h *ExceptionHandler) RegisterExitCode(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exitCode = code
}

// ExitCode returns the last registered exit code.
func (h *ExceptionHandler) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// ExceptionHandlers is a registry of handlers by key.
type ExceptionHandlers struct {
	mu       sync.Mutex
	handlers map[string]*ExceptionHandler
}

// NewExceptionHandlers creates an empty registry.
func NewExceptionHandlers() *ExceptionHandlers {
	return &ExceptionHandlers{handlers: make(map[string]*ExceptionHandler)}
}

var (
	defaultHandlers     *ExceptionHandlers
	defaultHandlersOnce sync.Once
)

// DefaultExceptionHandlers returns the process-wide registry.
func DefaultExceptionHandlers() *ExceptionHandlers {
	defaultHandlersOnce.Do(func() { defaultHandlers = NewExceptionHandlers() })
	return defaultHandlers
}

// For returns the handler for key, creating it on first use.
func (hs *ExceptionHandlers) For(key string) *ExceptionHandler {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	h, ok := hs.handlers[key]
	if !ok {
		h = &ExceptionHandler{}
		hs.handlers[key] = h
	}
	return h
}

func (a *Application) exceptionHandler() *ExceptionHandler {
	if a.handlers == nil {
		return nil
	}
	return a.handlers.For(MainHandlerKey)
}
