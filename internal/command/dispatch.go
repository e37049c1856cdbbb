// Package command maps named external commands onto the sound-system
// components.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Params holds the KEY=VALUE parameters of a command invocation.
// Keys are case-sensitive tokens.
type Params map[string]string

// Get returns the value for key, or the empty string.
func (p Params) Get(key string) string {
	return p[key]
}

// GetInt returns the integer value for key, or def when absent or
// malformed.
func (p Params) GetInt(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Handler executes one named command and returns its user-facing response.
type Handler func(ctx context.Context, params Params) (string, error)

// Dispatcher routes command lines to registered handlers.
type Dispatcher struct {
	logger   *slog.Logger
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register binds a command name to a handler. Registering a duplicate name
// panics; command sets are wired once at startup.
func (d *Dispatcher) Register(name string, h Handler) {
	if _, exists := d.handlers[name]; exists {
		panic(fmt.Sprintf("command %q registered twice", name))
	}
	d.handlers[name] = h
}

// Dispatch parses a command line ("PLAY_SOUND SOUND=done NOW=1") and
// invokes the matching handler.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command")
	}

	name := fields[0]
	if _, ok := d.handlers[name]; !ok {
		return "", fmt.Errorf("unknown command %q", name)
	}

	params := make(Params, len(fields)-1)
	for _, field := range fields[1:] {
		key, value, found := strings.Cut(field, "=")
		if !found {
			return "", fmt.Errorf("malformed parameter %q: expected KEY=VALUE", field)
		}
		params[key] = value
	}

	return d.Call(ctx, name, params)
}

// Call invokes a named handler with already-structured parameters, bypassing
// command-line parsing. Callers holding raw values (the HTTP API) use this so
// value contents never reparse as extra parameters.
func (d *Dispatcher) Call(ctx context.Context, name string, params Params) (string, error) {
	h, ok := d.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown command %q", name)
	}
	if params == nil {
		params = Params{}
	}

	d.logger.Debug("dispatching command", "command", name, "params", params)
	resp, err := h(ctx, params)
	if err != nil {
		d.logger.Warn("command failed", "command", name, "error", err)
		return "", err
	}
	return resp, nil
}

// Commands returns the registered command names.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}
