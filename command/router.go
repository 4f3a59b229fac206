// Package command parses chat commands and dispatches them to handlers.
//
// A command is a message whose first token starts with the prefix. The name is
// the rest of that token, matched case-insensitively; the remainder is the
// rest of the message, trimmed. Handlers return the lines to send and never
// send anything themselves.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/kawbot/telemetry"
)

// ErrUsage marks malformed command arguments.
var ErrUsage = errors.New("invalid usage")

// Request is one command invocation.
type Request struct {
	Channel string
	Sender  string
	Name    string
	Args    string
}

// Handler produces the reply lines for a command.
type Handler interface {
	Handle(ctx context.Context, req Request) []string
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) []string

func (f HandlerFunc) Handle(ctx context.Context, req Request) []string { return f(ctx, req) }

// Parse splits body into a command name and its remainder. ok is false when
// body does not start with prefix (after leading whitespace) or the name is empty.
func Parse(prefix, body string) (name, rest string, ok bool) {
	s := strings.TrimLeftFunc(body, unicode.IsSpace)
	if prefix == "" || !strings.HasPrefix(s, prefix) {
		return "", "", false
	}
	s = s[len(prefix):]
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		end = len(s)
	}
	name = strings.ToLower(s[:end])
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(s[end:]), true
}

// Router maps command names to handlers.
type Router struct {
	prefix   string
	timeout  time.Duration
	handlers map[string]Handler
}

// NewRouter returns an empty router. timeout bounds each dispatch; zero means no bound.
func NewRouter(prefix string, timeout time.Duration) *Router {
	return &Router{prefix: prefix, timeout: timeout, handlers: map[string]Handler{}}
}

// Register binds name (case-insensitive) to h, replacing any previous binding.
func (r *Router) Register(name string, h Handler) {
	r.handlers[strings.ToLower(name)] = h
}

// Names returns the registered command names, sorted.
func (r *Router) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// UnknownLine is the reply for a name with no handler.
func (r *Router) UnknownLine() string {
	return fmt.Sprintf(" >> Invalid command. type in %shelp for assistance.", r.prefix)
}

// errorLine is sent when a handler panics or returns nothing.
const errorLine = " >> Something went wrong. Please try again!"

// Dispatch runs the handler for name and returns its lines. It always returns
// at least one line.
func (r *Router) Dispatch(ctx context.Context, channel, sender, name, args string) (lines []string) {
	name = strings.ToLower(name)
	h, ok := r.handlers[name]
	if !ok {
		telemetry.Inc(telemetry.UnknownCommands)
		return []string{r.UnknownLine()}
	}
	telemetry.IncCommand(name)

	ctx, span := telemetry.StartSpan(ctx, "command.dispatch", attribute.String("command", name), attribute.String("channel", channel))
	defer span.End()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("command %s panicked: %v", name, rec)
			telemetry.RecordError(span, err)
			telemetry.LoggerWithCorr(ctx).Error("command panic", slog.String("command", name), slog.Any("err", err))
			lines = []string{errorLine}
		}
	}()

	req := Request{Channel: channel, Sender: sender, Name: name, Args: args}
	telemetry.TimeFunc(telemetry.CommandDuration, func() {
		lines = h.Handle(ctx, req)
	})
	if len(lines) == 0 {
		lines = []string{errorLine}
	}
	return lines
}
