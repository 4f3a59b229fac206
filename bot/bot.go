// Package bot wires inbound chat messages to the history log and the command
// router, and announces newly-live streamers to every joined channel.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/kawbot/command"
	"github.com/onnwee/kawbot/history"
	"github.com/onnwee/kawbot/live"
	"github.com/onnwee/kawbot/telemetry"
)

// Transport sends text to chat channels.
type Transport interface {
	Send(ctx context.Context, channel, text string) error
	Channels() []string
}

// Inbound is one message observed on the transport.
type Inbound struct {
	Channel string
	Sender  string
	Body    string
	At      time.Time
}

// Power is the shared on/off flag. While off, only the power command is answered
// and the poller keeps its snapshot current without announcing.
type Power struct {
	mu sync.RWMutex
	on bool
}

func NewPower(on bool) *Power {
	telemetry.UpdatePowerGauge(on)
	return &Power{on: on}
}

func (p *Power) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.on
}

func (p *Power) Set(on bool) {
	p.mu.Lock()
	p.on = on
	p.mu.Unlock()
	telemetry.UpdatePowerGauge(on)
}

// Dispatcher runs a parsed command.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel, sender, name, args string) []string
}

// Bot is the orchestrator between the transport, the log and the router.
type Bot struct {
	Self      string
	Prefix    string
	Transport Transport
	Log       history.Store
	Router    Dispatcher
	Power     *Power
}

// HandleMessage logs in and replies to it when it is a command. Messages sent by
// the bot itself are not logged but may still be commands.
func (b *Bot) HandleMessage(ctx context.Context, in Inbound) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "bot"), slog.String("channel", in.Channel))

	if !strings.EqualFold(in.Sender, b.Self) {
		if _, err := b.Log.Append(ctx, history.Message{Channel: in.Channel, Sender: in.Sender, Body: in.Body, At: in.At}); err != nil {
			telemetry.Inc(telemetry.LogWriteFailures)
			log.Error("history append failed; reply suppressed", slog.Any("err", err))
			return
		}
		telemetry.Inc(telemetry.MessagesLogged)
	}

	name, args, ok := command.Parse(b.Prefix, in.Body)
	if !ok {
		return
	}
	if name != "power" && !b.Power.Enabled() {
		log.Debug("power off; ignoring command", slog.String("command", name))
		return
	}
	log.Debug("dispatching command", slog.String("command", name), slog.String("sender", in.Sender))
	for _, line := range b.Router.Dispatch(ctx, in.Channel, in.Sender, name, args) {
		if err := b.Transport.Send(ctx, in.Channel, line); err != nil {
			log.Warn("send failed", slog.Any("err", err))
			return
		}
	}
}

// NotificationText is the announcement for a newly-live streamer.
func NotificationText(s live.Streamer) string {
	return fmt.Sprintf("%s's stream is now online! - https://www.twitch.tv/%s", s.DisplayName, s.Key)
}

// Notify announces s on every joined channel. It returns the joined errors of failed sends.
func (b *Bot) Notify(ctx context.Context, s live.Streamer) error {
	text := NotificationText(s)
	var errs []error
	for _, ch := range b.Transport.Channels() {
		if err := b.Transport.Send(ctx, ch, text); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}
