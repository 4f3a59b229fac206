package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/kawbot/bot"
)

// Handler receives every inbound chat message.
type Handler func(ctx context.Context, in bot.Inbound)

// Client is the Twitch IRC transport.
type Client struct {
	channels []string
	irc      *twitch.Client
}

// NewClient builds a client for username joined to channels. A missing "oauth:" prefix is added to token.
func NewClient(username, token string, channels []string) *Client {
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return &Client{channels: channels, irc: twitch.NewClient(username, token)}
}

// Channels returns the joined channels.
func (c *Client) Channels() []string {
	out := make([]string, len(c.channels))
	copy(out, c.channels)
	return out
}

// Send says text in channel.
func (c *Client) Send(ctx context.Context, channel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.irc.Say(channel, text)
	return nil
}

// Run connects, joins the channels and feeds each private message to handle
// until ctx is canceled or the connection fails.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	c.irc.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		at := msg.Time
		if at.IsZero() {
			at = time.Now()
		}
		handle(ctx, bot.Inbound{
			Channel: strings.TrimPrefix(msg.Channel, "#"),
			Sender:  msg.User.Name,
			Body:    msg.Message,
			At:      at.UTC(),
		})
	})
	c.irc.OnConnect(func() {
		slog.Info("twitch chat connected", slog.Any("channels", c.channels))
	})
	c.irc.OnReconnectMessage(func(twitch.ReconnectMessage) {
		slog.Info("twitch chat reconnect requested")
	})
	c.irc.Join(c.channels...)

	errCh := make(chan error, 1)
	go func() { errCh <- c.irc.Connect() }()

	select {
	case <-ctx.Done():
		if err := c.irc.Disconnect(); err != nil {
			slog.Debug("twitch chat disconnect", slog.Any("err", err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, twitch.ErrClientDisconnected) {
			return nil
		}
		return err
	}
}
