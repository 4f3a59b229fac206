package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/kawbot/bot"
)

// ConsoleChannel is the single channel of the console transport.
const ConsoleChannel = "console"

// Console reads messages from in and prints replies to out.
type Console struct {
	Sender string

	in  io.Reader
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(in io.Reader, out io.Writer, sender string) *Console {
	if sender == "" {
		sender = "console"
	}
	return &Console{Sender: sender, in: in, out: out}
}

func (c *Console) Channels() []string { return []string{ConsoleChannel} }

func (c *Console) Send(_ context.Context, channel, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, text)
	return err
}

// Run feeds each non-blank input line to handle until EOF or ctx is canceled.
func (c *Console) Run(ctx context.Context, handle Handler) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- sc.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			handle(ctx, bot.Inbound{Channel: ConsoleChannel, Sender: c.Sender, Body: line, At: time.Now().UTC()})
		}
	}
}
