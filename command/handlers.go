package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/kawbot/content"
	"github.com/onnwee/kawbot/history"
	"github.com/onnwee/kawbot/live"
	"github.com/onnwee/kawbot/streamers"
	"github.com/onnwee/kawbot/telemetry"
)

// Registry is the streamer registry used by addstreamer, removestreamer and streamers.
type Registry interface {
	Add(ctx context.Context, raw string) (streamers.Entry, error)
	Remove(ctx context.Context, raw string) (bool, error)
	List(ctx context.Context) ([]streamers.Entry, error)
}

// Weather looks up the current temperature.
type Weather interface {
	Temperature(ctx context.Context, city, country string) (content.Reading, error)
}

// Cards describes Hearthstone cards.
type Cards interface {
	Describe(ctx context.Context, name string) (string, error)
}

// Answerer is the 8-ball.
type Answerer interface {
	Answer() string
}

// Board stores the message of the day.
type Board interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, msg string) (string, error)
}

// PowerSwitch is the shared on/off flag.
type PowerSwitch interface {
	Enabled() bool
	Set(on bool)
}

// Deps are the collaborators of the built-in commands.
type Deps struct {
	Prefix   string
	Location *time.Location
	Now      func() time.Time

	Ball     Answerer
	Registry Registry
	Live     live.Source
	Weather  Weather
	Cards    Cards
	Board    Board
	Power    PowerSwitch
	History  history.Store
	Cursors  history.CursorStore
	Help     []string

	FrequencyLimit int
	HistoryLimit   int
}

const (
	timeLayout  = "2006-01-02 15:04 MST"
	stampLayout = "2006-01-02 15:04:05"
	twitchURL   = "https://www.twitch.tv/"
)

// Register binds the built-in commands to r.
func Register(r *Router, d Deps) {
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &builtins{Deps: d}
	for name, fn := range map[string]HandlerFunc{
		"8ball":          h.eightBall,
		"addstreamer":    h.addStreamer,
		"code":           fixed(" >> It's time to CODE."),
		"csgo":           repeat("GOGOGOGOGOGGO", 4),
		"frequency":      h.frequency,
		"help":           h.help,
		"history":        h.history,
		"hscard":         h.hsCard,
		"kawkaw":         repeat("KAW AWH KAW AWH KAW AWH", 4),
		"live":           h.live,
		"message":        h.message,
		"power":          h.power,
		"premade":        fixed(" >> Kaw Kaw KAW, calling all early birds"),
		"removestreamer": h.removeStreamer,
		"streamers":      h.streamers,
		"time":           h.time,
		"trigger":        h.trigger,
		"weather":        h.weather,
		"wubwub":         repeat("WUBWUBWUBWUB", 4),
	} {
		r.Register(name, fn)
	}
}

func fixed(line string) HandlerFunc {
	return func(context.Context, Request) []string { return []string{line} }
}

func repeat(line string, n int) HandlerFunc {
	return func(context.Context, Request) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = line
		}
		return out
	}
}

type builtins struct {
	Deps
}

func (b *builtins) usage(format string) []string {
	return []string{fmt.Sprintf(format, b.Prefix)}
}

func (b *builtins) eightBall(context.Context, Request) []string {
	if b.Ball == nil {
		return []string{" >> Ask again later."}
	}
	return []string{" >> " + b.Ball.Answer() + "."}
}

func (b *builtins) help(context.Context, Request) []string {
	out := make([]string, 0, len(b.Help))
	for _, l := range b.Help {
		out = append(out, strings.ReplaceAll(l, "%", b.Prefix))
	}
	if len(out) == 0 {
		out = append(out, fmt.Sprintf(" >> Commands: %shelp", b.Prefix))
	}
	return out
}

func (b *builtins) addStreamer(ctx context.Context, req Request) []string {
	fields := strings.Fields(req.Args)
	if len(fields) == 0 {
		return b.usage(" >> Invalid format.  %saddstreamer [streamer_channel]")
	}
	key := fields[0]
	e, err := b.Registry.Add(ctx, key)
	switch {
	case err == nil:
		return []string{" >> " + e.DisplayName + " added to list."}
	case errors.Is(err, streamers.ErrAlreadyTracked):
		return []string{" >> " + e.DisplayName + " is already on the list."}
	case errors.Is(err, streamers.ErrUnknownChannel):
		return []string{" >> " + key + " does not exist."}
	default:
		telemetry.LoggerWithCorr(ctx).Warn("addstreamer failed", slog.String("streamer", key), slog.Any("err", err))
		return []string{" >> Could not add " + key + ". Please try again later!"}
	}
}

func (b *builtins) removeStreamer(ctx context.Context, req Request) []string {
	fields := strings.Fields(req.Args)
	if len(fields) == 0 {
		return b.usage(" >> invalid format.  %sremovestreamer [streamer_channel]")
	}
	key := fields[0]
	ok, err := b.Registry.Remove(ctx, key)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("removestreamer failed", slog.String("streamer", key), slog.Any("err", err))
		return []string{" >> Could not remove " + key + ". Please try again later!"}
	}
	if !ok {
		return []string{" >> " + key + " was not on the list."}
	}
	return []string{" >> " + key + " removed from the list."}
}

func (b *builtins) streamers(ctx context.Context, _ Request) []string {
	list, err := b.Registry.List(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("streamers list failed", slog.Any("err", err))
		return []string{" >> Could not load the streamer list."}
	}
	if len(list) == 0 {
		return []string{" >> No streamers are being tracked."}
	}
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.DisplayName)
	}
	return []string{" >> " + strings.Join(names, ", ")}
}

func (b *builtins) live(ctx context.Context, _ Request) []string {
	if b.Live == nil {
		return []string{" >> Live status is not configured."}
	}
	up, err := b.Live.FetchLive(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("live lookup failed", slog.Any("err", err))
		return []string{" >> Live status is unavailable right now."}
	}
	if len(up) == 0 {
		return []string{"No streamers are up! D:"}
	}
	out := make([]string, 0, len(up))
	for _, s := range up {
		out = append(out, fmt.Sprintf("%s's stream is up!  %s%s", s.DisplayName, twitchURL, s.Key))
	}
	return out
}

func (b *builtins) hsCard(ctx context.Context, req Request) []string {
	if b.Cards == nil {
		return []string{" >> [HSCard] Cannot be found!  Please try again!"}
	}
	desc, err := b.Cards.Describe(ctx, req.Args)
	switch {
	case err == nil:
		return []string{" >> [HSCard] " + desc}
	case errors.Is(err, content.ErrNotFound):
		return []string{" >> [HSCard] Cannot be found!  Please try again!"}
	default:
		telemetry.LoggerWithCorr(ctx).Warn("hscard lookup failed", slog.Any("err", err))
		return []string{" >> [HSCard] Lookup failed. Please try again later!"}
	}
}

func (b *builtins) weather(ctx context.Context, req Request) []string {
	parts := strings.Split(req.Args, ",")
	if len(parts) != 2 {
		return b.usage(" >> Invalid format.  %sweather [city],[country]")
	}
	city, country := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if city == "" || country == "" {
		return b.usage(" >> Invalid format.  %sweather [city],[country]")
	}
	if b.Weather == nil {
		return []string{" >> [Weather] Weather lookup is not configured."}
	}
	r, err := b.Weather.Temperature(ctx, city, country)
	switch {
	case err == nil:
		line := fmt.Sprintf(" >> [Weather] %s, %s: %.1f%s", r.City, r.Country, r.Temp, r.Symbol())
		if r.Description != "" {
			line += ", " + r.Description
		}
		return []string{line}
	case errors.Is(err, content.ErrNotFound):
		return []string{fmt.Sprintf(" >> [Weather] Cannot find %s, %s!  Please try again!", city, country)}
	default:
		telemetry.LoggerWithCorr(ctx).Warn("weather lookup failed", slog.Any("err", err))
		return []string{" >> [Weather] Error..."}
	}
}

func (b *builtins) message(ctx context.Context, req Request) []string {
	if b.Board == nil {
		return []string{" >> Today's message is: nothing yet"}
	}
	if req.Args != "" {
		msg, err := b.Board.Set(ctx, req.Args)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("motd update failed", slog.Any("err", err))
			return []string{" >> Could not update today's message."}
		}
		return []string{" >> Today's message is: " + msg}
	}
	msg, ok, err := b.Board.Get(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("motd read failed", slog.Any("err", err))
		return []string{" >> Could not load today's message."}
	}
	if !ok {
		msg = "nothing yet"
	}
	return []string{" >> Today's message is: " + msg}
}

func (b *builtins) power(_ context.Context, req Request) []string {
	switch strings.ToLower(req.Args) {
	case "start":
		b.Power.Set(true)
		return []string{" >> Hello World! I am back online!"}
	case "stop":
		b.Power.Set(false)
		return []string{" >> Goodbye. Zzz"}
	default:
		return b.usage(" >> Invalid format.  %spower [start|stop]")
	}
}

func (b *builtins) time(context.Context, Request) []string {
	return []string{" >> " + b.Now().In(b.Location).Format(timeLayout)}
}

func (b *builtins) trigger(_ context.Context, req Request) []string {
	return []string{" >> [Trigger] " + req.Args}
}

func (b *builtins) history(ctx context.Context, req Request) []string {
	res, err := b.History.Query(ctx, req.Channel, req.Args)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("history query failed", slog.Any("err", err))
		return []string{" >>> [History] Error..."}
	}
	shown := tail(res.Messages, b.HistoryLimit)
	out := []string{fmt.Sprintf(" >> [History] Retrieved %d messages, Showing %d", res.Total, len(shown))}
	return append(out, b.render(shown)...)
}

func (b *builtins) frequency(ctx context.Context, req Request) []string {
	log := telemetry.LoggerWithCorr(ctx)
	since, err := b.Cursors.Load(ctx, req.Channel, req.Args)
	if err != nil {
		log.Warn("frequency cursor load failed", slog.Any("err", err))
		return []string{" >>> [History] Error..."}
	}
	res, err := b.History.QueryFrequency(ctx, req.Channel, req.Args, since)
	if err != nil {
		log.Warn("frequency query failed", slog.Any("err", err))
		return []string{" >>> [History] Error..."}
	}
	if err := b.Cursors.Save(ctx, req.Channel, req.Args, res.Next); err != nil {
		log.Warn("frequency cursor save failed", slog.Any("err", err))
	}
	from := "the beginning"
	if res.Since != nil {
		from = res.Since.At.In(b.Location).Format(stampLayout)
	}
	shown := tail(res.Messages, b.FrequencyLimit)
	out := []string{fmt.Sprintf(" >> [History] Query returned %d messages from %s, Showing %d", len(res.Messages), from, len(shown))}
	return append(out, b.render(shown)...)
}

func (b *builtins) render(msgs []history.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fmt.Sprintf(" >>> [%s] %s: %s", m.At.In(b.Location).Format(stampLayout), m.Sender, m.Body))
	}
	return out
}

// tail returns the last n messages.
func tail(msgs []history.Message, n int) []history.Message {
	if n < 0 {
		n = 0
	}
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}
