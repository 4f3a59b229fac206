package live

import (
	"context"
	"strings"

	"github.com/onnwee/kawbot/streamers"
	"github.com/onnwee/kawbot/twitchapi"
)

// Registry lists the channels to check.
type Registry interface {
	List(ctx context.Context) ([]streamers.Entry, error)
}

// StreamLister is the Helix call used by HelixSource.
type StreamLister interface {
	GetStreams(ctx context.Context, logins ...string) ([]twitchapi.Stream, error)
}

// HelixSource reports which tracked channels are live according to Helix.
type HelixSource struct {
	Registry Registry
	Streams  StreamLister
}

func (h *HelixSource) FetchLive(ctx context.Context) ([]Streamer, error) {
	entries, err := h.Registry.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	names := make(map[string]string, len(entries))
	logins := make([]string, 0, len(entries))
	for _, e := range entries {
		names[e.Key] = e.DisplayName
		logins = append(logins, e.Key)
	}
	streams, err := h.Streams.GetStreams(ctx, logins...)
	if err != nil {
		return nil, err
	}
	out := make([]Streamer, 0, len(streams))
	for _, s := range streams {
		if s.Type != "" && s.Type != "live" {
			continue
		}
		key := strings.ToLower(s.UserLogin)
		display := s.UserName
		if display == "" {
			display = names[key]
		}
		if display == "" {
			display = key
		}
		out = append(out, Streamer{Key: key, DisplayName: display, Title: s.Title, StartedAt: s.StartedAt})
	}
	return out, nil
}
