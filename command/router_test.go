package command

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		body     string
		wantName string
		wantRest string
		wantOK   bool
	}{
		{"bare command", "%", "%help", "help", "", true},
		{"mixed case name", "%", "%HeLp me", "help", "me", true},
		{"remainder trimmed", "%", "%weather   Paris, France  ", "weather", "Paris, France", true},
		{"leading whitespace", "%", "   %time", "time", "", true},
		{"tab separator", "%", "%trigger\tboom", "trigger", "boom", true},
		{"inner spacing kept", "%", "%trigger a  b", "trigger", "a  b", true},
		{"multi-char prefix", "!!", "!!live now", "live", "now", true},
		{"no prefix", "%", "hello %help", "", "", false},
		{"prefix alone", "%", "%", "", "", false},
		{"prefix then space", "%", "% help", "", "", false},
		{"empty body", "%", "", "", "", false},
		{"unicode remainder", "%", "%trigger héllo wörld", "trigger", "héllo wörld", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, rest, ok := Parse(tt.prefix, tt.body)
			if name != tt.wantName || rest != tt.wantRest || ok != tt.wantOK {
				t.Errorf("Parse(%q, %q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.prefix, tt.body, name, rest, ok, tt.wantName, tt.wantRest, tt.wantOK)
			}
		})
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	r := NewRouter("%", time.Second)
	r.Register("known", fixed("ok"))
	want := []string{" >> Invalid command. type in %help for assistance."}
	for _, args := range []string{"", "anything at all", "%help"} {
		if got := r.Dispatch(context.Background(), "c", "u", "foo", args); !reflect.DeepEqual(got, want) {
			t.Errorf("Dispatch(foo, %q) = %q, want %q", args, got, want)
		}
	}
}

func TestDispatchCaseInsensitive(t *testing.T) {
	r := NewRouter("%", 0)
	r.Register("Ping", fixed("pong"))
	for _, name := range []string{"ping", "PING", "pInG"} {
		if got := r.Dispatch(context.Background(), "c", "u", name, ""); !reflect.DeepEqual(got, []string{"pong"}) {
			t.Errorf("Dispatch(%s) = %q", name, got)
		}
	}
}

func TestDispatchPassesRequest(t *testing.T) {
	r := NewRouter("%", 0)
	var got Request
	r.Register("echo", HandlerFunc(func(_ context.Context, req Request) []string {
		got = req
		return []string{"x"}
	}))
	r.Dispatch(context.Background(), "chan", "alice", "ECHO", "a b")
	want := Request{Channel: "chan", Sender: "alice", Name: "echo", Args: "a b"}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRouter("%", 0)
	r.Register("boom", HandlerFunc(func(context.Context, Request) []string { panic("kaboom") }))
	got := r.Dispatch(context.Background(), "c", "u", "boom", "")
	if len(got) != 1 || got[0] != errorLine {
		t.Errorf("Dispatch(boom) = %q, want error line", got)
	}
}

func TestDispatchNeverEmpty(t *testing.T) {
	r := NewRouter("%", 0)
	r.Register("quiet", HandlerFunc(func(context.Context, Request) []string { return nil }))
	if got := r.Dispatch(context.Background(), "c", "u", "quiet", ""); len(got) == 0 {
		t.Error("Dispatch returned no lines")
	}
}

func TestDispatchAppliesTimeout(t *testing.T) {
	r := NewRouter("%", 10*time.Millisecond)
	r.Register("slow", HandlerFunc(func(ctx context.Context, _ Request) []string {
		select {
		case <-ctx.Done():
			return []string{"timed out"}
		case <-time.After(5 * time.Second):
			return []string{"finished"}
		}
	}))
	if got := r.Dispatch(context.Background(), "c", "u", "slow", ""); !reflect.DeepEqual(got, []string{"timed out"}) {
		t.Errorf("Dispatch(slow) = %q", got)
	}
}

func TestNames(t *testing.T) {
	r := NewRouter("%", 0)
	r.Register("b", fixed("b"))
	r.Register("A", fixed("a"))
	if got := r.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestUnknownLineUsesPrefix(t *testing.T) {
	r := NewRouter("!", 0)
	if got := r.UnknownLine(); got != " >> Invalid command. type in !help for assistance." {
		t.Errorf("UnknownLine() = %q", got)
	}
}
