package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

var base = time.Date(2024, 10, 15, 14, 30, 0, 0, time.UTC)

func appendAll(t *testing.T, s Store, channel string, bodies ...string) []Message {
	t.Helper()
	out := make([]Message, 0, len(bodies))
	for i, b := range bodies {
		m, err := s.Append(context.Background(), Message{
			Channel: channel,
			Sender:  fmt.Sprintf("user%d", i),
			Body:    b,
			At:      base.Add(time.Duration(len(out)) * time.Second),
		})
		if err != nil {
			t.Fatalf("Append(%q): %v", b, err)
		}
		out = append(out, m)
	}
	return out
}

func bodies(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMemoryStore_Query(t *testing.T) {
	s := NewMemoryStore()
	appendAll(t, s, "general", "hello world", "Hello again", "", "say hello")
	appendAll(t, s, "other", "hello from elsewhere")

	tests := []struct {
		name   string
		substr string
		want   []string
	}{
		{"substring in order", "hello", []string{"hello world", "say hello"}},
		{"case sensitive", "Hello", []string{"Hello again"}},
		{"empty predicate matches all", "", []string{"hello world", "Hello again", "", "say hello"}},
		{"no match", "bye", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Query(context.Background(), "general", tt.substr)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if got := bodies(res.Messages); !equalStrings(got, tt.want) {
				t.Errorf("Query(%q) = %q, want %q", tt.substr, got, tt.want)
			}
			if res.Total != len(tt.want) {
				t.Errorf("Total = %d, want %d", res.Total, len(tt.want))
			}
		})
	}
}

func TestMemoryStore_AppendRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	m, err := s.Append(context.Background(), Message{Channel: "c", Sender: "alice", Body: "ünïcödé ✓ body"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if m.ID == 0 || m.At.IsZero() {
		t.Fatalf("expected id and timestamp assigned, got %+v", m)
	}
	res, err := s.Query(context.Background(), "c", "cödé")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0] != m {
		t.Fatalf("Query = %+v, want [%+v]", res.Messages, m)
	}
}

func TestMemoryStore_TimestampsNeverGoBackwards(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	first, _ := s.Append(ctx, Message{Channel: "c", Body: "a", At: base.Add(time.Minute)})
	second, _ := s.Append(ctx, Message{Channel: "c", Body: "b", At: base})
	if second.At.Before(first.At) {
		t.Fatalf("second.At = %v before first.At = %v", second.At, first.At)
	}
}

func TestMemoryStore_QueryFrequencyResumes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	appendAll(t, s, "c", "gg", "no", "gg wp")

	first, err := s.QueryFrequency(ctx, "c", "gg", nil)
	if err != nil {
		t.Fatalf("QueryFrequency: %v", err)
	}
	if first.Since != nil {
		t.Errorf("Since = %+v, want nil (the beginning)", first.Since)
	}
	if got := bodies(first.Messages); !equalStrings(got, []string{"gg", "gg wp"}) {
		t.Fatalf("first = %q", got)
	}

	// nothing new: cursor unchanged
	again, err := s.QueryFrequency(ctx, "c", "gg", first.Next)
	if err != nil {
		t.Fatalf("QueryFrequency: %v", err)
	}
	if len(again.Messages) != 0 {
		t.Errorf("expected no new matches, got %q", bodies(again.Messages))
	}
	if *again.Next != *first.Next {
		t.Errorf("Next = %+v, want unchanged %+v", again.Next, first.Next)
	}

	// same timestamp as the cursor still counts as newer via id
	if _, err := s.Append(ctx, Message{Channel: "c", Body: "gg again", At: first.Next.At}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	appendAll(t, s, "c", "later gg")
	second, err := s.QueryFrequency(ctx, "c", "gg", first.Next)
	if err != nil {
		t.Fatalf("QueryFrequency: %v", err)
	}
	if got := bodies(second.Messages); !equalStrings(got, []string{"gg again", "later gg"}) {
		t.Fatalf("second = %q", got)
	}

	all, err := s.QueryFrequency(ctx, "c", "gg", nil)
	if err != nil {
		t.Fatalf("QueryFrequency: %v", err)
	}
	union := append(bodies(first.Messages), bodies(second.Messages)...)
	if !equalStrings(union, bodies(all.Messages)) {
		t.Errorf("union %q != unbounded %q", union, bodies(all.Messages))
	}
}

func TestMemoryStore_ConcurrentAppendAndQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = s.Append(ctx, Message{Channel: "c", Sender: fmt.Sprint(w), Body: "msg"})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res, err := s.Query(ctx, "c", "msg")
				if err != nil {
					t.Errorf("Query: %v", err)
					return
				}
				for j := 1; j < len(res.Messages); j++ {
					if res.Messages[j].ID <= res.Messages[j-1].ID {
						t.Errorf("results out of append order")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	res, _ := s.Query(ctx, "c", "")
	if res.Total != 400 {
		t.Errorf("Total = %d, want 400", res.Total)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Append(ctx, Message{Channel: "c"}); err == nil {
		t.Error("expected error on canceled context")
	}
}
