package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/prompt"
)

type fakeRetriever struct {
	hits models.RetrievalResult
	err  error
	k    int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int) (models.RetrievalResult, error) {
	f.k = k
	return f.hits, f.err
}

type sliceStream struct {
	fragments []string
	failAt    int // index that returns failErr; -1 never
	failErr   error
	closed    bool
}

func (s *sliceStream) Recv() (string, error) {
	if s.failAt == 0 {
		return "", s.failErr
	}
	if len(s.fragments) == 0 {
		return "", io.EOF
	}
	s.failAt--
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakeCompleter struct {
	stream   *sliceStream
	err      error
	received []Message
}

func (f *fakeCompleter) Stream(_ context.Context, messages []Message) (Stream, error) {
	f.received = messages
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func hits(contents ...string) models.RetrievalResult {
	out := make(models.RetrievalResult, len(contents))
	for i, c := range contents {
		out[i] = models.ScoredChunk{Chunk: models.Chunk{Content: c}, Rank: i + 1}
	}
	return out
}

func TestSession_Turn(t *testing.T) {
	ret := &fakeRetriever{hits: hits("The cat sat.")}
	comp := &fakeCompleter{stream: &sliceStream{fragments: []string{"A ", "cat", "."}, failAt: -1}}
	s := NewSession(ret, prompt.NewAssembler("Be brief."), comp, WithTopK(2))
	conv := NewConversation()

	var streamed []string
	reply, err := s.Turn(context.Background(), conv, "Who sat?", func(f string) { streamed = append(streamed, f) })
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "A cat." {
		t.Errorf("reply = %q, want %q", reply.Text, "A cat.")
	}
	if strings.Join(streamed, "|") != "A |cat|." {
		t.Errorf("fragments = %v", streamed)
	}
	if ret.k != 2 {
		t.Errorf("retrieved k=%d, want 2", ret.k)
	}
	if !comp.stream.closed {
		t.Error("stream not closed")
	}

	msgs := conv.Messages()
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("history = %+v", msgs)
	}
	if msgs[0].Content != reply.Prompt || !strings.Contains(msgs[0].Content, "[1] The cat sat.") {
		t.Errorf("user message = %q", msgs[0].Content)
	}
	if msgs[1].Content != "A cat." {
		t.Errorf("assistant message = %q", msgs[1].Content)
	}
}

func TestSession_Turn_historyIsSent(t *testing.T) {
	ret := &fakeRetriever{hits: hits("x")}
	s := NewSession(ret, prompt.NewAssembler("d"), nil)
	conv := NewConversation()

	for i, want := range []int{1, 3} {
		comp := &fakeCompleter{stream: &sliceStream{fragments: []string{"ok"}, failAt: -1}}
		s.completer = comp
		if _, err := s.Turn(context.Background(), conv, "q", nil); err != nil {
			t.Fatal(err)
		}
		if len(comp.received) != want {
			t.Errorf("turn %d sent %d messages, want %d", i, len(comp.received), want)
		}
	}
	if conv.Len() != 4 {
		t.Errorf("history length = %d, want 4", conv.Len())
	}
}

func TestSession_Turn_rollback(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		ret  *fakeRetriever
		comp *fakeCompleter
	}{
		{
			name: "retrieval fails",
			ret:  &fakeRetriever{err: boom},
			comp: &fakeCompleter{stream: &sliceStream{failAt: -1}},
		},
		{
			name: "stream cannot start",
			ret:  &fakeRetriever{hits: hits("x")},
			comp: &fakeCompleter{err: boom},
		},
		{
			name: "stream fails midway",
			ret:  &fakeRetriever{hits: hits("x")},
			comp: &fakeCompleter{stream: &sliceStream{fragments: []string{"partial", "more"}, failAt: 1, failErr: boom}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConversation()
			conv.append(RoleUser, "earlier")
			conv.append(RoleAssistant, "answer")
			s := NewSession(tt.ret, prompt.NewAssembler("d"), tt.comp)

			_, err := s.Turn(context.Background(), conv, "q", nil)
			if !errors.Is(err, boom) {
				t.Fatalf("got %v, want boom", err)
			}
			if conv.Len() != 2 {
				t.Errorf("history length = %d after failure, want 2", conv.Len())
			}
		})
	}
}

func TestSession_Turn_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	comp := &fakeCompleter{stream: &sliceStream{fragments: []string{"a", "b", "c"}, failAt: -1}}
	s := NewSession(&fakeRetriever{hits: hits("x")}, prompt.NewAssembler("d"), comp)
	conv := NewConversation()

	_, err := s.Turn(ctx, conv, "q", func(string) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if conv.Len() != 0 {
		t.Errorf("history length = %d, want 0", conv.Len())
	}
}

func TestConversation(t *testing.T) {
	conv := NewConversation()
	conv.append(RoleUser, "hi")
	msgs := conv.Messages()
	msgs[0].Content = "changed"
	if conv.Messages()[0].Content != "hi" {
		t.Error("Messages did not return a copy")
	}
	conv.Reset()
	if conv.Len() != 0 {
		t.Errorf("Len after Reset = %d", conv.Len())
	}
}
