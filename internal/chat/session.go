package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/prompt"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

// Retriever finds the chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error)
}

// Reply is the outcome of one turn.
type Reply struct {
	Text   string
	Prompt string
	Hits   models.RetrievalResult
}

// Session ties retrieval, prompt assembly and completion together. It holds no history of its own.
type Session struct {
	retriever Retriever
	assembler *prompt.Assembler
	completer Completer
	topK      int
	logger    *zap.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTopK sets how many chunks are retrieved per turn.
func WithTopK(k int) SessionOption {
	return func(s *Session) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session.
func NewSession(retriever Retriever, assembler *prompt.Assembler, completer Completer, opts ...SessionOption) *Session {
	s := &Session{
		retriever: retriever,
		assembler: assembler,
		completer: completer,
		topK:      4,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Turn answers query within conv. onFragment, if set, receives each streamed fragment as it arrives.
// On success conv gains the assembled user prompt and the assistant reply; on any failure conv is
// left as it was.
func (s *Session) Turn(ctx context.Context, conv *Conversation, query string, onFragment func(string)) (*Reply, error) {
	hits, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	p := s.assembler.Assemble(hits, query)
	s.logger.Debug("prompt assembled", zap.Int("hits", len(hits)), zap.Int("prompt_len", len(p)))

	mark := conv.Len()
	conv.append(RoleUser, p)
	text, err := s.complete(ctx, conv.Messages(), onFragment)
	if err != nil {
		conv.truncate(mark)
		return nil, fmt.Errorf("complete: %w", err)
	}
	conv.append(RoleAssistant, text)
	return &Reply{Text: text, Prompt: p, Hits: hits}, nil
}

func (s *Session) complete(ctx context.Context, messages []Message, onFragment func(string)) (string, error) {
	stream, err := s.completer.Stream(ctx, messages)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
		if onFragment != nil {
			onFragment(frag)
		}
	}
}
