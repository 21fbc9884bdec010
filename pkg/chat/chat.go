// Package chat runs one chat turn: normalize the history, ask the completion
// provider for a reply, and hand a log record to the background dispatcher.
// Every presentation surface (HTTP, MCP, the direct terminal chat) goes
// through Service so that the turn is handled the same way everywhere.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/chatlog"
	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// ErrInvalidHistory is returned when a history entry carries an unknown role.
var ErrInvalidHistory = errors.New("invalid history")

// Completer produces the assistant reply for history followed by message.
// *completion.Invoker satisfies it.
type Completer interface {
	Invoke(ctx context.Context, history llm.Conversation, message string) (string, error)
	Model() string
}

// Recorder accepts log records without blocking. *chatlog.Dispatcher
// satisfies it.
type Recorder interface {
	Dispatch(rec chatlog.Record) bool
}

// Service handles chat turns. It holds no per-conversation state.
type Service struct {
	completer Completer
	recorder  Recorder
	logger    *zap.Logger
}

// NewService creates a Service. A nil recorder disables logging.
func NewService(completer Completer, recorder Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		completer: completer,
		recorder:  recorder,
		logger:    logger,
	}
}

// Reply answers req. The log record is dispatched only after a successful
// completion and its outcome never affects the returned reply.
func (s *Service) Reply(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	startTime := time.Now()

	history := llm.Normalize(req.History)
	if err := history.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHistory, err)
	}

	s.logger.Debug("chat turn received",
		zap.Int("history_turns", len(history)),
		zap.String("message_preview", Truncate(req.Message, 100)),
	)

	reply, err := s.completer.Invoke(ctx, history, req.Message)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("chat turn completed",
		zap.String("model", s.completer.Model()),
		zap.String("reply_preview", Truncate(reply, 100)),
		zap.Duration("duration", time.Since(startTime)),
	)

	if s.recorder != nil {
		s.recorder.Dispatch(chatlog.NewRecord(req.Message, reply, s.completer.Model()))
	}

	return &llm.ChatResponse{Reply: reply}, nil
}

// Respond is the display-oriented form of Reply used by interactive
// surfaces: failures are rendered with DisplayError instead of returned.
func (s *Service) Respond(ctx context.Context, history llm.Conversation, message string) string {
	resp, err := s.Reply(ctx, llm.ChatRequest{Message: message, History: history})
	if err != nil {
		s.logger.Error("chat turn failed", zap.Error(err))
		return DisplayError(err)
	}
	return resp.Reply
}

// ErrorMessage describes a Reply error for the person chatting. Provider
// error text (request URLs, status lines, response bodies) is never included;
// the full error belongs in the log.
func ErrorMessage(err error) string {
	var providerErr *completion.ProviderError

	switch {
	case errors.Is(err, completion.ErrEmptyMessage):
		return completion.ErrEmptyMessage.Error()
	case errors.Is(err, ErrInvalidHistory):
		return err.Error()
	case errors.As(err, &providerErr) && errors.Is(err, context.DeadlineExceeded):
		return "completion provider timed out"
	case errors.As(err, &providerErr):
		return "completion provider failed"
	default:
		return "internal error"
	}
}

// DisplayError renders err as the "Error: ..." line chat surfaces show.
func DisplayError(err error) string {
	return "Error: " + ErrorMessage(err)
}

// Truncate shortens s to at most maxLen runes for log previews, flattening
// newlines.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
