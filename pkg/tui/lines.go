package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// RunLines is the non-interactive form of the widget used when input is not
// a terminal: every non-blank input line is one turn and every reply is
// written on its own line.
func RunLines(ctx context.Context, in io.Reader, out io.Writer, responder Responder) error {
	history := llm.Conversation{}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		reply := responder.Respond(ctx, history, message)
		if _, err := fmt.Fprintln(out, reply); err != nil {
			return err
		}

		history = history.
			With(llm.UserTurn(message)).
			With(llm.AssistantTurn(reply))
	}

	return scanner.Err()
}
