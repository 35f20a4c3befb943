package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	model "github.com/zhouzirui/funda-chat/internal/model/chat"
	"github.com/zhouzirui/funda-chat/internal/service/chat"
	"github.com/zhouzirui/funda-chat/internal/ui"
)

// REPL reads one line at a time and turns it into a send or a command.
type REPL struct {
	In       *bufio.Reader
	Out      *ui.Renderer
	Ctrl     *chat.Controller
	Stream   bool
	Prompt   bool
	PromptTo io.Writer
}

var errQuit = errors.New("quit")

// Run starts the session and loops until EOF, /quit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.Out.History(r.Ctrl.Transcript())

	if err := r.Ctrl.Start(ctx); err != nil {
		r.Out.Error(err)
		r.Out.Notice("The assistant is unavailable. Restart the client to try again.")
		return nil
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if r.Prompt {
			fmt.Fprint(r.PromptTo, "> ")
		}

		line, readErr := r.In.ReadString('\n')
		if err := r.handle(ctx, strings.TrimSpace(line)); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			r.Out.Error(err)
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return errors.Wrap(readErr, "read input")
		}
	}
}

func (r *REPL) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return r.send(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/history":
		r.Out.History(r.Ctrl.Transcript())
		return nil
	case "/like":
		return r.feedback(arg, model.FeedbackLike)
	case "/dislike":
		return r.feedback(arg, model.FeedbackDislike)
	default:
		return errors.Errorf("unknown command %s", cmd)
	}
}

func (r *REPL) send(ctx context.Context, text string) error {
	var err error
	if r.Stream {
		_, err = r.Ctrl.Send(ctx, text)
	} else {
		_, err = r.Ctrl.SendOnce(ctx, text)
	}
	switch {
	case errors.Is(err, chat.ErrChatUnavailable), errors.Is(err, chat.ErrExchangeInFlight):
		return err
	default:
		// failed replies are already on screen as the apology
		return nil
	}
}

func (r *REPL) feedback(arg string, f model.Feedback) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return errors.Errorf("usage: /%s <message number>", f)
	}

	t := r.Ctrl.Transcript()
	m, ok := t.At(n - 1)
	if !ok {
		return errors.Errorf("no message %d", n)
	}
	if err := r.Ctrl.ToggleFeedback(m.ID, f); err != nil {
		return err
	}

	r.Out.Message(n, m, r.Ctrl.Transcript().Feedback(m.ID))
	return nil
}
