package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/funda-chat/internal/backendtest"
	"github.com/zhouzirui/funda-chat/internal/service/chat"
	"github.com/zhouzirui/funda-chat/internal/service/transport"
	"github.com/zhouzirui/funda-chat/internal/ui"
)

func runREPL(t *testing.T, script backendtest.Script, stream bool, input string) string {
	t.Helper()
	srv := backendtest.New(script)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	renderer := ui.New(&out, "Alice", "Funda Fargo")
	ctrl, err := chat.NewController(transport.New(srv.Backend()), "Alice", chat.WithObserver(renderer.Observe))
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	repl := &REPL{
		In:       bufio.NewReader(strings.NewReader(input)),
		Out:      renderer,
		Ctrl:     ctrl,
		Stream:   stream,
		PromptTo: &out,
	}
	require.NoError(t, repl.Run(context.Background()))
	return out.String()
}

func TestREPLConversation(t *testing.T) {
	out := runREPL(t, backendtest.Script{
		Default: backendtest.Stream("Hello there!", "He", "Hello", " there"),
	}, true, "hi\n/like 3\n/history\n/quit\nnever sent\n")

	want := strings.Join([]string{
		"[1] Funda Fargo: Hello Alice! I am Funda Fargo. How can I help you today?",
		"[3] Funda Fargo: Hello there!",
		"[3] Funda Fargo: Hello there! like",
		"[1] Funda Fargo: Hello Alice! I am Funda Fargo. How can I help you today?",
		"[2] Alice: hi",
		"[3] Funda Fargo: Hello there! like",
		"",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestREPLWithoutStreaming(t *testing.T) {
	out := runREPL(t, backendtest.Script{
		Default: backendtest.Reply{Answer: "Sure."},
	}, false, "hello")

	assert.Contains(t, out, "[3] Funda Fargo: Sure.\n")
}

func TestREPLSessionFailure(t *testing.T) {
	out := runREPL(t, backendtest.Script{SessionStatus: http.StatusServiceUnavailable}, true, "hi\n")

	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, "The assistant is unavailable")
	assert.NotContains(t, out, "[2]")
}

func TestREPLCommandErrors(t *testing.T) {
	out := runREPL(t, backendtest.Script{Default: backendtest.Stream("ok")}, true, "/like 1\n/like x\n/dislike 9\n/bogus\n")

	assert.Contains(t, out, "error: feedback is only available on finished answers")
	assert.Contains(t, out, "error: usage: /like <message number>")
	assert.Contains(t, out, "error: no message 9")
	assert.Contains(t, out, "error: unknown command /bogus")
}
