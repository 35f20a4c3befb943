package transport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, body string) []sseEvent {
	t.Helper()
	r := newSSEReader(strings.NewReader(body))
	var out []sseEvent
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestSSEReaderFraming(t *testing.T) {
	body := ": heartbeat\n\n" +
		"data: {\"delta\":\"a\"}\n\n" +
		"event: status\r\ndata: {}\r\n\r\n" +
		"id: 7\ndata: line one\ndata:line two\nretry: 100\n\n" +
		"data\n\n" +
		"data: cut off"

	events := readAll(t, body)
	require.Equal(t, []sseEvent{
		{Type: "message", Data: `{"delta":"a"}`},
		{Type: "status", Data: "{}"},
		{Type: "message", ID: "7", Data: "line one\nline two"},
		{Type: "message", Data: ""},
	}, events)
}

func TestSSEReaderEventTypeResetsAfterEmptyBlock(t *testing.T) {
	events := readAll(t, "event: status\n\ndata: x\n\n")
	require.Equal(t, []sseEvent{{Type: "message", Data: "x"}}, events)
}

func TestSSEReaderEmptyBody(t *testing.T) {
	require.Empty(t, readAll(t, ""))
}
