package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/funda-chat/internal/model/chat"
	chatsvc "github.com/zhouzirui/funda-chat/internal/service/chat"
	"github.com/zhouzirui/funda-chat/internal/service/transport"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNewWithoutTerminalHasNoColor(t *testing.T) {
	r := New(&bytes.Buffer{}, "Alice", "Funda Fargo")
	assert.False(t, r.color)
}

func TestLine(t *testing.T) {
	r := New(&bytes.Buffer{}, "Alice", "Funda Fargo")

	user := chat.Message{Role: chat.RoleUser, Content: "hi", Status: chat.StatusFinal}
	assert.Equal(t, "[2] Alice: hi", r.Line(2, user, chat.FeedbackUnset))

	bot := chat.Message{Role: chat.RoleBot, Content: "Hello", Status: chat.StatusFinal, Generated: true}
	assert.Equal(t, "[3] Funda Fargo: Hello like", r.Line(3, bot, chat.FeedbackLike))

	cancelled := chat.Message{Role: chat.RoleBot, Content: "Hel", Status: chat.StatusCancelled}
	assert.Equal(t, "[3] Funda Fargo: Hel (cancelled)", r.Line(3, cancelled, chat.FeedbackUnset))

	pending := chat.Message{Role: chat.RoleBot, Status: chat.StatusPending}
	assert.Equal(t, "[3] Funda Fargo: ...", r.Line(3, pending, chat.FeedbackUnset))
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, "Alice", "Funda Fargo")

	tr := chatsvc.NewTranscript(chatsvc.Greeting("Alice", "Funda Fargo", now))
	r.History(tr)
	assert.Equal(t, "[1] Funda Fargo: Hello Alice! I am Funda Fargo. How can I help you today?\n", buf.String())
}

func TestObservePrintsUnseenSuffix(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, "Alice", "Funda Fargo")

	tr, ex, err := chatsvc.NewTranscript().Begin("hi", now)
	require.NoError(t, err)
	r.Observe(tr)

	for _, ev := range []transport.Event{
		{Kind: transport.EventDelta, Text: "He"},
		{Kind: transport.EventDelta, Text: "Hello"},
		{Kind: transport.EventDelta, Text: " there"},
		{Kind: transport.EventFinal, Text: "Hello there!"},
	} {
		tr = tr.Apply(ex.BotMessageID, ev, now)
		r.Observe(tr)
	}

	assert.Equal(t, "[2] Funda Fargo: Hello there!\n", buf.String())

	// later snapshots without an in-flight reply print nothing
	liked, err := tr.ToggleFeedback(ex.BotMessageID, chat.FeedbackLike)
	require.NoError(t, err)
	r.Observe(liked)
	assert.Equal(t, "[2] Funda Fargo: Hello there!\n", buf.String())
}

func TestObserveError(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, "Alice", "Funda Fargo")

	tr, ex, err := chatsvc.NewTranscript().Begin("hi", now)
	require.NoError(t, err)
	r.Observe(tr)

	tr = tr.Apply(ex.BotMessageID, transport.Event{Kind: transport.EventError, Err: errors.New("boom")}, now)
	r.Observe(tr)

	assert.Equal(t, "[2] Funda Fargo: "+chatsvc.ApologyText+"\n", buf.String())
}

func TestObserveCancelled(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, "Alice", "Funda Fargo")

	tr, ex, err := chatsvc.NewTranscript().Begin("hi", now)
	require.NoError(t, err)
	tr = tr.Apply(ex.BotMessageID, transport.Event{Kind: transport.EventDelta, Text: "abc"}, now)
	r.Observe(tr)

	r.Observe(tr.Abandon(ex.BotMessageID, now))

	assert.Equal(t, "[2] Funda Fargo: abc (cancelled)\n", buf.String())
}
