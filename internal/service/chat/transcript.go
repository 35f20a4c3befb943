package chat

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/funda-chat/internal/model/chat"
	"github.com/zhouzirui/funda-chat/internal/reconcile"
	"github.com/zhouzirui/funda-chat/internal/service/transport"
)

// ApologyText replaces a bot message whose stream failed.
const ApologyText = "Sorry, I encountered an error. Please try again."

var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrExchangeInFlight    = errors.New("a reply is still streaming")
	ErrMessageNotFound     = errors.New("message not found")
	ErrFeedbackUnavailable = errors.New("feedback is only available on finished answers")
)

// Exchange names the two messages created by one send.
type Exchange struct {
	UserMessageID string
	BotMessageID  string
}

// Transcript is an immutable, ordered arena of message snapshots. Every
// transition returns a new Transcript and leaves the receiver untouched.
type Transcript struct {
	order    []string
	messages map[string]chat.Message
	feedback map[string]chat.Feedback
	inFlight string
}

// NewTranscript starts a transcript with the given messages already shown.
func NewTranscript(initial ...chat.Message) Transcript {
	t := Transcript{
		order:    make([]string, 0, len(initial)),
		messages: make(map[string]chat.Message, len(initial)),
		feedback: make(map[string]chat.Feedback),
	}
	for _, m := range initial {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		t.order = append(t.order, m.ID)
		t.messages[m.ID] = m
	}
	return t
}

// Greeting is the opening bot line shown before any exchange.
func Greeting(user, assistant string, now time.Time) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleBot,
		Content:   fmt.Sprintf("Hello %s! I am %s. How can I help you today?", user, assistant),
		Status:    chat.StatusFinal,
		CreatedAt: now,
	}
}

// Begin appends the user's message and an empty bot message awaiting the
// reply. Only one reply may be outstanding.
func (t Transcript) Begin(text string, now time.Time) (Transcript, Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return t, Exchange{}, ErrEmptyMessage
	}
	if t.inFlight != "" {
		return t, Exchange{}, ErrExchangeInFlight
	}

	ex := Exchange{
		UserMessageID: uuid.NewString(),
		BotMessageID:  "bot-" + uuid.NewString(),
	}

	next := t.clone()
	next.append(chat.Message{
		ID:        ex.UserMessageID,
		Role:      chat.RoleUser,
		Content:   text,
		Status:    chat.StatusFinal,
		CreatedAt: now,
	})
	next.append(chat.Message{
		ID:        ex.BotMessageID,
		Role:      chat.RoleBot,
		Status:    chat.StatusPending,
		CreatedAt: now,
	})
	next.inFlight = ex.BotMessageID
	return next, ex, nil
}

// Apply folds one stream event into the bot message botID. Events for
// unknown or already finalized messages are ignored.
func (t Transcript) Apply(botID string, ev transport.Event, now time.Time) Transcript {
	msg, ok := t.messages[botID]
	if !ok || msg.Role != chat.RoleBot || msg.Finalized() {
		return t
	}

	switch ev.Kind {
	case transport.EventDelta:
		msg.Content = reconcile.Merge(msg.Content, ev.Text)
		msg.Status = chat.StatusStreaming
	case transport.EventFinal:
		msg.Content = reconcile.Merge(msg.Content, ev.Text)
		msg.Status = chat.StatusFinal
		msg.Generated = true
		msg.CreatedAt = now
	case transport.EventError:
		msg.Content = ApologyText
		msg.Status = chat.StatusErrored
		msg.CreatedAt = now
	default:
		return t
	}

	return t.replace(msg)
}

// Abandon finalizes an unfinished bot message whose stream was cancelled.
// Text received so far is kept.
func (t Transcript) Abandon(botID string, now time.Time) Transcript {
	msg, ok := t.messages[botID]
	if !ok || msg.Role != chat.RoleBot || msg.Finalized() {
		return t
	}
	msg.Status = chat.StatusCancelled
	msg.CreatedAt = now
	return t.replace(msg)
}

// ToggleFeedback sets f on message id, or clears it when f is already set.
// Passing FeedbackUnset clears unconditionally.
func (t Transcript) ToggleFeedback(id string, f chat.Feedback) (Transcript, error) {
	msg, ok := t.messages[id]
	if !ok {
		return t, ErrMessageNotFound
	}
	if !msg.FeedbackEligible() {
		return t, ErrFeedbackUnavailable
	}
	switch f {
	case chat.FeedbackUnset, chat.FeedbackLike, chat.FeedbackDislike:
	default:
		return t, fmt.Errorf("unknown feedback %q", f)
	}

	next := t.clone()
	if f == chat.FeedbackUnset || t.feedback[id] == f {
		delete(next.feedback, id)
	} else {
		next.feedback[id] = f
	}
	return next, nil
}

// Messages returns the snapshots in display order.
func (t Transcript) Messages() []chat.Message {
	out := make([]chat.Message, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.messages[id])
	}
	return out
}

// Get returns the snapshot for id.
func (t Transcript) Get(id string) (chat.Message, bool) {
	m, ok := t.messages[id]
	return m, ok
}

// At returns the i-th message in display order.
func (t Transcript) At(i int) (chat.Message, bool) {
	if i < 0 || i >= len(t.order) {
		return chat.Message{}, false
	}
	return t.messages[t.order[i]], true
}

// InFlight returns the id of the bot message still awaiting its reply.
func (t Transcript) InFlight() (string, bool) {
	return t.inFlight, t.inFlight != ""
}

// Feedback returns the tag set on id.
func (t Transcript) Feedback(id string) chat.Feedback {
	return t.feedback[id]
}

// Len is the number of messages.
func (t Transcript) Len() int { return len(t.order) }

func (t Transcript) clone() Transcript {
	next := Transcript{
		order:    slices.Clone(t.order),
		messages: maps.Clone(t.messages),
		feedback: maps.Clone(t.feedback),
		inFlight: t.inFlight,
	}
	if next.feedback == nil {
		next.feedback = make(map[string]chat.Feedback)
	}
	return next
}

// append adds m to a transcript produced by clone.
func (t *Transcript) append(m chat.Message) {
	if t.messages == nil {
		t.messages = make(map[string]chat.Message)
	}
	t.order = append(t.order, m.ID)
	t.messages[m.ID] = m
}

// replace swaps in a new snapshot of an existing message.
func (t Transcript) replace(m chat.Message) Transcript {
	next := t.clone()
	next.messages[m.ID] = m
	if m.Finalized() && next.inFlight == m.ID {
		next.inFlight = ""
	}
	return next
}
