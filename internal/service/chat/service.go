package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/funda-chat/internal/model/chat"
	"github.com/zhouzirui/funda-chat/internal/service/transport"
)

const defaultAssistantName = "Funda Fargo"

var (
	ErrEmptyIdentity   = errors.New("display name is required")
	ErrChatUnavailable = errors.New("chat is unavailable: no session")
	ErrCancelled       = errors.New("exchange cancelled")
)

// Backend is the slice of the transport client the controller needs.
type Backend interface {
	CreateSession(ctx context.Context, userID string) (string, error)
	Chat(ctx context.Context, sessionID, userID, message string) (string, error)
	OpenStream(ctx context.Context, r transport.StreamRequest) *transport.Stream
}

// Controller drives one logged-in conversation: it owns the session, the
// transcript and at most one outstanding stream.
//
// Transcript transitions happen only on the goroutine calling Send or
// SendOnce. Close may be called from anywhere.
type Controller struct {
	backend   Backend
	identity  string
	assistant string
	now       func() time.Time
	observer  func(Transcript)

	session    chat.Session
	sessionErr error
	transcript Transcript

	mu     sync.Mutex
	active *transport.Stream
	closed bool

	logger zerolog.Logger
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithObserver registers fn to receive every new transcript snapshot.
func WithObserver(fn func(Transcript)) ControllerOption {
	return func(c *Controller) { c.observer = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithAssistantName sets the name used in the greeting.
func WithAssistantName(name string) ControllerOption {
	return func(c *Controller) {
		if name = strings.TrimSpace(name); name != "" {
			c.assistant = name
		}
	}
}

// NewController prepares a conversation for the given display name. No
// network call is made until Start.
func NewController(backend Backend, identity string, opts ...ControllerOption) (*Controller, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrEmptyIdentity
	}

	c := &Controller{
		backend:   backend,
		identity:  identity,
		assistant: defaultAssistantName,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = log.With().Str("component", "chat").Str("user_id", identity).Logger()
	c.transcript = NewTranscript(Greeting(identity, c.assistant, c.now()))
	return c, nil
}

// Start creates the backend session. On failure the controller stays usable
// for rendering but Ready reports false and sends are rejected.
func (c *Controller) Start(ctx context.Context) error {
	if c.Ready() {
		return nil
	}

	id, err := c.backend.CreateSession(ctx, c.identity)
	if err != nil {
		c.sessionErr = err
		c.logger.Warn().Err(err).Msg("session creation failed, chat disabled")
		return err
	}

	c.session = chat.Session{ID: id, UserID: c.identity, CreatedAt: c.now()}
	c.sessionErr = nil
	c.logger.Info().Str("session_id", id).Msg("session ready")
	return nil
}

// Ready reports whether a session exists.
func (c *Controller) Ready() bool { return c.session.ID != "" }

// Session returns the current session; its ID is empty before Start.
func (c *Controller) Session() chat.Session { return c.session }

// SessionErr returns the last session creation failure.
func (c *Controller) SessionErr() error { return c.sessionErr }

// Identity is the trimmed display name.
func (c *Controller) Identity() string { return c.identity }

// Transcript returns the current snapshot.
func (c *Controller) Transcript() Transcript { return c.transcript }

// Busy reports whether a reply is still outstanding.
func (c *Controller) Busy() bool {
	_, busy := c.transcript.InFlight()
	return busy
}

// Send posts text and streams the reply into the transcript, returning the
// bot message once it is finalized. A failed stream still finalizes the
// message (with the apology text) and returns the transport error.
func (c *Controller) Send(ctx context.Context, text string) (chat.Message, error) {
	ex, err := c.begin(text)
	if err != nil {
		return chat.Message{}, err
	}

	stream := c.backend.OpenStream(ctx, transport.StreamRequest{
		SessionID: c.session.ID,
		UserID:    c.identity,
		Message:   text,
	})
	if !c.track(stream) {
		stream.Cancel()
		return c.abandon(ex.BotMessageID), ErrCancelled
	}
	defer c.untrack(stream)

	return c.consume(ctx, ex.BotMessageID, stream)
}

// SendOnce is Send over the non-streaming chat endpoint.
func (c *Controller) SendOnce(ctx context.Context, text string) (chat.Message, error) {
	ex, err := c.begin(text)
	if err != nil {
		return chat.Message{}, err
	}

	answer, err := c.backend.Chat(ctx, c.session.ID, c.identity, text)
	switch {
	case ctx.Err() != nil:
		return c.abandon(ex.BotMessageID), ctx.Err()
	case err != nil:
		c.apply(ex.BotMessageID, transport.Event{Kind: transport.EventError, Err: err})
	default:
		c.apply(ex.BotMessageID, transport.Event{Kind: transport.EventFinal, Text: answer})
	}

	msg, _ := c.transcript.Get(ex.BotMessageID)
	return msg, err
}

// ToggleFeedback flips a like/dislike tag on a finished answer.
func (c *Controller) ToggleFeedback(id string, f chat.Feedback) error {
	next, err := c.transcript.ToggleFeedback(id, f)
	if err != nil {
		return err
	}
	c.publish(next)
	c.logger.Debug().Str("message_id", id).Str("feedback", string(next.Feedback(id))).Msg("feedback updated")
	return nil
}

// Close cancels any outstanding stream. Later sends fail with ErrCancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	active := c.active
	c.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
}

func (c *Controller) begin(text string) (Exchange, error) {
	if !c.Ready() {
		return Exchange{}, ErrChatUnavailable
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Exchange{}, ErrCancelled
	}

	next, ex, err := c.transcript.Begin(text, c.now())
	if err != nil {
		return Exchange{}, err
	}
	c.publish(next)
	c.logger.Debug().Str("session_id", c.session.ID).Str("message_id", ex.BotMessageID).Msg("exchange started")
	return ex, nil
}

// consume applies events in arrival order until the stream is terminal.
func (c *Controller) consume(ctx context.Context, botID string, stream *transport.Stream) (chat.Message, error) {
	for {
		select {
		case <-ctx.Done():
			stream.Cancel()
			return c.abandon(botID), ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				msg := c.abandon(botID)
				if err := ctx.Err(); err != nil {
					return msg, err
				}
				return msg, ErrCancelled
			}

			msg := c.apply(botID, ev)
			if !ev.Terminal() {
				continue
			}
			if ev.Kind == transport.EventError {
				c.logger.Warn().Err(ev.Err).Str("message_id", botID).Msg("reply failed")
				return msg, ev.Err
			}
			c.logger.Debug().Str("message_id", botID).Int("length", len(msg.Content)).Msg("reply finished")
			return msg, nil
		}
	}
}

func (c *Controller) apply(botID string, ev transport.Event) chat.Message {
	c.publish(c.transcript.Apply(botID, ev, c.now()))
	msg, _ := c.transcript.Get(botID)
	return msg
}

func (c *Controller) abandon(botID string) chat.Message {
	c.publish(c.transcript.Abandon(botID, c.now()))
	msg, _ := c.transcript.Get(botID)
	return msg
}

func (c *Controller) publish(t Transcript) {
	c.transcript = t
	if c.observer != nil {
		c.observer(t)
	}
}

// track records the outstanding stream; false means Close already ran.
func (c *Controller) track(s *transport.Stream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.active = s
	return true
}

func (c *Controller) untrack(s *transport.Stream) {
	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()
	s.Cancel()
}
