// Package backendtest runs an in-process assistant backend that speaks the
// session/chat/stream wire contract with scripted replies.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/funda-chat/internal/config"
)

// Frame is one server-sent event. Payload is JSON-encoded on the wire, Data
// is sent verbatim. A Comment frame carries neither and is a keep-alive.
type Frame struct {
	Event   string
	Data    string
	Payload any
	Comment string
}

// Delta builds a frame carrying a delta fragment.
func Delta(text string) Frame { return Frame{Payload: map[string]string{"delta": text}} }

// Final builds a frame carrying the final answer.
func Final(text string) Frame { return Frame{Payload: map[string]string{"final": text}} }

// Raw builds a frame whose data is sent verbatim.
func Raw(data string) Frame { return Frame{Data: data} }

// Named builds a frame with an explicit event type. data must be valid JSON.
func Named(event, data string) Frame { return Frame{Event: event, Data: data} }

// Comment builds a keep-alive comment line.
func Comment(text string) Frame { return Frame{Comment: text} }

// Reply scripts the backend's answer to one user message.
type Reply struct {
	// Status, when non-zero, fails the chat or stream request with it.
	Status int
	Frames []Frame
	// Hold keeps the stream open after Frames until the client disconnects.
	Hold bool
	// Answer is returned by the non-streaming chat endpoint.
	Answer string
	// Delay is waited before each frame.
	Delay time.Duration
}

// Stream scripts the usual reply: each delta, then the final answer.
func Stream(final string, deltas ...string) Reply {
	frames := make([]Frame, 0, len(deltas)+1)
	for _, d := range deltas {
		frames = append(frames, Delta(d))
	}
	frames = append(frames, Final(final))
	return Reply{Frames: frames, Answer: final}
}

// Script drives the whole fake backend.
type Script struct {
	// SessionStatus, when non-zero, fails every session request with it.
	SessionStatus int
	// Replies are keyed by the user's message text. Respond, when set, covers
	// the rest; otherwise Default does.
	Replies map[string]Reply
	Respond func(message string) Reply
	Default Reply
}

// Request records one call the backend received.
type Request struct {
	Method    string
	Path      string
	RawQuery  string
	SessionID string
	UserID    string
	Message   string
}

// Server is a running fake backend.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	script   Script
	sessions map[string]string
	requests []Request
}

// New starts a fake backend. Close it when done.
func New(script Script) *Server {
	s := newServer(script)
	s.srv = httptest.NewServer(s.routes())
	return s
}

// NewHandler returns the backend routes for serving on a real listener.
func NewHandler(script Script) http.Handler {
	return newServer(script).routes()
}

func newServer(script Script) *Server {
	return &Server{
		script:   script,
		sessions: make(map[string]string),
	}
}

// URL is the backend's base URL.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down and waits for open streams to end.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

// Client returns an HTTP client wired to the server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// Backend returns a client configuration pointing at the server.
func (s *Server) Backend() config.BackendConfig {
	return config.BackendConfig{BaseURL: s.srv.URL, Timeout: 5 * time.Second, Stream: true}
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// SessionUser returns the user a session was created for.
func (s *Server) SessionUser(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.sessions[sessionID]
	return user, ok
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/session", s.handleCreateSession)
	r.Post("/chat", s.handleChat)
	r.Get("/chat/stream", s.handleStream)
	return r
}

func (s *Server) record(req Request) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

func (s *Server) knownSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

func (s *Server) replyFor(message string) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reply, ok := s.script.Replies[message]; ok {
		return reply
	}
	if s.script.Respond != nil {
		return s.script.Respond(message)
	}
	return s.script.Default
}
