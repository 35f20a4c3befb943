package backendtest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/funda-chat/pkg/utils"
)

// handleCreateSession 创建会话
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	s.record(Request{Method: r.Method, Path: r.URL.Path, UserID: payload.UserID})

	if payload.UserID == "" {
		utils.RespondError(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	if s.script.SessionStatus != 0 {
		utils.RespondError(w, s.script.SessionStatus, "session service unavailable")
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = payload.UserID
	s.mu.Unlock()

	utils.RespondJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

// handleChat 非流式对话
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	s.record(Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		SessionID: payload.SessionID,
		UserID:    payload.UserID,
		Message:   payload.Message,
	})

	if !s.knownSession(payload.SessionID) {
		utils.RespondError(w, http.StatusNotFound, "Unknown session_id")
		return
	}

	reply := s.replyFor(payload.Message)
	if reply.Status != 0 {
		utils.RespondError(w, reply.Status, "chat failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"answer": reply.Answer})
}

// handleStream 以SSE推送脚本化的回复
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
		SessionID: query.Get("session_id"),
		UserID:    query.Get("user_id"),
		Message:   query.Get("q"),
	}
	s.record(req)

	if req.SessionID == "" || req.UserID == "" || req.Message == "" {
		utils.RespondError(w, http.StatusUnprocessableEntity, "session_id, user_id and q are required")
		return
	}
	if !s.knownSession(req.SessionID) {
		utils.RespondError(w, http.StatusNotFound, "Unknown session_id")
		return
	}

	reply := s.replyFor(req.Message)
	if reply.Status != 0 {
		utils.RespondError(w, reply.Status, "streaming failed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, frame := range reply.Frames {
		if reply.Delay > 0 {
			select {
			case <-time.After(reply.Delay):
			case <-r.Context().Done():
				return
			}
		}

		var err error
		switch {
		case frame.Comment != "":
			err = utils.SendSSEComment(w, flusher, frame.Comment)
		case frame.Event != "":
			err = utils.SendSSEEvent(w, flusher, frame.Event, json.RawMessage(frame.Data))
		case frame.Payload != nil:
			err = utils.SendSSEChunk(w, flusher, frame.Payload)
		default:
			err = utils.SendSSEData(w, flusher, frame.Data)
		}
		if err != nil {
			return
		}
	}

	if reply.Hold {
		<-r.Context().Done()
	}
}
