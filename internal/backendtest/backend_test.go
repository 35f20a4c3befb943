package backendtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSession(t *testing.T, base string, hc *http.Client) string {
	t.Helper()
	resp, err := hc.Post(base+"/session", "application/json", strings.NewReader(`{"user_id":"alice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func TestServerStreamsScriptedFrames(t *testing.T) {
	srv := New(Script{Default: Stream("Hi!", "Hi")})
	defer srv.Close()

	id := createSession(t, srv.URL(), srv.Client())
	user, ok := srv.SessionUser(id)
	require.True(t, ok)
	assert.Equal(t, "alice", user)

	q := url.Values{"session_id": {id}, "user_id": {"alice"}, "q": {"hey"}}
	resp, err := srv.Client().Get(srv.URL() + "/chat/stream?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"delta\":\"Hi\"}\n\ndata: {\"final\":\"Hi!\"}\n\n", string(body))
}

func TestServerRejectsUnknownSession(t *testing.T) {
	srv := New(Script{})
	defer srv.Close()

	q := url.Values{"session_id": {"nope"}, "user_id": {"alice"}, "q": {"hey"}}
	resp, err := srv.Client().Get(srv.URL() + "/chat/stream?" + q.Encode())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = srv.Client().Post(srv.URL()+"/session", "application/json", strings.NewReader(`{"user_id":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandlerUsesResponder(t *testing.T) {
	h := NewHandler(Script{
		Respond: func(message string) Reply { return Reply{Answer: strings.ToUpper(message)} },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"user_id":"alice"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var session struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	body, _ := json.Marshal(map[string]string{"session_id": session.SessionID, "user_id": "alice", "message": "hey"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"HEY"}`, rec.Body.String())
}
