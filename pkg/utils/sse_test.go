package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendSSEChunk(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	require.NoError(t, SendSSEChunk(rec, rec, map[string]string{"delta": "Hi"}))
	require.NoError(t, SendSSEEvent(rec, rec, "status", map[string]string{"state": "ok"}))
	require.NoError(t, SendSSEComment(rec, rec, "ping"))

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.True(t, rec.Flushed)
	require.Equal(t,
		"data: {\"delta\":\"Hi\"}\n\nevent: status\ndata: {\"state\":\"ok\"}\n\n: ping\n\n",
		rec.Body.String())
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusNotFound, "Unknown session_id")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Unknown session_id"}`, rec.Body.String())
}
