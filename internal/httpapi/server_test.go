package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metalwatch/internal/answer"
	"metalwatch/internal/assistant"
	"metalwatch/internal/query"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAsker struct {
	reply  assistant.Reply
	deltas []answer.Delta
	err    error
	got    string
}

func (s *stubAsker) Ask(_ context.Context, text string) (assistant.Reply, error) {
	s.got = text
	return s.reply, s.err
}

func (s *stubAsker) AskStream(_ context.Context, text string) (assistant.StreamReply, error) {
	s.got = text
	if s.err != nil {
		return assistant.StreamReply{RequestID: "req-1"}, s.err
	}
	ch := make(chan answer.Delta, len(s.deltas))
	for _, d := range s.deltas {
		ch <- d
	}
	close(ch)
	return assistant.StreamReply{RequestID: "req-1", Intent: query.IntentPrice, AsOf: "2026-03-01", Deltas: ch}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChat(t *testing.T) {
	asker := &stubAsker{reply: assistant.Reply{
		RequestID: "req-1",
		Answer:    "On 1 Mar 2026, Gold 22K is ₹7,600.00/g.",
		Intent:    query.IntentPrice,
		Source:    answer.SourceSuggested,
		AsOf:      "2026-03-01",
	}}
	r := NewRouter(asker, nil, zerolog.Nop())

	w := post(r, "/api/chat", `{"question":"  gold price  "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gold price", asker.got)

	var got assistant.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, asker.reply, got)
}

func TestChatRejectsBadInput(t *testing.T) {
	r := NewRouter(&stubAsker{}, nil, zerolog.Nop())

	assert.Equal(t, http.StatusBadRequest, post(r, "/api/chat", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/chat", `{"question":"   "}`).Code)
	long := `{"question":"` + strings.Repeat("a", maxQuestionChars+1) + `"}`
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/chat", long).Code)
}

func TestChatStoreUnavailable(t *testing.T) {
	asker := &stubAsker{reply: assistant.Reply{RequestID: "req-9"}, err: assistant.ErrStoreUnavailable}
	r := NewRouter(asker, nil, zerolog.Nop())

	w := post(r, "/api/chat", `{"question":"gold price"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "req-9")
	assert.Contains(t, w.Body.String(), assistant.ErrStoreUnavailable.Error())
}

func TestChatUnexpectedError(t *testing.T) {
	asker := &stubAsker{err: errors.New("boom")}
	w := post(NewRouter(asker, nil, zerolog.Nop()), "/api/chat", `{"question":"gold price"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestChatStream(t *testing.T) {
	asker := &stubAsker{deltas: []answer.Delta{
		{Text: "Gold is ", Source: answer.SourceGenerated},
		{Text: "₹7,600.00/g.", Source: answer.SourceGenerated},
	}}
	w := post(NewRouter(asker, nil, zerolog.Nop()), "/api/chat/stream", `{"question":"tell me more about gold"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"))
	body := w.Body.String()
	assert.Contains(t, body, "event:meta")
	assert.Contains(t, body, `"as_of":"2026-03-01"`)
	assert.Equal(t, 2, strings.Count(body, "event:delta"))
	assert.Contains(t, body, `"text":"Gold is "`)
	assert.Contains(t, body, "event:done")
	assert.Less(t, strings.Index(body, "event:meta"), strings.Index(body, "event:delta"))
}

func TestChatStreamStoreUnavailable(t *testing.T) {
	asker := &stubAsker{err: assistant.ErrStoreUnavailable}
	w := post(NewRouter(asker, nil, zerolog.Nop()), "/api/chat/stream", `{"question":"gold price"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	r := NewRouter(&stubAsker{}, stubPinger{}, zerolog.Nop())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	r = NewRouter(&stubAsker{}, stubPinger{err: errors.New("down")}, zerolog.Nop())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "metalwatch_http_requests_total")
}
