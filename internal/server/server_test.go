package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-gateway/internal/chat"
	"github.com/comigor/jarvis-gateway/internal/history"
	"github.com/comigor/jarvis-gateway/internal/llm"
	"github.com/comigor/jarvis-gateway/internal/metrics"
	"github.com/comigor/jarvis-gateway/internal/wire"
)

type mockBackend struct {
	text      string
	fragments []string
	err       error
}

func (m *mockBackend) Model() string { return "gpt-test" }

func (m *mockBackend) Invoke(ctx context.Context, msgs []llm.Message, _ llm.Params) (llm.Result, error) {
	if m.err != nil {
		return llm.Result{}, m.err
	}
	return llm.Result{Text: m.text, Model: "gpt-test"}, nil
}

func (m *mockBackend) Stream(ctx context.Context, msgs []llm.Message, _ llm.Params) iter.Seq2[llm.Fragment, error] {
	return func(yield func(llm.Fragment, error) bool) {
		for _, f := range m.fragments {
			if !yield(llm.Fragment{Text: f}, nil) {
				return
			}
		}
		if m.err != nil {
			yield(llm.Fragment{}, m.err)
		}
	}
}

func newTestServer(t *testing.T, b *mockBackend) (*httptest.Server, history.Store) {
	t.Helper()
	store := history.NewMemoryStore()
	collector := metrics.NewCollector("test")
	svc := chat.New(store, b, "sys", collector)
	ts := httptest.NewServer(NewRouter(svc, collector))
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func storeLen(t *testing.T, store history.Store) int {
	all, err := store.All(context.Background())
	require.NoError(t, err)
	return len(all)
}

// sseData splits an SSE body into its data payloads.
func sseData(t *testing.T, body string) []string {
	t.Helper()
	require.True(t, strings.HasSuffix(body, "\n\n"), "body must end with a blank line")
	var out []string
	for _, frame := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		out = append(out, strings.TrimPrefix(frame, "data: "))
	}
	return out
}

func TestCompletions_JSON(t *testing.T) {
	ts, store := newTestServer(t, &mockBackend{text: "hello"})

	resp := post(t, ts.URL+"/chat/completions", `{"model":"x","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out wire.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, wire.ObjectCompletion, out.Object)
	require.Equal(t, "hello", out.Choices[0].Message.Content)
	require.Equal(t, 2, storeLen(t, store))
}

func TestCompletions_V1Prefix(t *testing.T) {
	ts, _ := newTestServer(t, &mockBackend{text: "hello"})
	resp := post(t, ts.URL+"/v1/chat/completions", `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCompletions_ValidationError(t *testing.T) {
	ts, store := newTestServer(t, &mockBackend{text: "hello"})

	resp := post(t, ts.URL+"/chat/completions", `{"messages":[]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out wire.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "invalid_request_error", out.Error.Type)
	require.Equal(t, 0, storeLen(t, store))
}

func TestCompletions_ProviderError(t *testing.T) {
	perr := &llm.ProviderError{Op: "invoke", Kind: llm.KindAuth, Err: errors.New("bad key")}
	ts, store := newTestServer(t, &mockBackend{err: perr})

	resp := post(t, ts.URL+"/chat/completions", `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var out wire.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "provider_auth", out.Error.Code)
	require.Equal(t, 0, storeLen(t, store))
}

func TestCompletions_Stream(t *testing.T) {
	ts, store := newTestServer(t, &mockBackend{fragments: []string{"Hel", "lo"}})

	resp := post(t, ts.URL+"/chat/completions", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := readBody(t, resp)
	require.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	frames := sseData(t, body)
	require.Len(t, frames, 4)
	require.Equal(t, wire.DoneSentinel, frames[3])

	var chunks []wire.ChatStreamChunk
	for _, f := range frames[:3] {
		var c wire.ChatStreamChunk
		require.NoError(t, json.Unmarshal([]byte(f), &c))
		chunks = append(chunks, c)
	}
	require.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	require.Equal(t, "Hel", chunks[0].Choices[0].Delta.Content)
	require.Equal(t, "lo", chunks[1].Choices[0].Delta.Content)
	require.Equal(t, wire.FinishReasonStop, *chunks[2].Choices[0].FinishReason)
	require.Equal(t, chunks[0].ID, chunks[2].ID)

	require.Equal(t, 2, storeLen(t, store))
}

func TestCompletions_StreamFailsMidway(t *testing.T) {
	perr := &llm.ProviderError{Op: "stream", Kind: llm.KindTransport, Err: errors.New("reset")}
	ts, store := newTestServer(t, &mockBackend{fragments: []string{"a", "b"}, err: perr})

	resp := post(t, ts.URL+"/chat/completions", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	require.NotContains(t, body, wire.DoneSentinel)

	frames := sseData(t, body)
	require.Len(t, frames, 3)
	var errFrame wire.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(frames[2]), &errFrame))
	require.Equal(t, "provider_unavailable", errFrame.Error.Code)
	require.Equal(t, 0, storeLen(t, store))
}

func TestCompletions_StreamFailsBeforeFirstFrame(t *testing.T) {
	perr := &llm.ProviderError{Op: "stream", Kind: llm.KindTransport, Err: errors.New("dial")}
	ts, _ := newTestServer(t, &mockBackend{err: perr})

	resp := post(t, ts.URL+"/chat/completions", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestHistoryRoutes(t *testing.T) {
	ts, _ := newTestServer(t, &mockBackend{text: "hello"})
	post(t, ts.URL+"/chat/completions", `{"messages":[{"role":"user","content":"hi"}]}`)

	resp, err := http.Get(ts.URL + "/chat/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	var hist wire.HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hist))
	require.Len(t, hist.Messages, 2)
	require.Equal(t, "hi", hist.Messages[0].Content)
	require.Equal(t, "hello", hist.Messages[1].Content)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/chat/history", nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	require.Equal(t, http.StatusOK, del.StatusCode)
	require.JSONEq(t, `{"message":"Chat history cleared successfully"}`, readBody(t, del))

	export, err := http.Get(ts.URL + "/webui/history")
	require.NoError(t, err)
	defer export.Body.Close()
	require.JSONEq(t, `{"history":{"messages":{},"currentId":null},"messages":[]}`, readBody(t, export))
}

func TestModelsAndHealth(t *testing.T) {
	ts, _ := newTestServer(t, &mockBackend{})

	resp, err := http.Get(ts.URL + "/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list wire.ModelList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, "gpt-test", list.Data[0].ID)

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)

	m, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	require.Equal(t, http.StatusOK, m.StatusCode)
}

func TestHandleError(t *testing.T) {
	status, _ := HandleError(&wire.ValidationError{Message: "x"})
	require.Equal(t, http.StatusBadRequest, status)

	status, resp := HandleError(&llm.ProviderError{Kind: llm.KindMalformed, Err: errors.New("x")})
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "provider_malformed", resp.Error.Code)

	status, resp = HandleError(errors.Join(errors.New("commit"), history.ErrUnknownParent))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "store_invariant", resp.Error.Code)

	status, _ = HandleError(context.Canceled)
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestCompletions_StreamCancelledBeforeOpen(t *testing.T) {
	ts, store := newTestServer(t, &mockBackend{err: context.Canceled})

	resp := post(t, ts.URL+"/chat/completions", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var out wire.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "cancelled", out.Error.Code)
	require.Equal(t, 0, storeLen(t, store))
}
