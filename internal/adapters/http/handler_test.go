package http_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/randomtoy/negai-go/internal/adapters/http"
	"github.com/randomtoy/negai-go/internal/adapters/llm/gemini"
	"github.com/randomtoy/negai-go/internal/adapters/metrics"
	"github.com/randomtoy/negai-go/internal/adapters/prompts"
	"github.com/randomtoy/negai-go/internal/app"
)

type staticKey string

func (k staticKey) APIKey() string { return string(k) }

// upstream fakes the generateContent endpoint and records the prompts it saw.
type upstream struct {
	srv     *httptest.Server
	calls   atomic.Int32
	prompts []string
}

func newUpstream(t *testing.T, status int, reply string) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("outbound body is not JSON: %v", err)
		} else if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			u.prompts = append(u.prompts, req.Contents[0].Parts[0].Text)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func envelope(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
	return string(b)
}

func newTestServer(u *upstream, key string, legacy bool) *echo.Echo {
	return newTestServerWithLogger(u, key, legacy, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServerWithLogger(u *upstream, key string, legacy bool, logger *slog.Logger) *echo.Echo {
	gen := gemini.NewClient(u.srv.Client(), u.srv.URL, "gemini-test", nil, logger)
	rec := metrics.NewRecorder()
	svc := app.NewRelayService(prompts.NewEmbeddedStore(), gen, staticKey(key), rec, logger, legacy)
	return httpadapter.NewServer(httpadapter.NewHandler(svc, "/api/wish", rec.Handler(), logger), logger)
}

func do(e *echo.Echo, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/wish", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestWish_PersonaSuccess(t *testing.T) {
	completion := `{"attribute":"A","personality":"B","true_wish":"C"}`
	u := newUpstream(t, http.StatusOK, envelope(completion))
	e := newTestServer(u, "key", false)

	rec := do(e, http.MethodPost, `{"mode":"persona"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, completion, strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "gemini-test", rec.Header().Get("X-Generation-Model"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.EqualValues(t, 1, u.calls.Load())
}

func TestWish_FieldsReachPromptVerbatim(t *testing.T) {
	persona := map[string]string{
		"attribute":   `14歳 女子 "恋に恋する"中学生`,
		"personality": "論理的すぎて\n空気が読めない",
		"true_wish":   `告白を成功させたい {"json":true}`,
	}

	tests := []struct {
		name   string
		body   map[string]any
		expect []string
	}{
		{
			name:   "interpretation",
			body:   map[string]any{"mode": "interpretation", "query": `切手を"ちょうだい"\n`},
			expect: []string{`切手を"ちょうだい"\n`},
		},
		{
			name:   "outcome",
			body:   map[string]any{"mode": "outcome", "persona": persona, "interpretation": "「切って」と聞き間違えた"},
			expect: []string{persona["attribute"], persona["personality"], persona["true_wish"], "「切って」と聞き間違えた"},
		},
		{
			name:   "reaction",
			body:   map[string]any{"mode": "reaction", "persona": persona, "outcome": "ハサミが空から降ってきた"},
			expect: []string{persona["attribute"], persona["personality"], persona["true_wish"], "ハサミが空から降ってきた"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, http.StatusOK, envelope(`{"ok":true}`))
			e := newTestServer(u, "key", false)

			raw, _ := json.Marshal(tt.body)
			rec := do(e, http.MethodPost, string(raw))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.EqualValues(t, 1, u.calls.Load())
			require.Len(t, u.prompts, 1)
			for _, want := range tt.expect {
				assert.Contains(t, u.prompts[0], want)
			}
		})
	}
}

func TestWish_MethodNotAllowed(t *testing.T) {
	u := newUpstream(t, http.StatusOK, envelope(`{}`))
	e := newTestServer(u, "key", false)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions} {
		rec := do(e, method, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
		assert.Equal(t, "Method Not Allowed", decodeError(t, rec)["error"])
	}
	assert.EqualValues(t, 0, u.calls.Load())
}

func TestWish_MethodNotAllowedIsLogged(t *testing.T) {
	var logs bytes.Buffer
	u := newUpstream(t, http.StatusOK, envelope(`{}`))
	e := newTestServerWithLogger(u, "key", false, slog.New(slog.NewJSONHandler(&logs, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/wish", nil)
	req.Header.Set("X-Request-Id", "req-405")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, logs.String(), `"msg":"method not allowed"`)
	assert.Contains(t, logs.String(), `"request_id":"req-405"`)
	assert.Contains(t, logs.String(), `"method":"GET"`)
}

func TestWish_MissingKey(t *testing.T) {
	u := newUpstream(t, http.StatusOK, envelope(`{}`))
	e := newTestServer(u, "", false)

	rec := do(e, http.MethodPost, `{"mode":"persona"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API Key is missing in server settings.", decodeError(t, rec)["error"])
	assert.EqualValues(t, 0, u.calls.Load())
}

func TestWish_UpstreamFailure(t *testing.T) {
	upstreamBody := `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`
	u := newUpstream(t, http.StatusTooManyRequests, upstreamBody)
	e := newTestServer(u, "key", false)

	rec := do(e, http.MethodPost, `{"mode":"interpretation","query":"雨を降らせて"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "AI generation failed", out["error"])
	assert.Equal(t, upstreamBody, out["details"])
	assert.EqualValues(t, 1, u.calls.Load())
}

func TestWish_UpstreamFailureEmptyBody(t *testing.T) {
	u := newUpstream(t, http.StatusServiceUnavailable, "")
	e := newTestServer(u, "key", false)

	rec := do(e, http.MethodPost, `{"mode":"persona"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "AI generation failed", out["error"])
	details, ok := out["details"]
	require.True(t, ok, "details must be present: %s", rec.Body.String())
	assert.Equal(t, "", details)
	assert.NotContains(t, out, "details_encoding")
}

func TestWish_UpstreamFailureBinaryBody(t *testing.T) {
	upstreamBody := "bad\xff\xfebytes"
	u := newUpstream(t, http.StatusBadGateway, upstreamBody)
	e := newTestServer(u, "key", false)

	rec := do(e, http.MethodPost, `{"mode":"persona"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "base64", out["details_encoding"])
	decoded, err := base64.StdEncoding.DecodeString(out["details"].(string))
	require.NoError(t, err)
	assert.Equal(t, upstreamBody, string(decoded))
}

func TestWish_CandidateNotJSON(t *testing.T) {
	u := newUpstream(t, http.StatusOK, envelope("ごめんなさい、JSONは苦手です"))
	e := newTestServer(u, "key", false)

	rec := do(e, http.MethodPost, `{"mode":"persona"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "AI response was not valid JSON", out["error"])
	assert.Equal(t, "ごめんなさい、JSONは苦手です", out["raw"])
}

func TestWish_NoCandidate(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	e := newTestServer(u, "key", false)

	rec := do(e, http.MethodPost, `{"mode":"persona"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "AI response had no candidate content", out["error"])
	assert.Equal(t, map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}}, out["raw"])
}

func TestWish_UnknownMode(t *testing.T) {
	u := newUpstream(t, http.StatusOK, envelope(`{}`))
	e := newTestServer(u, "key", false)

	for _, body := range []string{`{"mode":"diagnose"}`, `{"mode":"wish","query":"q"}`, `{}`} {
		rec := do(e, http.MethodPost, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, decodeError(t, rec)["error"], "unknown mode")
	}
	assert.EqualValues(t, 0, u.calls.Load())
}

func TestWish_LegacyWishMode(t *testing.T) {
	completion := `{"interpretation":"i","outcome":"o","reaction":"r","satisfaction_score":12}`
	u := newUpstream(t, http.StatusOK, envelope(completion))
	e := newTestServer(u, "key", true)

	rec := do(e, http.MethodPost, `{"mode":"wish","query":"お菓子がほしい","persona":{"attribute":"a","personality":"p","true_wish":"w"}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, completion, rec.Body.String())
	require.Len(t, u.prompts, 1)
	assert.Contains(t, u.prompts[0], "お菓子がほしい")
}

func TestWish_InvalidBody(t *testing.T) {
	u := newUpstream(t, http.StatusOK, envelope(`{}`))
	e := newTestServer(u, "key", false)

	rec := do(e, http.MethodPost, `{"mode":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec)["error"])
	assert.EqualValues(t, 0, u.calls.Load())
}

func TestHealthzAndMetrics(t *testing.T) {
	u := newUpstream(t, http.StatusOK, envelope(`{"a":1}`))
	e := newTestServer(u, "key", false)
	do(e, http.MethodPost, `{"mode":"persona"}`)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wish_relay_requests_total{mode="persona",outcome="ok"} 1`)
}

func TestUnknownRoute_ErrorShape(t *testing.T) {
	u := newUpstream(t, http.StatusOK, envelope(`{}`))
	e := newTestServer(u, "key", false)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeError(t, rec)["error"])
}
