package chi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/marcelsud/webhook-proxy/proxy/mocks"
	"github.com/marcelsud/webhook-proxy/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const discordURL = "https://discord.com/api/webhooks/123/abc"

func testOptions() Options {
	logger := zerolog.Nop()
	return Options{Logger: &logger}
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

type recorderSpy struct {
	registrations []string
	forwards      []string
	rejections    []string
}

func (r *recorderSpy) RecordRegistration(_ context.Context, result string) {
	r.registrations = append(r.registrations, result)
}

func (r *recorderSpy) RecordForward(_ context.Context, result string, _ time.Duration) {
	r.forwards = append(r.forwards, result)
}

func (r *recorderSpy) RecordRateLimited(_ context.Context, limiter string) {
	r.rejections = append(r.rejections, limiter)
}

func TestPostCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Register", mock.Anything, discordURL, "http://example.com").
			Return("http://example.com/api/proxy/abc12345", nil)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"`+discordURL+`"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var resp createResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "http://example.com/api/proxy/abc12345", resp.ProxyURL)
	})

	t.Run("invalid webhook url", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Register", mock.Anything, "https://example.com/hook", mock.Anything).
			Return("", proxy.ErrInvalidInput)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"https://example.com/hook"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgInvalidWebhookURL, errorMessage(t, w))
	})

	t.Run("missing field is passed as empty", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Register", mock.Anything, "", mock.Anything).Return("", proxy.ErrInvalidInput)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/create", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgInvalidWebhookURL, errorMessage(t, w))
	})

	t.Run("malformed json", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgInvalidJSON, errorMessage(t, w))
		s.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("trailing data after the object", func(t *testing.T) {
		for name, body := range map[string]string{
			"garbage":       `{"webhookUrl":"` + discordURL + `"} junk`,
			"second object": `{"webhookUrl":"` + discordURL + `"}{"webhookUrl":"x"}`,
		} {
			t.Run(name, func(t *testing.T) {
				s := mocks.NewUseCase(t)
				h := Handlers(ctx, s, testOptions())

				w := doRequest(t, h, http.MethodPost, "/api/create", body)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, msgInvalidJSON, errorMessage(t, w))
				s.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("trailing whitespace is accepted", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Register", mock.Anything, discordURL, mock.Anything).
			Return("http://example.com/api/proxy/abc12345", nil)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"`+discordURL+`"}`+"\n")

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("storage failure hides the cause", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Register", mock.Anything, discordURL, mock.Anything).
			Return("", fmt.Errorf("%w: storing mapping: dial tcp: connection refused", proxy.ErrStorageWrite))
		spy := &recorderSpy{}
		opts := testOptions()
		opts.Recorder = spy
		h := Handlers(ctx, s, opts)

		w := doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"`+discordURL+`"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, msgCreateFailed, errorMessage(t, w))
		assert.NotContains(t, w.Body.String(), "connection refused")
		assert.Equal(t, []string{"storage_write_failure"}, spy.registrations)
	})

	t.Run("base url follows the request", func(t *testing.T) {
		tests := []struct {
			name   string
			setup  func(r *http.Request)
			public string
			want   string
		}{
			{"plain http", func(r *http.Request) {}, "", "http://proxy.local:3000"},
			{"tls", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, "", "https://proxy.local:3000"},
			{"forwarded proto", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https, http") }, "", "https://proxy.local:3000"},
			{"configured public url", func(r *http.Request) {}, "https://hooks.example.com", "https://hooks.example.com"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := mocks.NewUseCase(t)
				s.On("Register", mock.Anything, discordURL, tt.want).Return(tt.want+"/api/proxy/abc12345", nil)
				opts := testOptions()
				opts.PublicBaseURL = tt.public
				h := Handlers(ctx, s, opts)

				req := httptest.NewRequest(http.MethodPost, "/api/create", strings.NewReader(`{"webhookUrl":"`+discordURL+`"}`))
				req.Host = "proxy.local:3000"
				tt.setup(req)
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)

				assert.Equal(t, http.StatusOK, w.Code)
			})
		}
	})
}

func TestPostProxy(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", []byte(`{"content":"hi"}`)).Return(nil)
		spy := &recorderSpy{}
		opts := testOptions()
		opts.Recorder = spy
		h := Handlers(ctx, s, opts)

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{"content":"hi"}`)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, []string{"ok"}, spy.forwards)
	})

	t.Run("empty body is relayed as an empty object", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", []byte(`{}`)).Return(nil)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", "")

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "zzzzzzzz", mock.Anything).Return(proxy.ErrNotFound)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/proxy/zzzzzzzz", `{"content":"hi"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, msgNotFound, errorMessage(t, w))
	})

	t.Run("missing id", func(t *testing.T) {
		for _, target := range []string{"/api/proxy/", "/api/proxy"} {
			t.Run(target, func(t *testing.T) {
				s := mocks.NewUseCase(t)
				s.On("Forward", mock.Anything, "", mock.Anything).Return(proxy.ErrMissingIdentifier)
				h := Handlers(ctx, s, testOptions())

				w := doRequest(t, h, http.MethodPost, target, `{"content":"hi"}`)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, msgMissingID, errorMessage(t, w))
			})
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", mock.Anything).
			Return(fmt.Errorf("%w: %w", proxy.ErrUpstreamForward, &proxy.UpstreamError{StatusCode: 401, Body: "Invalid Webhook Token"}))
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{"content":"hi"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, msgForwardFailed, errorMessage(t, w))
		assert.NotContains(t, w.Body.String(), "Invalid Webhook Token")
	})

	t.Run("storage read failure", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", mock.Anything).Return(proxy.ErrStorageRead)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{"content":"hi"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, msgForwardFailed, errorMessage(t, w))
	})

	t.Run("invalid json is rejected before forwarding", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		h := Handlers(ctx, s, testOptions())

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `not json`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgInvalidJSON, errorMessage(t, w))
		s.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("top-level scalars are rejected", func(t *testing.T) {
		for _, body := range []string{`"x"`, `42`, `true`, `null`, ` "padded" `} {
			t.Run(body, func(t *testing.T) {
				s := mocks.NewUseCase(t)
				h := Handlers(ctx, s, testOptions())

				w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", body)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, msgInvalidJSON, errorMessage(t, w))
				s.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("request log carries the relay id", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		opts := testOptions()
		opts.Logger = &logger

		var relayID string
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", mock.Anything).
			Run(func(args mock.Arguments) { relayID = proxy.RelayIDFrom(args.Get(0).(context.Context)) }).
			Return(nil)
		h := Handlers(ctx, s, opts)

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{"content":"hi"}`)

		require.Equal(t, http.StatusNoContent, w.Code)
		require.NotEmpty(t, relayID)
		var response string
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if strings.Contains(line, "Response: 204") {
				response = line
			}
		}
		assert.Contains(t, response, `"relay_id":"`+relayID+`"`)
	})

	t.Run("oversized payload", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		opts := testOptions()
		opts.MaxPayloadBytes = 16
		h := Handlers(ctx, s, opts)

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{"content":"this is longer than sixteen bytes"}`)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, msgPayloadTooLarge, errorMessage(t, w))
	})
}

func TestRateLimitedRoutes(t *testing.T) {
	ctx := context.Background()

	t.Run("create limiter rejects the 21st request", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Register", mock.Anything, discordURL, mock.Anything).
			Return("http://example.com/api/proxy/abc12345", nil).Times(20)
		spy := &recorderSpy{}
		opts := testOptions()
		opts.Recorder = spy
		opts.CreateLimiter = ratelimit.New(ratelimit.DefaultPolicies()[ratelimit.CreateLimiter], ratelimit.NewMemoryStore())
		h := Handlers(ctx, s, opts)

		for i := 0; i < 20; i++ {
			w := doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"`+discordURL+`"}`)
			require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		}

		w := doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"`+discordURL+`"}`)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, ratelimit.TooManyRequestsMessage, errorMessage(t, w))
		assert.Equal(t, []string{ratelimit.CreateLimiter}, spy.rejections)
	})

	t.Run("proxy limiter rejects the 101st request", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", mock.Anything).Return(nil).Times(100)
		opts := testOptions()
		opts.ProxyLimiter = ratelimit.New(ratelimit.DefaultPolicies()[ratelimit.ProxyLimiter], ratelimit.NewMemoryStore())
		h := Handlers(ctx, s, opts)

		for i := 0; i < 100; i++ {
			w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{"content":"hi"}`)
			require.Equal(t, http.StatusNoContent, w.Code, "request %d", i+1)
		}

		w := doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{"content":"hi"}`)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("limiters are independent", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", mock.Anything).Return(nil)
		counters := ratelimit.NewMemoryStore()
		opts := testOptions()
		opts.CreateLimiter = ratelimit.New(ratelimit.Policy{Name: ratelimit.CreateLimiter, Limit: 1, Window: time.Hour}, counters)
		opts.ProxyLimiter = ratelimit.New(ratelimit.DefaultPolicies()[ratelimit.ProxyLimiter], counters)
		s.On("Register", mock.Anything, discordURL, mock.Anything).Return("http://example.com/api/proxy/abc12345", nil).Once()
		h := Handlers(ctx, s, opts)

		require.Equal(t, http.StatusOK, doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"`+discordURL+`"}`).Code)
		require.Equal(t, http.StatusTooManyRequests, doRequest(t, h, http.MethodPost, "/api/create", `{"webhookUrl":"`+discordURL+`"}`).Code)

		assert.Equal(t, http.StatusNoContent, doRequest(t, h, http.MethodPost, "/api/proxy/abc12345", `{}`).Code)
	})

	t.Run("rotating X-Forwarded-For does not open a fresh bucket", func(t *testing.T) {
		for _, hops := range []int{0, 1} {
			t.Run(fmt.Sprintf("%d trusted hops", hops), func(t *testing.T) {
				s := mocks.NewUseCase(t)
				s.On("Register", mock.Anything, discordURL, mock.Anything).
					Return("http://example.com/api/proxy/abc12345", nil).Times(20)
				opts := testOptions()
				opts.TrustProxyHops = hops
				opts.CreateLimiter = ratelimit.New(ratelimit.DefaultPolicies()[ratelimit.CreateLimiter], ratelimit.NewMemoryStore())
				h := Handlers(ctx, s, opts)

				accepted := 0
				for i := 0; i < 50; i++ {
					req := httptest.NewRequest(http.MethodPost, "/api/create", strings.NewReader(`{"webhookUrl":"`+discordURL+`"}`))
					req.RemoteAddr = "198.51.100.7:4000"
					req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d, 198.51.100.7", i))
					req.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i))
					req.Header.Set("True-Client-IP", fmt.Sprintf("10.2.0.%d", i))
					w := httptest.NewRecorder()
					h.ServeHTTP(w, req)
					if w.Code == http.StatusOK {
						accepted++
					}
				}

				assert.Equal(t, 20, accepted)
			})
		}
	})

	t.Run("trusted proxy hop separates clients", func(t *testing.T) {
		s := mocks.NewUseCase(t)
		s.On("Forward", mock.Anything, "abc12345", mock.Anything).Return(nil).Twice()
		opts := testOptions()
		opts.TrustProxyHops = 1
		opts.ProxyLimiter = ratelimit.New(ratelimit.Policy{Name: ratelimit.ProxyLimiter, Limit: 1, Window: time.Hour}, ratelimit.NewMemoryStore())
		h := Handlers(ctx, s, opts)

		for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
			req := httptest.NewRequest(http.MethodPost, "/api/proxy/abc12345", strings.NewReader(`{}`))
			req.RemoteAddr = "10.0.0.1:51000"
			req.Header.Set("X-Forwarded-For", ip)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusNoContent, w.Code, ip)
		}
	})
}

func TestHealthAndStatic(t *testing.T) {
	ctx := context.Background()
	h := Handlers(ctx, mocks.NewUseCase(t), testOptions())

	w := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = doRequest(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "webhookForm")

	w = doRequest(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code, "without a metrics handler the path falls through to the front-end")
}
