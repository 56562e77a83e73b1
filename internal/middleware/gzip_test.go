package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusNoContent {
			_, _ = w.Write([]byte(`{"echo":` + jsonQuote(string(body)) + `}`))
		}
	}
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func gzipBody(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		status       int
		body         string
		gzipRequest  bool
		acceptGzip   bool
		wantEncoding string
		wantBody     string
	}{
		{
			name:         "checkout response compressed",
			method:       http.MethodPost,
			path:         "/api/checkout",
			status:       http.StatusOK,
			body:         `{"planId":"starter"}`,
			acceptGzip:   true,
			wantEncoding: "gzip",
			wantBody:     `{"echo":"{\"planId\":\"starter\"}"}`,
		},
		{
			name:     "plain client",
			method:   http.MethodGet,
			path:     "/api/plans",
			status:   http.StatusOK,
			wantBody: `{"echo":""}`,
		},
		{
			name:         "compressed request body",
			method:       http.MethodPost,
			path:         "/api/discounts/preview",
			status:       http.StatusOK,
			body:         `{"code":"LAUNCH25"}`,
			gzipRequest:  true,
			acceptGzip:   true,
			wantEncoding: "gzip",
			wantBody:     `{"echo":"{\"code\":\"LAUNCH25\"}"}`,
		},
		{
			name:       "artifact downloads left as is",
			method:     http.MethodGet,
			path:       "/downloads/shipfast-boilerplate-v1.1.0.zip",
			status:     http.StatusOK,
			acceptGzip: true,
			wantBody:   `{"echo":""}`,
		},
		{
			name:       "client error sent uncompressed",
			method:     http.MethodPost,
			path:       "/api/checkout",
			status:     http.StatusBadRequest,
			body:       "bad",
			acceptGzip: true,
			wantBody:   `{"echo":"bad"}`,
		},
		{
			name:       "no content has no body",
			method:     http.MethodDelete,
			path:       "/api/session",
			status:     http.StatusNoContent,
			acceptGzip: true,
		},
		{
			name:       "head request",
			method:     http.MethodHead,
			path:       "/api/plans",
			status:     http.StatusOK,
			acceptGzip: true,
			wantBody:   `{"echo":""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.body)
			if tt.gzipRequest {
				body = gzipBody(t, tt.body)
			}

			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}
			rec := httptest.NewRecorder()

			GzipMiddleware(echoHandler(tt.status)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))
			assert.Equal(t, tt.wantBody, readBody(t, res))
		})
	}
}

func TestGzipMiddleware_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader("not gzip at all"))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()

	called := false
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "validation_error", got.Error)
}
