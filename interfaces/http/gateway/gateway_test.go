package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	name    string
	match   func(*http.Request) bool
	handler http.HandlerFunc
}

func (s *stubService) Name() string                { return s.name }
func (s *stubService) Match(r *http.Request) bool  { return s.match(r) }
func (s *stubService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func newTestGateway(services ...ServiceHandler) http.Handler {
	return New(services, 1<<20, nil, nil).Handler()
}

func TestHealthEndpoints(t *testing.T) {
	handler := newTestGateway(
		&stubService{name: "s3", match: func(*http.Request) bool { return true },
			handler: func(w http.ResponseWriter, r *http.Request) {}},
		&stubService{name: "dynamodb", match: func(*http.Request) bool { return false },
			handler: func(w http.ResponseWriter, r *http.Request) {}},
	)

	for _, path := range []string{"/_localstack/health", "/health", "/_health"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code, path)

		var payload struct {
			Services map[string]string `json:"services"`
			Version  string            `json:"version"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, "running", payload.Services["s3"])
		assert.Equal(t, "running", payload.Services["dynamodb"])
	}
}

func TestDispatchOrder(t *testing.T) {
	var hit string
	ddb := &stubService{
		name:  "dynamodb",
		match: func(r *http.Request) bool { return r.Header.Get("X-Amz-Target") != "" },
		handler: func(w http.ResponseWriter, r *http.Request) {
			hit = "dynamodb"
		},
	}
	s3 := &stubService{
		name:  "s3",
		match: func(*http.Request) bool { return true },
		handler: func(w http.ResponseWriter, r *http.Request) {
			hit = "s3"
		},
	}
	handler := newTestGateway(ddb, s3)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Amz-Target", "DynamoDB_20120810.ListTables")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "dynamodb", hit)

	r = httptest.NewRequest(http.MethodGet, "/bucket/key", nil)
	handler.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "s3", hit)
}

func TestCommonHeaders(t *testing.T) {
	handler := newTestGateway(&stubService{
		name:    "s3",
		match:   func(*http.Request) bool { return true },
		handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.NotEmpty(t, w.Header().Get("x-amz-request-id"))
	assert.NotEmpty(t, w.Header().Get("x-amz-id-2"))
	assert.Equal(t, serverHeader, w.Header().Get("Server"))
}

func TestPermissiveCORSPreflight(t *testing.T) {
	handler := newTestGateway(&stubService{
		name:    "s3",
		match:   func(*http.Request) bool { return true },
		handler: func(w http.ResponseWriter, r *http.Request) { t.Fatal("preflight must not reach services") },
	})

	r := httptest.NewRequest(http.MethodOptions, "/any/path", nil)
	r.Header.Set("Origin", "https://example.com")
	r.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestProbeAgainstRunningGateway(t *testing.T) {
	handler := newTestGateway(&stubService{
		name:    "s3",
		match:   func(*http.Request) bool { return true },
		handler: func(w http.ResponseWriter, r *http.Request) {},
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	addr := server.Listener.Addr().String()
	assert.Equal(t, 0, Probe(addr))
	assert.Equal(t, 1, Probe("127.0.0.1:1"), "nothing listening")
}
