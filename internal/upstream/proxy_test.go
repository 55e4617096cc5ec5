package upstream

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-messenger/internal/trust"
)

type seenRequest struct {
	Path      string
	Query     string
	Secret    string
	UserID    string
	Username  string
	Auth      string
	Forwarded string
	Body      string
}

func recordingServer(t *testing.T) (*httptest.Server, chan seenRequest) {
	t.Helper()

	seen := make(chan seenRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Secret:    r.Header.Get(trust.HeaderGatewaySecret),
			UserID:    r.Header.Get(trust.HeaderUserID),
			Username:  r.Header.Get(trust.HeaderUsername),
			Auth:      r.Header.Get("Authorization"),
			Forwarded: r.Header.Get(trust.HeaderForwardedFor),
			Body:      string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)

	return srv, seen
}

func newTestGate(t *testing.T) *trust.Gate {
	t.Helper()
	gate, err := trust.NewGate("shared_secret_key")
	require.NoError(t, err)
	return gate
}

func TestProxyPrefixStampsPrincipal(t *testing.T) {
	t.Parallel()

	srv, seen := recordingServer(t)
	proxy, err := NewProxy("message-service", srv.URL, newTestGate(t), NewTransport(time.Second, time.Second))
	require.NoError(t, err)

	handler := proxy.Prefix("/api/v1/messages", "/internal/v1/messages")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/send?draft=false", strings.NewReader(`{"receiverId":7}`))
	req.RemoteAddr = "198.51.100.4:40000"
	req.Header.Set("Authorization", "Bearer client-token")
	req.Header.Set(trust.HeaderUserID, "1")
	req = req.WithContext(trust.WithPrincipal(req.Context(), trust.NewPrincipal(42, "alice")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	got := <-seen
	require.Equal(t, "/internal/v1/messages/send", got.Path)
	require.Equal(t, "draft=false", got.Query)
	require.Equal(t, "shared_secret_key", got.Secret)
	require.Equal(t, "42", got.UserID)
	require.Equal(t, "alice", got.Username)
	require.Empty(t, got.Auth)
	require.Equal(t, "198.51.100.4", got.Forwarded)
	require.Equal(t, `{"receiverId":7}`, got.Body)
}

func TestProxyToAnonymous(t *testing.T) {
	t.Parallel()

	srv, seen := recordingServer(t)
	proxy, err := NewProxy("login-service", srv.URL+"/", newTestGate(t), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader(`{}`))
	req.Header.Set(trust.HeaderUserID, "1")
	req.Header.Set(trust.HeaderUsername, "spoofed")

	rec := httptest.NewRecorder()
	proxy.To("/internal/v1/register").ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	got := <-seen
	require.Equal(t, "/internal/v1/register", got.Path)
	require.Equal(t, "shared_secret_key", got.Secret)
	require.Empty(t, got.UserID)
	require.Empty(t, got.Username)
}

func TestProxyUnavailableUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	proxy, err := NewProxy("message-service", target, newTestGate(t), NewTransport(200*time.Millisecond, 200*time.Millisecond))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	proxy.Prefix("/api/v1/messages", "/internal/v1/messages").
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages/conversation/7", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.False(t, body.Success)
	require.Equal(t, "BAD_GATEWAY", body.Error.Code)
}

func TestNewProxyValidates(t *testing.T) {
	t.Parallel()

	_, err := NewProxy("login-service", "localhost:8082", newTestGate(t), nil)
	require.Error(t, err)

	_, err = NewProxy("login-service", "http://localhost:8082", nil, nil)
	require.Error(t, err)
}

func TestNewClientTimeouts(t *testing.T) {
	t.Parallel()

	client := NewClient(0, 0)
	transport := client.Transport.(*http.Transport)
	require.Equal(t, DefaultReadTimeout, transport.ResponseHeaderTimeout)
	require.Equal(t, DefaultConnectTimeout+DefaultReadTimeout, client.Timeout)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(slow.Close)

	_, err := NewClient(time.Second, 50*time.Millisecond).Get(slow.URL)
	require.Error(t, err)
}
