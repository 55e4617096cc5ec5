package authority

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"go-messenger/internal/model"
	"go-messenger/internal/trust"
	"go-messenger/internal/upstream"
	"go-messenger/internal/usercache"
)

const testSecret = "shared_secret_key"

func newLoginStub(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.Header.Get(trust.HeaderGatewaySecret) != testSecret {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/internal/v1/auth/validate-user/{userID}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch chi.URLParam(r, "userID") {
		case "7":
			_, _ = w.Write([]byte(`{"success":true,"data":{"userId":7,"exists":true}}`))
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"success":true,"data":{"userId":0,"exists":false}}`))
		}
	})
	r.Get("/internal/v1/auth/user-info/{userID}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch chi.URLParam(r, "userID") {
		case "7":
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":7,"username":"bob","email":"bob@example.com"}}`))
		case "8":
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":8,"username":"slow"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"User not found"}}`))
		}
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	gate, err := trust.NewGate(testSecret)
	require.NoError(t, err)

	client, err := New(baseURL, gate, upstream.NewClient(time.Second, 100*time.Millisecond))
	require.NoError(t, err)
	return client
}

func TestUserExists(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := newTestClient(t, newLoginStub(t, &calls).URL)
	ctx := context.Background()

	exists, err := client.UserExists(ctx, 7)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = client.UserExists(ctx, 99)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = client.UserExists(ctx, 500)
	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)

	require.Equal(t, int64(3), calls.Load())
}

func TestUsername(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := newTestClient(t, newLoginStub(t, &calls).URL)
	ctx := context.Background()

	username, found, err := client.Username(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "bob", username)

	_, found, err = client.Username(ctx, 99)
	require.NoError(t, err)
	require.False(t, found)

	_, err = client.UserInfo(ctx, 99)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

type absentLocal struct{}

func (absentLocal) UserExists(context.Context, int64) (bool, error)       { return false, nil }
func (absentLocal) Username(context.Context, int64) (string, bool, error) { return "", false, nil }

func TestMissingEndpointIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	exists, err := client.UserExists(ctx, 7)
	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	require.False(t, exists)

	// user-info is the one path where 404 means the user is absent.
	_, err = client.UserInfo(ctx, 7)
	require.ErrorIs(t, err, model.ErrUserNotFound)

	cache := usercache.New(absentLocal{}, usercache.WithRemote(client))
	require.Equal(t, usercache.Unresolved, cache.Resolve(ctx, 7))
	require.False(t, cache.Exists(ctx, 7))
}

func TestReadTimeoutIsUnavailable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := newTestClient(t, newLoginStub(t, &calls).URL)

	_, _, err := client.Username(context.Background(), 8)
	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestWrongSecretIsUnavailable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := newLoginStub(t, &calls)

	gate, err := trust.NewGate("some_other_secret")
	require.NoError(t, err)
	client, err := New(srv.URL, gate, nil)
	require.NoError(t, err)

	_, err = client.UserExists(context.Background(), 7)
	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestUnreachableIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newTestClient(t, url)
	_, err := client.UserExists(context.Background(), 7)
	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	gate, err := trust.NewGate(testSecret)
	require.NoError(t, err)

	_, err = New("login:8082", gate, nil)
	require.Error(t, err)

	_, err = New("http://login:8082", nil, nil)
	require.Error(t, err)
}
