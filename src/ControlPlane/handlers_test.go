package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxshorts/fluxshorts/src/internal/adapters/memory"
	"github.com/fluxshorts/fluxshorts/src/internal/domain"
	"github.com/fluxshorts/fluxshorts/src/internal/services"
)

type staticMovies []domain.Movie

func (s staticMovies) ListMovies(ctx context.Context) ([]domain.Movie, error) {
	return s, nil
}

// tokenTable maps raw bearer tokens to identities.
type tokenTable map[string]*identity

func (t tokenTable) Verify(ctx context.Context, rawToken string) (*identity, error) {
	id, ok := t[rawToken]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return id, nil
}

type testServer struct {
	*httptest.Server
	users *memory.InMemoryUserRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	movies := staticMovies{
		{ID: "1", Title: "Neon Rain", Metadata: domain.MovieMetadata{Genre: "Thriller", Year: 2024}},
		{ID: "2", Title: "Paper Boats", Metadata: domain.MovieMetadata{Genre: "Drama", Year: 2023}},
		{ID: "3", Title: "Night Shift", Metadata: domain.MovieMetadata{Genre: "Thriller", Year: 2022}},
		{ID: "4", Title: "Low Tide", Metadata: domain.MovieMetadata{Genre: "Thriller", Year: 2021}},
	}

	users := memory.NewUserRepo()
	progress := memory.NewProgressRepo()
	entitlements := services.NewEntitlementService(memory.NewSubscriptionRepo())
	playback := services.NewPlaybackService(
		entitlements,
		progress,
		services.RouteNavigator{Route: upgradeRoute},
		services.PlaybackConfig{CheckTimeout: time.Second},
	)
	auth := &AuthMiddleware{
		Verifier: tokenTable{
			"alice-token": {Sub: "alice", Email: "alice@example.com", Name: "Alice"},
			"bob-token":   {Sub: "bob", PreferredUsername: "bob"},
		},
		UserRepo: users,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}

	api := NewAPI(services.NewCatalogService(movies, nil), entitlements, playback, progress, auth)
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(func() {
		srv.Close()
		playback.Shutdown(context.Background())
	})
	return &testServer{Server: srv, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	resp, body := srv.do(t, http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	resp, body = srv.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "fluxshorts_playback_sessions_active")
}

func TestMovieEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/api/v1/movies", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Movie](t, body), 4)

	_, body = srv.do(t, http.MethodGet, "/api/v1/movies/featured", "", "")
	assert.Len(t, decode[[]domain.Movie](t, body), 3)

	_, body = srv.do(t, http.MethodGet, "/api/v1/movies/recent", "", "")
	recent := decode[[]domain.Movie](t, body)
	require.Len(t, recent, 1)
	assert.Equal(t, "4", recent[0].ID)

	resp, body = srv.do(t, http.MethodGet, "/api/v1/movies/2", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Paper Boats", decode[domain.Movie](t, body).Title)
	assert.Contains(t, string(body), `"thumbnailUrl"`)

	_, body = srv.do(t, http.MethodGet, "/api/v1/movies/1/related", "", "")
	related := decode[[]domain.Movie](t, body)
	require.Len(t, related, 2)
	assert.Equal(t, "3", related[0].ID)
	assert.Equal(t, "4", related[1].ID)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/movies/99", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEntitlementAndSubscription(t *testing.T) {
	srv := newTestServer(t)

	_, body := srv.do(t, http.MethodGet, "/api/v1/entitlement", "", "")
	assert.JSONEq(t, `{"paid": false}`, string(body))

	_, body = srv.do(t, http.MethodGet, "/api/v1/entitlement", "alice-token", "")
	assert.JSONEq(t, `{"paid": false}`, string(body))

	resp, _ := srv.do(t, http.MethodPost, "/api/v1/subscriptions", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = srv.do(t, http.MethodPost, "/api/v1/subscriptions", "alice-token", `{"reference":"flux_1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sub := decode[domain.Subscription](t, body)
	assert.True(t, sub.Paid)
	assert.Equal(t, "alice", sub.UserID)
	assert.Equal(t, "flux_1", sub.Reference)

	_, body = srv.do(t, http.MethodGet, "/api/v1/entitlement", "alice-token", "")
	assert.JSONEq(t, `{"paid": true}`, string(body))

	_, body = srv.do(t, http.MethodGet, "/api/v1/entitlement", "bob-token", "")
	assert.JSONEq(t, `{"paid": false}`, string(body))
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodGet, "/api/v1/entitlement", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/entitlement", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic abc")
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, raw.StatusCode)

	srv.do(t, http.MethodGet, "/api/v1/entitlement", "bob-token", "")
	user, err := srv.users.GetByID(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Email)

	srv.do(t, http.MethodGet, "/api/v1/entitlement", "alice-token", "")
	user, err = srv.users.GetByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
}

func TestRequireAuthWithoutProvider(t *testing.T) {
	m := &AuthMiddleware{UserRepo: memory.NewUserRepo(), logger: zerolog.Nop(), now: time.Now}
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var seen string
	opt := m.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = "anonymous:" + GetUserID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	opt.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "anonymous:", seen)
}

func TestSessionFlow_UnpaidViewer(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodPost, "/api/v1/sessions", "alice-token", `{"movieId":"1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	opened := decode[services.SessionView](t, body)
	assert.Equal(t, domain.GateWatching, opened.State)
	base := "/api/v1/sessions/" + opened.ID

	_, body = srv.do(t, http.MethodPost, base+"/play", "alice-token", "")
	assert.True(t, decode[services.SessionView](t, body).Playing)

	for _, evt := range []string{`{"currentTime": 10}`, `{"positionMillis": 30000}`, `{"position": 44}`} {
		resp, body = srv.do(t, http.MethodPost, base+"/position", "alice-token", evt)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[services.SessionView](t, body).PaywallTriggered)
	}

	_, body = srv.do(t, http.MethodPost, base+"/position", "alice-token", `{"currentTime": 46}`)
	assert.True(t, decode[services.SessionView](t, body).PaywallTriggered)

	require.Eventually(t, func() bool {
		_, body := srv.do(t, http.MethodGet, base, "alice-token", "")
		return decode[services.SessionView](t, body).PaywallVisible
	}, 2*time.Second, 10*time.Millisecond)

	_, body = srv.do(t, http.MethodPost, base+"/position", "alice-token", `{}`)
	view := decode[services.SessionView](t, body)
	assert.Contains(t, view.Commands, domain.CommandPause)
	assert.Equal(t, domain.GatePausedPromptShown, view.State)
	assert.Nil(t, view.PositionSeconds)
	assert.False(t, view.Playing)

	_, body = srv.do(t, http.MethodPost, base+"/dismiss", "alice-token", "")
	view = decode[services.SessionView](t, body)
	assert.False(t, view.PaywallVisible)
	assert.True(t, view.PaywallTriggered)

	resp, body = srv.do(t, http.MethodPost, base+"/accept", "alice-token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"redirect": "/subscribe"}`, string(body))

	resp, _ = srv.do(t, http.MethodDelete, base, "alice-token", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, base, "alice-token", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionFlow_PaidViewer(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodPost, "/api/v1/subscriptions", "alice-token", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, body := srv.do(t, http.MethodPost, "/api/v1/sessions", "alice-token", `{"movieId":"2"}`)
	base := "/api/v1/sessions/" + decode[services.SessionView](t, body).ID

	srv.do(t, http.MethodPost, base+"/position", "alice-token", `{"currentTime": 50}`)

	require.Eventually(t, func() bool {
		_, body := srv.do(t, http.MethodGet, base, "alice-token", "")
		return decode[services.SessionView](t, body).State == domain.GateWatchingPastGate
	}, 2*time.Second, 10*time.Millisecond)

	resp, body = srv.do(t, http.MethodGet, "/api/v1/movies/2/progress", "alice-token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 50.0, decode[domain.WatchProgress](t, body).Position)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/movies/1/progress", "alice-token", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodPost, "/api/v1/sessions", "", `{"movieId":"404"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/sessions", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/sessions", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/sessions/missing/position", "", `{"currentTime": 1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, "/api/v1/sessions/missing", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body := srv.do(t, http.MethodPost, "/api/v1/sessions", "", `{"movieId":"1"}`)
	base := "/api/v1/sessions/" + decode[services.SessionView](t, body).ID
	resp, _ = srv.do(t, http.MethodPost, base+"/position", "", `{"currentTime":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnonymousSessionIsPaywalled(t *testing.T) {
	srv := newTestServer(t)

	_, body := srv.do(t, http.MethodPost, "/api/v1/sessions", "", `{"movieId":"3"}`)
	base := "/api/v1/sessions/" + decode[services.SessionView](t, body).ID

	srv.do(t, http.MethodPost, base+"/position", "", `{"positionMillis": 45000}`)

	require.Eventually(t, func() bool {
		_, body := srv.do(t, http.MethodGet, base, "", "")
		return decode[services.SessionView](t, body).PaywallVisible
	}, 2*time.Second, 10*time.Millisecond)
}
