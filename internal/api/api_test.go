package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/smiles-flights/internal/browser"
	"github.com/shehryarbajwa/smiles-flights/internal/extract"
	"github.com/shehryarbajwa/smiles-flights/internal/lock"
	"github.com/shehryarbajwa/smiles-flights/internal/proxy"
	"github.com/shehryarbajwa/smiles-flights/internal/ratelimit"
	"github.com/shehryarbajwa/smiles-flights/internal/search"
	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

type fakeSearcher struct {
	busy    bool
	err     error
	queries []string

	// restartErr, when set, is what the lock reports at restart time
	restartErr error
	restarter  *fakeSessions
}

func (f *fakeSearcher) Run(ctx context.Context, raw string, progress func(string)) (*models.SearchResult, error) {
	f.queries = append(f.queries, raw)
	if f.err != nil {
		return &models.SearchResult{State: models.StateFailed, Error: f.err.Error(), Messages: []string{"❌"}}, f.err
	}
	return &models.SearchResult{
		State:    models.StateSuccess,
		Offers:   []models.FlightOffer{{OriginLeg: "EZE"}},
		Messages: []string{"ok"},
	}, nil
}

func (f *fakeSearcher) Busy(ctx context.Context) bool { return f.busy }

func (f *fakeSearcher) RestartBrowser(ctx context.Context) error {
	if f.busy {
		return lock.ErrBusy
	}
	if f.restartErr != nil {
		return f.restartErr
	}
	_, err := f.restarter.Restart(ctx)
	return err
}

type fakeSessions struct {
	session    *models.BrowserSession
	restartErr error
	restarts   int
}

func (f *fakeSessions) Status() (*models.BrowserSession, bool) {
	return f.session, f.session != nil
}

func (f *fakeSessions) ConnectURL() string { return "" }

func (f *fakeSessions) Restart(ctx context.Context) (*browser.Session, error) {
	f.restarts++
	if f.restartErr != nil {
		return nil, f.restartErr
	}
	f.session = &models.BrowserSession{ID: fmt.Sprintf("s-%d", f.restarts), Status: models.StatusRunning, Restarts: f.restarts}
	return &browser.Session{ID: f.session.ID}, nil
}

func newRouter(searcher *fakeSearcher, sessions *fakeSessions, limiter *ratelimit.Limiter) http.Handler {
	if limiter == nil {
		limiter = ratelimit.NewLimiter(1000, 100)
	}
	searcher.restarter = sessions
	return NewHandler(searcher, sessions).SetupRoutes(proxy.NewServer(sessions), limiter)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	rec := do(t, newRouter(searcher, &fakeSessions{}, nil), http.MethodPost, "/v1/searches", `{"query":"EZE MAD 25-12"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"EZE MAD 25-12"}, searcher.queries)

	var result models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.StateSuccess, result.State)
	assert.Len(t, result.Offers, 1)
}

func TestCreateSearchStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{lock.ErrBusy, http.StatusConflict},
		{fmt.Errorf("%w: got 2 tokens", search.ErrInvalidArgumentCount), http.StatusBadRequest},
		{search.ErrInvalidDateFormat, http.StatusBadRequest},
		{search.ErrRestrictedFeature, http.StatusBadRequest},
		{&extract.ExtractionError{Attempts: 3, Err: extract.ErrPageLoadTimeout}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("search panicked: boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := do(t, newRouter(&fakeSearcher{err: tt.err}, &fakeSessions{}, nil), http.MethodPost, "/v1/searches", `{"query":"x"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"messages"`)
		})
	}
}

func TestCreateSearchBadBody(t *testing.T) {
	searcher := &fakeSearcher{}
	rec := do(t, newRouter(searcher, &fakeSessions{}, nil), http.MethodPost, "/v1/searches", `{`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, searcher.queries)
}

func TestSearchesAreRateLimited(t *testing.T) {
	router := newRouter(&fakeSearcher{}, &fakeSessions{}, ratelimit.NewLimiter(10, 1))

	first := do(t, router, http.MethodPost, "/v1/searches", `{"query":"EZE MAD 25-12"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "10", first.Header().Get("X-RateLimit-Limit"))

	second := do(t, router, http.MethodPost, "/v1/searches", `{"query":"EZE MAD 25-12"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", "").Code)
}

func TestGetSession(t *testing.T) {
	sessions := &fakeSessions{}
	router := newRouter(&fakeSearcher{}, sessions, nil)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/v1/session", "").Code)

	sessions.session = &models.BrowserSession{ID: "abc", Status: models.StatusRunning, Backend: "local", StartedAt: time.Now()}
	rec := do(t, router, http.MethodGet, "/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.BrowserSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, "local", got.Backend)
}

func TestRestartSession(t *testing.T) {
	sessions := &fakeSessions{}
	rec := do(t, newRouter(&fakeSearcher{}, sessions, nil), http.MethodPost, "/v1/session/restart", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sessions.restarts)
	assert.Contains(t, rec.Body.String(), `"s-1"`)
}

func TestRestartSessionWhileBusy(t *testing.T) {
	sessions := &fakeSessions{}
	rec := do(t, newRouter(&fakeSearcher{busy: true}, sessions, nil), http.MethodPost, "/v1/session/restart", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, sessions.restarts)
}

func TestRestartSessionLockTakenAfterBusyCheck(t *testing.T) {
	sessions := &fakeSessions{}
	searcher := &fakeSearcher{restartErr: fmt.Errorf("restart: %w", lock.ErrBusy)}
	rec := do(t, newRouter(searcher, sessions, nil), http.MethodPost, "/v1/session/restart", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), lock.ErrBusy.Error())
	assert.Zero(t, sessions.restarts)
}

func TestRestartSessionFailure(t *testing.T) {
	sessions := &fakeSessions{restartErr: errors.New("no chrome")}
	rec := do(t, newRouter(&fakeSearcher{}, sessions, nil), http.MethodPost, "/v1/session/restart", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no chrome")
}

func TestGetDebugURL(t *testing.T) {
	sessions := &fakeSessions{session: &models.BrowserSession{ID: "abc", Status: models.StatusRunning}}
	rec := do(t, newRouter(&fakeSearcher{}, sessions, nil), http.MethodGet, "/v1/session/debug", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ws://example.com/v1/session/ws"`)
}

func TestHealth(t *testing.T) {
	rec := do(t, newRouter(&fakeSearcher{busy: true}, &fakeSessions{}, nil), http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["busy"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "ip:192.0.2.1", getClientID(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.7", getClientID(req))

	req.Header.Set("X-Client-ID", "ops")
	assert.Equal(t, "client:ops", getClientID(req))
}
