package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTarget string

func (s staticTarget) ConnectURL() string { return string(s) }

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, append([]byte("echo:"), msg...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestProxyRelaysMessages(t *testing.T) {
	chrome := echoServer(t)
	proxy := httptest.NewServer(http.HandlerFunc(NewServer(staticTarget(wsURL(chrome.URL))).HandleDebugConnection))
	defer proxy.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(proxy.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"method":"Browser.getVersion"}`)))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `echo:{"id":1,"method":"Browser.getVersion"}`, string(msg))
}

func TestProxyWithoutSession(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/session/ws", nil)

	NewServer(staticTarget("")).HandleDebugConnection(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxyBrowserUnreachable(t *testing.T) {
	chrome := echoServer(t)
	dead := wsURL(chrome.URL)
	chrome.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/session/ws", nil)

	NewServer(staticTarget(dead)).HandleDebugConnection(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
