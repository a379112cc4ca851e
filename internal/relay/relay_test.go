package relay_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msandnes/invoiceagent/internal/config"
	"github.com/msandnes/invoiceagent/internal/relay"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newRelay(t *testing.T, backendURL string) *httptest.Server {
	t.Helper()
	r, err := relay.New(&config.Config{BackendOrigin: backendURL}, quietLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(r.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestPlainRequestsPassThroughWithPrefixStripped(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "hello from backend")
	}))
	defer backend.Close()

	ts := newRelay(t, backend.URL)

	resp, err := http.Get(ts.URL + "/agents/api/vouchers?instanceId=s1")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/vouchers", resp.Header.Get("X-Seen-Path"))
	assert.Equal(t, "hello from backend", string(body))
}

func TestWebSocketFramesBridgeBothWays(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoice-agent/s1", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, append([]byte("echo:"), data...)); err != nil {
				return
			}
		}
	}))
	defer backend.Close()

	ts := newRelay(t, backend.URL)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/agents/invoice-agent/s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:ping", string(data))
}

func TestBackendUpgradeRefusalYields502Class(t *testing.T) {
	// Backend speaks plain HTTP and never upgrades.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websockets here", http.StatusNotImplemented)
	}))
	defer backend.Close()

	ts := newRelay(t, backend.URL)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/agents/invoice-agent/s1"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.GreaterOrEqual(t, resp.StatusCode, http.StatusBadRequest)
}

func TestUnreachableBackendYields502(t *testing.T) {
	ts := newRelay(t, "http://127.0.0.1:1")

	resp, err := http.Get(ts.URL + "/agents/api/vouchers")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRejectsRelativeBackendOrigin(t *testing.T) {
	_, err := relay.New(&config.Config{BackendOrigin: "localhost:8080/"}, quietLogger())
	assert.Error(t, err)
}
