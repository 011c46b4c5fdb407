package devserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/reload"
)

// readEvent returns the first SSE data line within the deadline.
func readEvent(t *testing.T, reader *bufio.Reader, timeout time.Duration) string {
	t.Helper()
	lines := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimSpace(strings.TrimPrefix(line, "data: "))
				return
			}
		}
	}()
	select {
	case l, ok := <-lines:
		require.True(t, ok, "stream closed before an event arrived")
		return l
	case <-time.After(timeout):
		t.Fatal("timed out waiting for livereload event")
		return ""
	}
}

func connect(t *testing.T, url string) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body), func() {
		cancel()
		_ = resp.Body.Close()
	}
}

func waitForClients(t *testing.T, hub *LiveReloadHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveReload_BroadcastCSS(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	defer hub.Shutdown()
	server := httptest.NewServer(hub)
	defer server.Close()

	reader, done := connect(t, server.URL)
	defer done()
	waitForClients(t, hub, 1)

	hub.Broadcast(Message{Kind: reload.CSS, Paths: []string{"dist/assets/css/main.css"}})
	require.JSONEq(t, `{"kind":"css","paths":["dist/assets/css/main.css"]}`, readEvent(t, reader, time.Second))

	hub.Broadcast(Message{Kind: reload.Page})
	require.JSONEq(t, `{"kind":"reload"}`, readEvent(t, reader, time.Second))
}

func TestLiveReload_DisconnectRemovesClient(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	defer hub.Shutdown()
	server := httptest.NewServer(hub)
	defer server.Close()

	_, done := connect(t, server.URL)
	waitForClients(t, hub, 1)
	done()
	waitForClients(t, hub, 0)
}

func TestLiveReload_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	reader, done := connect(t, server.URL)
	defer done()
	waitForClients(t, hub, 1)

	hub.Shutdown()
	waitForClients(t, hub, 0)
	_, err := reader.ReadString('\n')
	for err == nil {
		_, err = reader.ReadString('\n')
	}

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Broadcasting after shutdown is a no-op.
	hub.Broadcast(Message{Kind: reload.Page})
}
