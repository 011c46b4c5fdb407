package devserver

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/themebuilder/internal/metrics"
	"git.home.luguber.info/inful/themebuilder/internal/reload"
)

const heartbeatInterval = 30 * time.Second

// Message is the payload of one SSE event.
type Message struct {
	Kind  reload.Kind `json:"kind"`
	Paths []string    `json:"paths,omitempty"`
}

// LiveReloadHub manages SSE clients and fans reload messages out to them.
type LiveReloadHub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	recorder metrics.Recorder
	closed   bool
}

type lrClient struct {
	id   int
	ch   chan []byte
	done chan struct{}
}

func NewLiveReloadHub(rec metrics.Recorder) *LiveReloadHub {
	return &LiveReloadHub{clients: map[int]*lrClient{}, recorder: metrics.OrNoop(rec)}
}

// ServeHTTP implements the SSE endpoint.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan []byte, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	h.recorder.SetLiveReloadClients(len(h.clients))
	h.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		h.removeClient(client.id)
		return
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.removeClient(client.id)
			return
		case <-client.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err == nil {
				_ = bw.Flush()
				flusher.Flush()
			}
		case payload := <-client.ch:
			if _, err := bw.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				slog.Debug("livereload broadcast write", "error", err)
				h.removeClient(client.id)
				return
			}
			_ = bw.Flush()
			flusher.Flush()
		}
	}
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
		h.recorder.SetLiveReloadClients(len(h.clients))
	}
}

// Clients returns the number of connected browsers.
func (h *LiveReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to all clients. Clients whose buffer is full are dropped.
func (h *LiveReloadHub) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("livereload encode", "error", err)
		return
	}
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- payload:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.recorder.IncReload(string(msg.Kind))
	slog.Debug("livereload broadcast", "kind", msg.Kind, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown disconnects all clients and rejects new ones.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
