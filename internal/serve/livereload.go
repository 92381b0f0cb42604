package serve

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const heartbeatInterval = 30 * time.Second

// ReloadHub manages SSE clients for build-change broadcasts.
type ReloadHub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*reloadClient
	closed    bool
	lastToken string
	logger    *slog.Logger
}

type reloadClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewReloadHub creates an empty hub.
func NewReloadHub(logger *slog.Logger) *ReloadHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadHub{clients: map[int]*reloadClient{}, logger: logger}
}

// ServeHTTP implements the SSE endpoint at /livereload. Each client first
// receives the current token as a baseline, then one event per rebuild.
func (h *ReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &reloadClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	current := h.lastToken
	h.mu.Unlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		h.removeClient(client.id)
		return
	}
	// The baseline is sent even when empty so the first real rebuild is
	// never mistaken for it.
	if _, err := bw.WriteString("data: {\"token\":\"" + current + "\"}\n\n"); err != nil {
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
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				h.removeClient(client.id)
				return
			}
			bw.Flush()
			flusher.Flush()
		case token := <-client.ch:
			if _, err := bw.WriteString("data: {\"token\":\"" + token + "\"}\n\n"); err != nil {
				h.removeClient(client.id)
				return
			}
			bw.Flush()
			flusher.Flush()
		}
	}
}

func (h *ReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Broadcast sends a new token to all clients. Clients whose channels are
// full are dropped; their reconnect logic brings them back.
func (h *ReloadHub) Broadcast(token string) {
	h.mu.Lock()
	if h.closed || token == "" || token == h.lastToken {
		h.mu.Unlock()
		return
	}
	h.lastToken = token
	snapshot := make([]*reloadClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- token:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.logger.Debug("livereload broadcast", "token", token, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown closes all clients and prevents future broadcasts.
func (h *ReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*reloadClient{}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
	}
}

// reloadScript is the browser side of the hub. Pages get it injected as
// /livereload.js while serving with live reload enabled.
const reloadScript = `(() => {
  if (window.__ROCKET_LR__) return;
  window.__ROCKET_LR__ = true;
  function connect() {
    const es = new EventSource('/livereload');
    let first = true;
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (first) { current = p.token; first = false; return; }
        if (p.token && p.token !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
