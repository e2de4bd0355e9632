package sse

import (
	"fmt"
	"net/http"
	"time"
)

// Handler returns an http.Handler streaming hub messages as server-sent
// events. The connection lives until the client goes away.
func Handler(h *Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		// The server's WriteTimeout is one hard deadline for the whole
		// response, which would sever a long-lived stream. Lift it for
		// this request; other routes keep the configured timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		msgCh := make(chan []byte, 16)
		h.Subscribe(msgCh)
		defer h.Unsubscribe(msgCh)

		// Initial comment doubles as handshake and keepalive for proxies.
		fmt.Fprintf(w, ": connected\n\n")
		flusher.Flush()

		done := r.Context().Done()
		for {
			select {
			case <-done:
				return
			case msg := <-msgCh:
				fmt.Fprintf(w, "data: %s\n\n", msg)
				flusher.Flush()
			}
		}
	})
}
