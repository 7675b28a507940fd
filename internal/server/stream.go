package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/airpiano/internal/overlay"
)

// StreamHandler serves the composed overlay frames as MJPEG.
type StreamHandler struct {
	snapshot *overlay.Snapshot
}

// NewStreamHandler creates a new StreamHandler reading from snapshot.
func NewStreamHandler(snapshot *overlay.Snapshot) *StreamHandler {
	return &StreamHandler{snapshot: snapshot}
}

// ServeHTTP streams every new frame to the client until it disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var sent uint64
	for {
		data, seq, updated := h.snapshot.Latest()
		if data != nil && seq != sent {
			sent = seq

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
			if _, err := w.Write(data); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-updated:
		case <-time.After(time.Second):
		}
	}
}
