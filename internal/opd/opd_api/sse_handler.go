package opd_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"careplus/internal/models"
	"careplus/internal/utils"

	"github.com/go-chi/chi/v5"
)

var heartbeatInterval = 15 * time.Second

// StreamQueue serves live queue snapshots for one session as server-sent
// events. The current state is sent first.
func (h *Handler) StreamQueue(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	session, err := h.Service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	updates := h.Emitter.Subscribe(ctx, sessionID)

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := writeSnapshot(w, models.NewQueueSnapshot("snapshot", session.OpdSession)); err != nil {
		return
	}
	flusher.Flush()
	h.Logger.Debug("SSE", fmt.Sprintf("Client subscribed to session %s", sessionID))

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSnapshot(w, snapshot); err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to write queue snapshot: %v", err))
				return
			}
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from session %s", sessionID))
			return
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snapshot models.QueueSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: queue\ndata: %s\n\n", data)
	return err
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
