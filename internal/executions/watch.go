package executions

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JaimeStill/sift/pkg/handlers"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Watch upgrades to a websocket and pushes the status view whenever it changes,
// checking at the poll interval. The connection is closed once the execution is
// terminal. The status endpoint remains authoritative.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	view, err := h.sys.Status(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "id", id, "error", err)
		return
	}
	defer conn.Close()

	// The client sends nothing; reading detects when it goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("watch client error", "id", id, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	last := view.Status
	for {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(view); err != nil {
			h.logger.Debug("watch write failed", "id", id, "error", err)
			return
		}

		if view.Status.Terminal() {
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(view.Status)),
				time.Now().Add(writeWait),
			)
			return
		}

		for view.Status == last {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}

			next, err := h.sys.Status(r.Context(), id)
			if err != nil {
				h.logger.Warn("watch status read failed", "id", id, "error", err)
				return
			}
			view = next
		}
		last = view.Status
	}
}
