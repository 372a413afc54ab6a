package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/yshimizu/kabuscan/internal/scan"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamWS mirrors the scan stream over a WebSocket, one JSON message per
// event. The connection closes normally after the terminal record.
// GET /api/scan/ws
func (h *ScanHandler) StreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	opts := h.optionsFromQuery(r)

	sink := scan.SinkFunc(func(e scan.Event) {
		if err := conn.WriteJSON(e); err != nil {
			h.logger.WithError(err).Debug("WebSocket write failed")
		}
	})

	if _, err := h.runner.Run(r.Context(), opts, sink); err != nil {
		h.logger.WithError(err).Error("Scan failed")
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
