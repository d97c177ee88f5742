package system

import (
	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

type WebSocketController struct {
	Hub    *Hub
	Logger *zap.Logger
}

func NewWebSocketController(hub *Hub, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{Hub: hub, Logger: logger}
}

// HandleWebSocket streams board messages to the connection until either side
// goes away. Inbound messages are read only to notice the close.
func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	cl := h.Hub.register()
	defer h.Hub.unregister(cl)

	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				h.Hub.unregister(cl)
				return
			}
		}
	}()

	for data := range cl.send {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
