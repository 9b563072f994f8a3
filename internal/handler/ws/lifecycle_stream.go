package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	applogger "FinScore/pkg/logger"
)

// LifecycleStreamHandler upgrades /ws/lifecycle requests and attaches them to the hub.
type LifecycleStreamHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewLifecycleStreamHandler(hub *Hub) *LifecycleStreamHandler {
	return &LifecycleStreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *LifecycleStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/lifecycle", h.Stream)
}

func (h *LifecycleStreamHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	client := newClient(h.hub, conn)
	if !h.hub.attach(client) {
		_ = conn.Close()
		return nil
	}
	go client.writePump()
	go client.readPump()
	return nil
}
