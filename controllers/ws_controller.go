package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chat-engine/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSController struct {
	Hub *services.Hub
}

// Serve upgrades the request and hands the connection to the hub. Identity
// binds afterwards via the login event.
func (wc *WSController) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	wc.Hub.ServeConn(conn)
}
