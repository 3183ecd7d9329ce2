package ws

import (
	"net/http"
	"time"

	"creditbot/config"
	"creditbot/internal/auth"
	"creditbot/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeFeed upgrades an admin connection to the live event feed. Browsers cannot set
// headers on WebSocket requests, so the admin JWT comes in the token query parameter.
func ServeFeed(cfg *config.JWTConfig, admins config.AdminConfig, hub *Hub, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.ParseAccessToken(cfg, c.Query("token"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if claims.Role != domain.RoleAdmin || (len(admins.IDs) > 0 && !admins.IsAdmin(claims.AdminID)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("feed upgrade failed")
			return
		}
		defer conn.Close()

		client := &Client{AdminID: claims.AdminID, Send: make(chan []byte, 256)}
		hub.Register(client)
		defer client.Close()
		log.WithField("admin_id", claims.AdminID).Info("feed connected")

		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames until the connection drops.
func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
