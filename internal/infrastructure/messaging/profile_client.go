package messaging

import (
	"time"

	"github.com/gorilla/websocket"
)

// PumpConfig bounds websocket writes and keepalives.
type PumpConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (c PumpConfig) pongWait() time.Duration {
	return c.PingInterval * 2
}

// Serve registers the client and runs its pumps until the connection
// closes or the broadcaster stops. It blocks the caller.
func (b *ProfileBroadcaster) Serve(client *ProfileClient, cfg PumpConfig) {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if !b.Register(client) {
		_ = client.Conn.Close()
		return
	}

	go b.writePump(client, cfg)
	b.readPump(client, cfg)
}

// readPump discards client messages and exits on any read error, which is
// how a closed connection is detected.
func (b *ProfileBroadcaster) readPump(client *ProfileClient, cfg PumpConfig) {
	defer func() {
		b.Unregister(client)
		_ = client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	_ = client.Conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Realtime().Debug("Profile client read error", "error", err.Error())
			}
			return
		}
	}
}

func (b *ProfileBroadcaster) writePump(client *ProfileClient, cfg PumpConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
