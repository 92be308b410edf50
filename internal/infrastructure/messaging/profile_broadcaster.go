package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/security"
)

const EventProfileInvalidated = "profile.invalidated"

// ProfileEvent is the message written to subscribed websocket clients.
type ProfileEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProfileClient represents a single connected client of one user.
type ProfileClient struct {
	Conn   *websocket.Conn
	UserID string
	Send   chan []byte
}

// NewProfileClient creates a client with a buffered send queue.
func NewProfileClient(conn *websocket.Conn, userID string, bufferSize int) *ProfileClient {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &ProfileClient{Conn: conn, UserID: userID, Send: make(chan []byte, bufferSize)}
}

// ProfileBroadcaster manages connected clients and fans out profile events.
// Client maps are only mutated by the Run loop.
type ProfileBroadcaster struct {
	userClients map[string]map[*ProfileClient]bool
	register    chan *ProfileClient
	unregister  chan *ProfileClient
	broadcast   chan ProfileEvent
	done        chan struct{}
	logger      *logging.ChanneledLogger
	mu          sync.RWMutex
}

// NewProfileBroadcaster creates a new broadcaster instance.
func NewProfileBroadcaster(logger *logging.ChanneledLogger) *ProfileBroadcaster {
	return &ProfileBroadcaster{
		userClients: make(map[string]map[*ProfileClient]bool),
		register:    make(chan *ProfileClient),
		unregister:  make(chan *ProfileClient),
		broadcast:   make(chan ProfileEvent, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run starts the broadcaster's main loop. It returns when ctx is cancelled,
// closing every client's send channel.
func (b *ProfileBroadcaster) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for userID, clients := range b.userClients {
				for client := range clients {
					close(client.Send)
				}
				delete(b.userClients, userID)
			}
			b.mu.Unlock()
			b.logger.Realtime().Info("Profile broadcaster stopped")
			return

		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.userClients[client.UserID]; !ok {
				b.userClients[client.UserID] = make(map[*ProfileClient]bool)
			}
			b.userClients[client.UserID][client] = true
			b.mu.Unlock()
			b.logger.Realtime().Debug("Profile client registered", "userId", logging.SanitizeUserID(client.UserID))

		case client := <-b.unregister:
			b.mu.Lock()
			b.removeLocked(client)
			b.mu.Unlock()
			b.logger.Realtime().Debug("Profile client unregistered", "userId", logging.SanitizeUserID(client.UserID))

		case event := <-b.broadcast:
			b.deliver(event)
		}
	}
}

// Register queues a client for registration. It returns false once the
// broadcaster has stopped.
func (b *ProfileBroadcaster) Register(client *ProfileClient) bool {
	select {
	case b.register <- client:
		return true
	case <-b.done:
		return false
	}
}

// Unregister queues a client for unregistration.
func (b *ProfileBroadcaster) Unregister(client *ProfileClient) {
	select {
	case b.unregister <- client:
	case <-b.done:
	}
}

// PublishProfileInvalidated queues an invalidation event for the user's
// clients. It never blocks; when the queue is full the event is dropped.
func (b *ProfileBroadcaster) PublishProfileInvalidated(userID, reason string) {
	event := ProfileEvent{
		ID:        security.GenerateULID(),
		Type:      EventProfileInvalidated,
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	select {
	case b.broadcast <- event:
	default:
		b.logger.Realtime().Warn("Profile event queue full, dropping event", "userId", logging.SanitizeUserID(userID))
	}
}

// ClientCount returns the number of connected clients for a user.
func (b *ProfileBroadcaster) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.userClients[userID])
}

// deliver sends to every client of the event's user. A client whose
// queue is full is dropped.
func (b *ProfileBroadcaster) deliver(event ProfileEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		b.logger.Realtime().Error("Failed to marshal profile event", "error", err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sent := 0
	for client := range b.userClients[event.UserID] {
		select {
		case client.Send <- message:
			sent++
		default:
			b.removeLocked(client)
			b.logger.Realtime().Warn("Dropping slow profile client", "userId", logging.SanitizeUserID(client.UserID))
		}
	}
	b.logger.Realtime().Debug("Profile event delivered", "type", event.Type, "eventId", event.ID, "clients", sent)
}

func (b *ProfileBroadcaster) removeLocked(client *ProfileClient) {
	clients, ok := b.userClients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(b.userClients, client.UserID)
	}
}
