// Package messaging defines interfaces for real-time communication.
package messaging

// ProfileEventPublisher pushes profile events to a user's connected clients.
type ProfileEventPublisher interface {
	PublishProfileInvalidated(userID, reason string)
}
