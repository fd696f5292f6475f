package services

import "toptrack/internal/models"

// Broadcaster delivers an event to every connection currently attached to a
// room, and to no other room. Delivery is best effort per connection; the
// state mutation has always committed before Publish is called.
type Broadcaster interface {
	Publish(roomID string, event models.Event)
}
