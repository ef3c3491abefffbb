package services

import (
	"log"

	"chat-engine/models"
)

// Event is a named payload pushed over the real-time transport.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type messagePayload struct {
	Message          *models.Message         `json:"message"`
	ConversationType models.ConversationType `json:"conversationType,omitempty"`
}

// Deliverer fans a persisted message out to live connections. Delivery is
// best effort: a push failure is logged and swallowed so it can never reach
// the enclosing send transaction.
type Deliverer struct {
	presence *Presence
}

func NewDeliverer(p *Presence) *Deliverer {
	return &Deliverer{presence: p}
}

// Deliver pushes msg to its receiver when online. When nobody specific is
// reachable and the conversation is a Support or Report ticket, every online
// admin gets the event instead, so any admin sees new tickets. Offline Chat
// messages are dropped; they stay unread in the store.
func (d *Deliverer) Deliver(msg *models.Message, conv *models.Conversation) {
	ev := Event{Event: "message", Data: messagePayload{Message: msg, ConversationType: conv.Type}}

	if msg.ReceiverID != "" {
		if c, ok := d.presence.Lookup(msg.ReceiverID); ok {
			c.Push(ev)
			return
		}
	}
	if conv.Type != models.TypeChat {
		for _, c := range d.presence.OnlineAdmins() {
			c.Push(ev)
		}
		return
	}
	log.Printf("receiver %s offline, dropping delivery for message %s", msg.ReceiverID, msg.ID)
}

// PushToUser delivers msg directly to userID when online. Used by the
// forward and reply paths, which have no broadcast fallback.
func (d *Deliverer) PushToUser(userID string, msg *models.Message) {
	if c, ok := d.presence.Lookup(userID); ok {
		c.Push(Event{Event: "message", Data: messagePayload{Message: msg}})
	}
}
