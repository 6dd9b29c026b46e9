package chatws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/services"
)

// Registry tracks the at-most-one live connection per authenticated user.
// It is the only shared mutable structure in the chat core; the lock covers
// map mutation only, never a routing operation. The registry is purely a
// derived index over the persisted state: dropping it delays delivery but
// loses nothing, because the router persists before it delivers.
type Registry struct {
	mu      sync.Mutex
	clients map[int64]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[int64]*Client)}
}

// Register swaps in the new client and returns the superseded one, if any,
// so the caller can shut it down. The swap is atomic; there is no window in
// which two connections for the same user are both registered.
func (r *Registry) Register(userID int64, client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.clients[userID]
	r.clients[userID] = client
	return prior
}

func (r *Registry) Lookup(userID int64) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[userID]
	return client, ok
}

// Unregister removes the mapping only if it still points at the given
// client. A close racing a reconnect must not evict the newer connection.
func (r *Registry) Unregister(userID int64, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clients[userID] == client {
		delete(r.clients, userID)
	}
}

// Deliver pushes a persisted message to the receiver's live connection.
// Absent receivers are fine; they catch up from history on reconnect. A
// receiver whose send queue is full is dropped rather than allowed to block
// the router.
func (r *Registry) Deliver(userID int64, message *models.ChatMessage) {
	client, ok := r.Lookup(userID)
	if !ok {
		return
	}

	payload, err := json.Marshal(messageFrame(message))
	if err != nil {
		log.Printf("chat registry encode message %d: %v", message.ID, err)
		return
	}

	if !client.enqueue(payload) {
		r.Unregister(userID, client)
		client.Shutdown()
	}
}

func messageFrame(message *models.ChatMessage) Frame {
	return Frame{
		Type:           FrameTypeMessage,
		ID:             message.ID,
		ConsultationID: message.ConsultationID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		Content:        message.Content,
		Timestamp:      services.FormatChatTimestamp(message.CreatedAt),
	}
}
