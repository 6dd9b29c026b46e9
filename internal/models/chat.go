package models

import "time"

// ChatMessage is append-only: created by the router once a frame passes the
// access gate, never mutated afterwards. Ordering within a consultation is by
// (created_at, id) ascending.
type ChatMessage struct {
	ID             int64     `json:"id"`
	ConsultationID int64     `json:"consultation_id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
