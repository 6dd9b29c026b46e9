package models

import "time"

const (
	ConsultationPending   = "pending"
	ConsultationResponded = "responded"
)

// Consultation is an advisory request submitted by a customer. advisor_id,
// reply and answered_at are set together when an advisor responds; until then
// the record stays pending and no chat can be opened on it.
type Consultation struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	AdvisorID  *int64     `json:"advisor_id"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Reply      *string    `json:"reply"`
	Status     string     `json:"status"`
	AnsweredAt *time.Time `json:"answered_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
