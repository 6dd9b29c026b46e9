package repository

import (
	"context"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	consultationID int64,
	senderID int64,
	receiverID int64,
	content string,
) (*models.ChatMessage, error) {
	query := `
		INSERT INTO messages (consultation_id, sender_id, receiver_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, consultation_id, sender_id, receiver_id, content, created_at
	`

	var message models.ChatMessage
	err := r.db.QueryRow(ctx, query, consultationID, senderID, receiverID, content).Scan(
		&message.ID,
		&message.ConsultationID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Content,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListByConsultation returns messages oldest first, ordered by
// (created_at, id) so every reader sees an identical sequence. Clients use
// this after (re)connect to replace any provisional local state.
func (r *MessageRepository) ListByConsultation(
	ctx context.Context,
	consultationID int64,
	limit int,
	offset int,
) ([]models.ChatMessage, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE consultation_id = $1
	`

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, consultationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, consultation_id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE consultation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, consultationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var message models.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.ConsultationID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Content,
			&message.CreatedAt,
		); err != nil {
			return nil, 0, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}
