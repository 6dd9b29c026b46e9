package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
)

type consultationReader interface {
	GetByID(ctx context.Context, consultationID int64) (*models.Consultation, error)
}

type messageStore interface {
	Create(ctx context.Context, consultationID, senderID, receiverID int64, content string) (*models.ChatMessage, error)
	ListByConsultation(ctx context.Context, consultationID int64, limit, offset int) ([]models.ChatMessage, int, error)
}

// delivery pushes a persisted message to the receiver's live connection, if
// one exists. Implemented by the chatws registry; a no-op result is fine,
// offline receivers catch up through ListMessages.
type delivery interface {
	Deliver(userID int64, message *models.ChatMessage)
}

type ChatService struct {
	consultations consultationReader
	messages      messageStore
	delivery      delivery
}

func NewChatService(
	consultations consultationReader,
	messages messageStore,
	delivery delivery,
) *ChatService {
	return &ChatService{
		consultations: consultations,
		messages:      messages,
		delivery:      delivery,
	}
}

// CheckAccess is the REST-facing gate consulted before a client attempts the
// transport upgrade.
func (s *ChatService) CheckAccess(
	ctx context.Context,
	actorID int64,
	consultationID int64,
) (ChatRole, error) {
	if consultationID <= 0 {
		return ChatRoleNone, ErrInvalidInput
	}

	consultation, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChatRoleNone, ErrNotFound
		}
		return ChatRoleNone, err
	}

	role := ChatAccess(consultation, actorID)
	if role == ChatRoleNone {
		return ChatRoleNone, ErrForbidden
	}
	return role, nil
}

// SendMessage routes one inbound message: load the consultation fresh,
// re-check access, recompute the receiver from the record (the client's idea
// of the receiver is never trusted), persist, then attempt live delivery.
// Persistence always precedes delivery, so a message survives the receiver
// being offline and the sender disconnecting mid-call.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	consultationID int64,
	content string,
) (*models.ChatMessage, error) {
	if consultationID <= 0 {
		return nil, ErrInvalidInput
	}

	consultation, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	role := ChatAccess(consultation, actorID)
	if role == ChatRoleNone {
		return nil, ErrForbidden
	}

	receiverID := consultation.UserID
	if role == ChatRoleRequester {
		receiverID = *consultation.AdvisorID
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	message, err := s.messages.Create(ctx, consultationID, actorID, receiverID, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Delivery goes to the receiver only. The sender's client already shows
	// its optimistic echo; pushing the frame back down the sender's own
	// connection would display the message twice.
	if s.delivery != nil {
		s.delivery.Deliver(receiverID, message)
	}

	return message, nil
}

// ListMessages is the reconciliation source of truth: the canonical ordered
// history for one consultation, gated exactly like SendMessage.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	consultationID int64,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if consultationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	consultation, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	if ChatAccess(consultation, actorID) == ChatRoleNone {
		return nil, 0, ErrForbidden
	}

	return s.messages.ListByConsultation(ctx, consultationID, limit, (page-1)*limit)
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
