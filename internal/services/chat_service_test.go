package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
)

type fakeConsultationReader struct {
	byID map[int64]*models.Consultation
}

func (f *fakeConsultationReader) GetByID(_ context.Context, id int64) (*models.Consultation, error) {
	consultation, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return consultation, nil
}

type memoryMessageStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []models.ChatMessage
	failing  bool
}

func (s *memoryMessageStore) Create(
	_ context.Context,
	consultationID, senderID, receiverID int64,
	content string,
) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return nil, errors.New("connection refused")
	}

	s.nextID++
	message := models.ChatMessage{
		ID:             s.nextID,
		ConsultationID: consultationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * time.Millisecond),
	}
	s.messages = append(s.messages, message)
	return &message, nil
}

func (s *memoryMessageStore) ListByConsultation(
	_ context.Context,
	consultationID int64,
	limit, offset int,
) ([]models.ChatMessage, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]models.ChatMessage, 0)
	for _, message := range s.messages {
		if message.ConsultationID == consultationID {
			matched = append(matched, message)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if offset >= total {
		return []models.ChatMessage{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type recordingDelivery struct {
	mu        sync.Mutex
	delivered map[int64][]int64
}

func newRecordingDelivery() *recordingDelivery {
	return &recordingDelivery{delivered: make(map[int64][]int64)}
}

func (d *recordingDelivery) Deliver(userID int64, message *models.ChatMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered[userID] = append(d.delivered[userID], message.ID)
}

func respondedConsultation(id, userID, advisorID int64) *models.Consultation {
	answeredAt := time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)
	return &models.Consultation{
		ID:         id,
		UserID:     userID,
		AdvisorID:  &advisorID,
		Subject:    "financing options",
		Body:       "which plan fits a 2021 wagon?",
		Status:     models.ConsultationResponded,
		AnsweredAt: &answeredAt,
	}
}

func TestSendMessageDeliversToReceiverOnly(t *testing.T) {
	store := &memoryMessageStore{}
	delivery := newRecordingDelivery()
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		store,
		delivery,
	)

	message, err := service.SendMessage(context.Background(), 7, 1, "hola")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if message.SenderID != 7 || message.ReceiverID != 9 {
		t.Fatalf("expected sender 7 receiver 9, got %d -> %d", message.SenderID, message.ReceiverID)
	}

	if got := delivery.delivered[9]; len(got) != 1 || got[0] != message.ID {
		t.Fatalf("expected message %d delivered to user 9, got %v", message.ID, got)
	}
	if got := delivery.delivered[7]; len(got) != 0 {
		t.Fatalf("expected no self-echo to sender 7, got %v", got)
	}
}

func TestSendMessageRecomputesReceiverForAdvisor(t *testing.T) {
	store := &memoryMessageStore{}
	delivery := newRecordingDelivery()
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		store,
		delivery,
	)

	message, err := service.SendMessage(context.Background(), 9, 1, "how can I help?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if message.ReceiverID != 7 {
		t.Fatalf("expected advisor's message to target requester 7, got %d", message.ReceiverID)
	}
}

func TestSendMessagePersistsWhileReceiverOffline(t *testing.T) {
	store := &memoryMessageStore{}
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		store,
		nil, // no live delivery at all
	)

	m1, err := service.SendMessage(context.Background(), 7, 1, "hola")
	if err != nil {
		t.Fatalf("SendMessage m1: %v", err)
	}
	m2, err := service.SendMessage(context.Background(), 7, 1, "are you there?")
	if err != nil {
		t.Fatalf("SendMessage m2: %v", err)
	}

	messages, total, err := service.ListMessages(context.Background(), 9, 1, 1, 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 2 || len(messages) != 2 {
		t.Fatalf("expected 2 messages, got total=%d len=%d", total, len(messages))
	}
	if messages[0].ID != m1.ID || messages[1].ID != m2.ID {
		t.Fatalf("expected order [%d %d], got [%d %d]", m1.ID, m2.ID, messages[0].ID, messages[1].ID)
	}
}

func TestListMessagesOrdersByCreatedAtThenID(t *testing.T) {
	store := &memoryMessageStore{}
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		store,
		newRecordingDelivery(),
	)

	contents := []string{"first", "second", "third", "fourth"}
	senders := []int64{7, 9, 7, 9}
	ids := make([]int64, 0, len(contents))
	for i, content := range contents {
		message, err := service.SendMessage(context.Background(), senders[i], 1, content)
		if err != nil {
			t.Fatalf("SendMessage %q: %v", content, err)
		}
		ids = append(ids, message.ID)
	}

	messages, _, err := service.ListMessages(context.Background(), 7, 1, 1, 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != len(ids) {
		t.Fatalf("expected %d messages, got %d", len(ids), len(messages))
	}
	for i, message := range messages {
		if message.ID != ids[i] {
			t.Fatalf("position %d: expected id %d, got %d", i, ids[i], message.ID)
		}
	}
}

func TestSendMessageRejectsNonParticipants(t *testing.T) {
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		&memoryMessageStore{},
		newRecordingDelivery(),
	)

	if _, err := service.SendMessage(context.Background(), 5, 1, "let me in"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
}

func TestSendMessageRejectsPendingConsultations(t *testing.T) {
	pending := &models.Consultation{ID: 2, UserID: 7, Status: models.ConsultationPending}
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{2: pending}},
		&memoryMessageStore{},
		newRecordingDelivery(),
	)

	if _, err := service.SendMessage(context.Background(), 7, 2, "anyone?"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on pending consultation, got %v", err)
	}
}

func TestSendMessageReportsUnknownConsultation(t *testing.T) {
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{}},
		&memoryMessageStore{},
		newRecordingDelivery(),
	)

	if _, err := service.SendMessage(context.Background(), 7, 99, "hello"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		&memoryMessageStore{},
		newRecordingDelivery(),
	)

	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := service.SendMessage(context.Background(), 7, 1, content); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", content, err)
		}
	}
}

func TestSendMessageWrapsStorageFailures(t *testing.T) {
	delivery := newRecordingDelivery()
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		&memoryMessageStore{failing: true},
		delivery,
	)

	_, err := service.SendMessage(context.Background(), 7, 1, "hola")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(delivery.delivered) != 0 {
		t.Fatalf("expected no delivery on failed persistence, got %v", delivery.delivered)
	}
}

func TestListMessagesGatesHistory(t *testing.T) {
	store := &memoryMessageStore{}
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		store,
		newRecordingDelivery(),
	)

	if _, err := service.SendMessage(context.Background(), 7, 1, "private"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if _, _, err := service.ListMessages(context.Background(), 5, 1, 1, 50); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected history denied for stranger, got %v", err)
	}
	if _, _, err := service.ListMessages(context.Background(), 9, 99, 1, 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown consultation, got %v", err)
	}
}

func TestCheckAccessMatchesGateRoles(t *testing.T) {
	service := NewChatService(
		&fakeConsultationReader{byID: map[int64]*models.Consultation{1: respondedConsultation(1, 7, 9)}},
		&memoryMessageStore{},
		newRecordingDelivery(),
	)

	role, err := service.CheckAccess(context.Background(), 7, 1)
	if err != nil || role != ChatRoleRequester {
		t.Fatalf("expected requester, got %v %v", role, err)
	}
	role, err = service.CheckAccess(context.Background(), 9, 1)
	if err != nil || role != ChatRoleAdvisor {
		t.Fatalf("expected advisor, got %v %v", role, err)
	}
	if _, err := service.CheckAccess(context.Background(), 5, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
	if _, err := service.CheckAccess(context.Background(), 7, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
