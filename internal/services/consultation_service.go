package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnavailable            = errors.New("storage unavailable")
)

const (
	maxSubjectLength = 200
	maxBodyLength    = 4000
)

type consultationStore interface {
	Create(ctx context.Context, userID int64, subject, body string) (*models.Consultation, error)
	GetByID(ctx context.Context, consultationID int64) (*models.Consultation, error)
	ListForCustomer(ctx context.Context, customerID int64) ([]models.Consultation, error)
	ListForAdvisor(ctx context.Context, advisorID int64) ([]models.Consultation, error)
	Respond(ctx context.Context, consultationID, advisorID int64, reply string) (*models.Consultation, error)
}

type ConsultationService struct {
	consultations consultationStore
}

func NewConsultationService(consultations consultationStore) *ConsultationService {
	return &ConsultationService{consultations: consultations}
}

func (s *ConsultationService) Submit(
	ctx context.Context,
	actorID int64,
	role string,
	subject string,
	body string,
) (*models.Consultation, error) {
	if role != models.RoleCustomer {
		return nil, ErrForbidden
	}

	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" || body == "" {
		return nil, ErrInvalidInput
	}
	if len(subject) > maxSubjectLength || len(body) > maxBodyLength {
		return nil, ErrInvalidInput
	}

	return s.consultations.Create(ctx, actorID, subject, body)
}

func (s *ConsultationService) Get(
	ctx context.Context,
	actorID int64,
	role string,
	consultationID int64,
) (*models.Consultation, error) {
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

	if !canViewConsultation(role, actorID, consultation) {
		return nil, ErrForbidden
	}

	return consultation, nil
}

func (s *ConsultationService) List(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.Consultation, error) {
	switch role {
	case models.RoleCustomer:
		return s.consultations.ListForCustomer(ctx, actorID)
	case models.RoleAdvisor:
		return s.consultations.ListForAdvisor(ctx, actorID)
	default:
		return nil, ErrForbidden
	}
}

// Respond moves a consultation from pending to responded on behalf of the
// acting advisor. The transition is first-writer-wins: a second advisor
// answering the same consultation gets ErrInvalidStateTransition.
func (s *ConsultationService) Respond(
	ctx context.Context,
	actorID int64,
	role string,
	consultationID int64,
	reply string,
) (*models.Consultation, error) {
	if role != models.RoleAdvisor {
		return nil, ErrForbidden
	}
	if consultationID <= 0 {
		return nil, ErrInvalidInput
	}

	reply = strings.TrimSpace(reply)
	if reply == "" || len(reply) > maxBodyLength {
		return nil, ErrInvalidInput
	}

	consultation, err := s.consultations.Respond(ctx, consultationID, actorID, reply)
	if err == nil {
		return consultation, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Zero rows matched: either the consultation does not exist or it has
	// already left pending. Distinguish with a fresh read.
	if _, getErr := s.consultations.GetByID(ctx, consultationID); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, getErr
	}
	return nil, ErrInvalidStateTransition
}

// Customers see their own consultations. Advisors see the open queue plus
// anything assigned to them.
func canViewConsultation(role string, actorID int64, consultation *models.Consultation) bool {
	switch role {
	case models.RoleCustomer:
		return consultation.UserID == actorID
	case models.RoleAdvisor:
		if consultation.Status == models.ConsultationPending {
			return true
		}
		return consultation.AdvisorID != nil && *consultation.AdvisorID == actorID
	default:
		return false
	}
}
