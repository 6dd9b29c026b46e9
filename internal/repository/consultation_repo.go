package repository

import (
	"context"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
)

type ConsultationRepository struct {
	db DBTX
}

func NewConsultationRepository(db DBTX) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

const consultationColumns = `id, user_id, advisor_id, subject, body, reply, status, answered_at, created_at`

func (r *ConsultationRepository) Create(
	ctx context.Context,
	userID int64,
	subject string,
	body string,
) (*models.Consultation, error) {
	query := `
		INSERT INTO consultations (user_id, subject, body, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING ` + consultationColumns + `
	`

	var consultation models.Consultation
	err := r.db.QueryRow(ctx, query, userID, subject, body).Scan(
		&consultation.ID,
		&consultation.UserID,
		&consultation.AdvisorID,
		&consultation.Subject,
		&consultation.Body,
		&consultation.Reply,
		&consultation.Status,
		&consultation.AnsweredAt,
		&consultation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &consultation, nil
}

// GetByID always reads the current committed row. The chat gate depends on
// that: access decisions are never made against a cached consultation.
func (r *ConsultationRepository) GetByID(ctx context.Context, consultationID int64) (*models.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE id = $1
	`

	var consultation models.Consultation
	err := r.db.QueryRow(ctx, query, consultationID).Scan(
		&consultation.ID,
		&consultation.UserID,
		&consultation.AdvisorID,
		&consultation.Subject,
		&consultation.Body,
		&consultation.Reply,
		&consultation.Status,
		&consultation.AnsweredAt,
		&consultation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &consultation, nil
}

func (r *ConsultationRepository) ListForCustomer(
	ctx context.Context,
	customerID int64,
) ([]models.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, customerID)
}

// ListForAdvisor returns the open queue plus everything the advisor has
// already answered.
func (r *ConsultationRepository) ListForAdvisor(
	ctx context.Context,
	advisorID int64,
) ([]models.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE status = 'pending' OR advisor_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, advisorID)
}

// Respond performs the pending -> responded transition. Status, advisor_id,
// reply and answered_at commit in one statement; a consultation that is no
// longer pending matches zero rows and surfaces as pgx.ErrNoRows. The
// user_id guard keeps a requester from answering their own request, which
// would break the sender != receiver message invariant.
func (r *ConsultationRepository) Respond(
	ctx context.Context,
	consultationID int64,
	advisorID int64,
	reply string,
) (*models.Consultation, error) {
	query := `
		UPDATE consultations
		SET status = 'responded', advisor_id = $2, reply = $3, answered_at = NOW()
		WHERE id = $1 AND status = 'pending' AND user_id <> $2
		RETURNING ` + consultationColumns + `
	`

	var consultation models.Consultation
	err := r.db.QueryRow(ctx, query, consultationID, advisorID, reply).Scan(
		&consultation.ID,
		&consultation.UserID,
		&consultation.AdvisorID,
		&consultation.Subject,
		&consultation.Body,
		&consultation.Reply,
		&consultation.Status,
		&consultation.AnsweredAt,
		&consultation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &consultation, nil
}

func (r *ConsultationRepository) list(ctx context.Context, query string, arg any) ([]models.Consultation, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	consultations := make([]models.Consultation, 0)
	for rows.Next() {
		var consultation models.Consultation
		if err := rows.Scan(
			&consultation.ID,
			&consultation.UserID,
			&consultation.AdvisorID,
			&consultation.Subject,
			&consultation.Body,
			&consultation.Reply,
			&consultation.Status,
			&consultation.AnsweredAt,
			&consultation.CreatedAt,
		); err != nil {
			return nil, err
		}

		consultations = append(consultations, consultation)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return consultations, nil
}
