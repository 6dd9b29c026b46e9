package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/services"
)

type consultationApplicationService interface {
	Submit(ctx context.Context, actorID int64, role string, subject, body string) (*models.Consultation, error)
	Get(ctx context.Context, actorID int64, role string, consultationID int64) (*models.Consultation, error)
	List(ctx context.Context, actorID int64, role string) ([]models.Consultation, error)
	Respond(ctx context.Context, actorID int64, role string, consultationID int64, reply string) (*models.Consultation, error)
}

type ConsultationHandler struct {
	service consultationApplicationService
}

func NewConsultationHandler(service consultationApplicationService) *ConsultationHandler {
	return &ConsultationHandler{service: service}
}

type submitConsultationRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type respondConsultationRequest struct {
	Reply string `json:"reply"`
}

func (h *ConsultationHandler) Submit(c *fiber.Ctx) error {
	actorID, role, err := actorContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req submitConsultationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	consultation, err := h.service.Submit(c.Context(), actorID, role, req.Subject, req.Body)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"consultation": consultation})
}

func (h *ConsultationHandler) List(c *fiber.Ctx) error {
	actorID, role, err := actorContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultations, err := h.service.List(c.Context(), actorID, role)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultations": consultations})
}

func (h *ConsultationHandler) Get(c *fiber.Ctx) error {
	actorID, role, err := actorContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := parseConsultationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	consultation, err := h.service.Get(c.Context(), actorID, role, consultationID)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultation": consultation})
}

func (h *ConsultationHandler) Respond(c *fiber.Ctx) error {
	actorID, role, err := actorContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := parseConsultationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	var req respondConsultationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	consultation, err := h.service.Respond(c.Context(), actorID, role, consultationID, req.Reply)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultation": consultation})
}

func actorContext(c *fiber.Ctx) (int64, string, error) {
	actorID, err := parseActorID(c)
	if err != nil {
		return 0, "", err
	}
	role, ok := c.Locals("role").(string)
	if !ok || role == "" {
		return 0, "", errors.New("missing role")
	}
	return actorID, role, nil
}

func parseConsultationID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid consultation id")
	}
	return id, nil
}

func mapConsultationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Consultation not found"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Consultation already responded"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process consultation request"})
	}
}
