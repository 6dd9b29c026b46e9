package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/services"
	chatws "github.com/cesar731/portfolio-cars-project-sub000/internal/websocket"
	"github.com/cesar731/portfolio-cars-project-sub000/pkg/utils"
)

type chatApplicationService interface {
	CheckAccess(ctx context.Context, actorID int64, consultationID int64) (services.ChatRole, error)
	SendMessage(ctx context.Context, actorID int64, consultationID int64, content string) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, actorID int64, consultationID int64, page, limit int) ([]models.ChatMessage, int, error)
}

type ChatHandler struct {
	service     chatApplicationService
	registry    *chatws.Registry
	jwtSecret   string
	idleTimeout time.Duration
}

func NewChatHandler(
	service chatApplicationService,
	registry *chatws.Registry,
	jwtSecret string,
	idleTimeout time.Duration,
) *ChatHandler {
	return &ChatHandler{
		service:     service,
		registry:    registry,
		jwtSecret:   jwtSecret,
		idleTimeout: idleTimeout,
	}
}

// CheckAccess answers the pre-upgrade question "may I chat on this
// consultation, and as whom". Clients call it before opening the transport.
func (h *ChatHandler) CheckAccess(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := parseConsultationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	role, err := h.service.CheckAccess(c.Context(), actorID, consultationID)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"role": role.String()})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := parseConsultationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), actorID, consultationID, page, limit)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

// WebSocketAuth validates the bearer credential before the upgrade; a bad or
// missing token never reaches the open state.
func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

// HandleWebSocket runs one transport session. The connection is keyed by
// user, not by consultation: one socket multiplexes all of the user's
// eligible consultations. Registering supersedes any previous connection for
// the same user.
func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	raw, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(h.registry, conn, userID)
	if prior := h.registry.Register(userID, client); prior != nil {
		prior.Shutdown()
	}

	go client.WritePump(h.idleTimeout)
	client.ReadPump(h.service, h.idleTimeout)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}
