package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/config"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/handlers"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/middleware"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/repository"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/services"
	chatws "github.com/cesar731/portfolio-cars-project-sub000/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	registry := chatws.NewRegistry()

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	consultationService := services.NewConsultationService(consultationRepo)
	consultationHandler := handlers.NewConsultationHandler(consultationService)
	chatService := services.NewChatService(consultationRepo, messageRepo, registry)
	chatHandler := handlers.NewChatHandler(chatService, registry, cfg.JWTSecret, cfg.ChatIdleTimeout)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	consultations := authProtected.Group("/consultations")
	consultations.Post("", consultationHandler.Submit)
	consultations.Get("", consultationHandler.List)
	consultations.Get("/:id", consultationHandler.Get)
	consultations.Post("/:id/respond", consultationHandler.Respond)
	consultations.Get("/:id/access", chatHandler.CheckAccess)
	consultations.Get("/:id/messages", chatHandler.GetMessages)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}
