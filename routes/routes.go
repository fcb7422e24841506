package routes

import (
	"github.com/Dosada05/mahjong-league/handlers"
	"github.com/Dosada05/mahjong-league/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	groupHandler *handlers.GroupHandler,
	gameHandler *handlers.GameHandler,
	seasonHandler *handlers.SeasonHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/groups", func(r chi.Router) {
		r.Get("/{groupID}", groupHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", groupHandler.Create)
			r.Post("/{groupID}/join", groupHandler.Join)
			r.Post("/{groupID}/leave", groupHandler.Leave)
			r.Get("/{groupID}/members", groupHandler.ListMembers)
			r.Put("/{groupID}/members/{userID}/role", groupHandler.UpdateMemberRole)
			r.Delete("/{groupID}/members/{userID}", groupHandler.RemoveMember)
			r.Post("/{groupID}/logo", groupHandler.UploadLogo)

			r.Post("/{groupID}/games", gameHandler.Create)
			r.Post("/{groupID}/games/{code}/scores", gameHandler.RecordScore)
			r.Delete("/{groupID}/games/{code}/scores/{playerID}", gameHandler.UndoScore)
			r.Delete("/{groupID}/games/{code}", gameHandler.Delete)
			r.Put("/{groupID}/games/{code}/progress", gameHandler.UpdateProgress)
			r.Put("/{groupID}/games/{code}/comment", gameHandler.SetComment)

			r.Post("/{groupID}/seasons", seasonHandler.Create)
		})

		r.Get("/{groupID}/games/{code}", gameHandler.Get)
		r.Get("/{groupID}/seasons", seasonHandler.List)
	})

	router.Route("/seasons", func(r chi.Router) {
		r.Get("/{seasonID}", seasonHandler.Get)
		r.Get("/{seasonID}/standings", seasonHandler.Standings)
		r.Get("/{seasonID}/dashboard", seasonHandler.Dashboard)
		r.Get("/{seasonID}/players/{userID}/changes", seasonHandler.ListPlayerChanges)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{seasonID}/start", seasonHandler.Start)
			r.Post("/{seasonID}/finish", seasonHandler.Finish)
			r.Delete("/{seasonID}", seasonHandler.Remove)
			r.Put("/{seasonID}/players/{userID}/points", seasonHandler.SetPlayerPoints)
			r.Delete("/{seasonID}/players/{userID}/points", seasonHandler.ResetPlayerPoints)
		})
	})

	router.Get("/ws/seasons/{seasonID}", webSocketHandler.ServeSeason)
}
