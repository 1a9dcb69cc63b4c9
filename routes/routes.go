package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vortexplay/arena-server/handlers"
	"github.com/vortexplay/arena-server/middleware"
	"github.com/vortexplay/arena-server/services"
)

func SetupRoutes(
	router *chi.Mux,
	auth services.AuthService,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	participantHandler *handlers.ParticipantHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{id}", tournamentHandler.Get)
		r.Get("/{id}/participants", participantHandler.List)
		r.Get("/{id}/matches", matchHandler.ListByTournament)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(auth))

			r.Post("/", tournamentHandler.Create)
			r.Patch("/{id}/status", tournamentHandler.ChangeStatus)
			r.Post("/{id}/bracket", tournamentHandler.GenerateBracket)
			r.Post("/{id}/progress", tournamentHandler.Progress)
			r.Post("/{id}/participants", participantHandler.Register)
		})
	})

	router.Route("/participants", func(r chi.Router) {
		r.Use(middleware.Authenticate(auth))

		r.Post("/{participantID}/confirm", participantHandler.Confirm)
		r.Post("/{participantID}/withdraw", participantHandler.Withdraw)
		r.Post("/{participantID}/disqualify", participantHandler.Disqualify)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{id}", matchHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(auth))

			r.Post("/{id}/join", matchHandler.Join)
			r.Post("/{id}/ready", matchHandler.SetReady)
			r.Post("/{id}/start", matchHandler.Start)
			r.Post("/{id}/end", matchHandler.End)
			r.Post("/{id}/disputes", matchHandler.ReportDispute)
			r.Post("/{id}/messages", matchHandler.SendMessage)
		})
	})

	router.Route("/disputes", func(r chi.Router) {
		r.Use(middleware.Authenticate(auth))

		r.Post("/{disputeID}/evidence", matchHandler.UploadEvidence)
	})

	router.Route("/ws", func(r chi.Router) {
		r.Get("/matches/{id}", webSocketHandler.SubscribeMatch)
		r.Get("/tournaments/{id}", webSocketHandler.SubscribeTournament)
	})
}
