package routes

import (
	"github.com/bracketworks/arena/handlers"
	"github.com/bracketworks/arena/middleware"
	"github.com/bracketworks/arena/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	Tournament  *handlers.TournamentHandler
	Participant *handlers.ParticipantHandler
	Match       *handlers.MatchHandler
	Dispute     *handlers.DisputeHandler
	Wallet      *handlers.WalletHandler
	WebSocket   *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, auth *middleware.Authenticator) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
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

	router.Post("/auth/signup", h.Auth.SignUp)
	router.Post("/auth/signin", h.Auth.SignIn)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.List)
		r.Get("/{id}", h.Tournament.Get)
		r.Get("/{id}/participants", h.Participant.List)
		r.Get("/{id}/matches", h.Match.ListByTournament)
		r.Get("/{id}/ws", h.WebSocket.ServeWs)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{id}/participants", h.Participant.Register)
			r.Delete("/{id}/participants/{participantID}", h.Participant.Withdraw)
			r.Post("/{id}/participants/{participantID}/check-in", h.Participant.CheckIn)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin))

				r.Post("/", h.Tournament.Create)
				r.Put("/{id}", h.Tournament.Update)
				r.Post("/{id}/open-registration", h.Tournament.OpenRegistration)
				r.Post("/{id}/close-registration", h.Tournament.CloseRegistration)
				r.Post("/{id}/start", h.Tournament.Start)
				r.Post("/{id}/complete", h.Tournament.Complete)
				r.Post("/{id}/cancel", h.Tournament.Cancel)
				r.Post("/{id}/bracket", h.Match.ImportBracket)
				r.Put("/{id}/participants/{participantID}/seed", h.Participant.AssignSeed)
			})
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{id}", h.Match.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{id}/start", h.Match.Start)
			r.Post("/{id}/result", h.Match.SubmitResult)
			r.Post("/{id}/confirm", h.Match.ConfirmResult)
			r.Post("/{id}/proof", h.Match.UploadProof)
			r.Post("/{id}/disputes", h.Dispute.Open)

			r.With(middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin)).
				Post("/{id}/cancel", h.Match.Cancel)
		})
	})

	router.Route("/disputes", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.RequireRole(models.RoleModerator, models.RoleAdmin))

		r.Get("/", h.Dispute.List)
		r.Get("/{id}", h.Dispute.Get)
		r.Post("/{id}/review", h.Dispute.StartReview)
		r.Post("/{id}/resolve", h.Dispute.Resolve)
	})

	router.Route("/wallet", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/", h.Wallet.Get)
		r.Get("/transactions", h.Wallet.ListTransactions)
		r.Post("/deposit", h.Wallet.Deposit)
		r.Post("/withdraw", h.Wallet.Withdraw)
	})

	return router
}
