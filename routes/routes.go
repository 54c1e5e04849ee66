package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/academyhq/tournament-core/handlers"
	"github.com/academyhq/tournament-core/middleware"
	"github.com/academyhq/tournament-core/models"
)

// SetupRoutes wires every HTTP endpoint onto the router.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	enrollmentHandler *handlers.EnrollmentHandler,
	sessionHandler *handlers.SessionHandler,
	rewardHandler *handlers.RewardHandler,
	creditHandler *handlers.CreditHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.GetByID)
		r.Get("/{tournamentID}/detail", tournamentHandler.GetDetail)
		r.Get("/{tournamentID}/history", tournamentHandler.History)
		r.Get("/{tournamentID}/enrollments", enrollmentHandler.ListByTournament)
		r.Get("/{tournamentID}/sessions", sessionHandler.List)
		r.Get("/{tournamentID}/standings", sessionHandler.Standings)
		r.Get("/{tournamentID}/rewards", rewardHandler.GetDistribution)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{tournamentID}/enrollments", enrollmentHandler.Enroll)
			r.Post("/{tournamentID}/check-in", enrollmentHandler.CheckIn)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(models.RoleAdmin))

				r.Post("/", tournamentHandler.Create)
				r.Post("/{tournamentID}/transitions", tournamentHandler.Transition)
				r.Post("/{tournamentID}/instructor", tournamentHandler.AssignInstructor)
				r.Post("/{tournamentID}/sessions", sessionHandler.Generate)
				r.Post("/{tournamentID}/rewards", rewardHandler.Distribute)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(models.RoleInstructor, models.RoleAdmin))

				r.Post("/{tournamentID}/instructor/response", tournamentHandler.RespondToAssignment)
			})
		})
	})

	router.Route("/enrollments", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Delete("/{enrollmentID}", enrollmentHandler.Unenroll)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authorize(models.RoleAdmin))
			r.Post("/{enrollmentID}/reject", enrollmentHandler.Reject)
		})
	})

	router.Route("/sessions", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(models.RoleInstructor, models.RoleAdmin))

		r.Post("/{sessionID}/result", sessionHandler.RecordResult)
	})

	router.Route("/me/credits", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/", creditHandler.GetBalance)
		r.Get("/transactions", creditHandler.ListTransactions)
		r.Post("/top-up", creditHandler.TopUp)
	})
}
