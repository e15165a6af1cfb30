package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires every route. Cross-origin requests are allowed only from corsOrigins.
func NewRouter(h *Handlers, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)

		r.Get("/users", h.ListUsers)
		r.Get("/user/{id}", h.GetUser)
		r.Delete("/user/{id}", h.DeleteUser)

		r.Get("/category", h.ListCategories)
		r.Post("/category", h.CreateCategory)
		r.Delete("/category", h.DeleteCategoryByQuery)
		r.Get("/category/{id}", h.GetCategory)
		r.Delete("/category/{id}", h.DeleteCategory)

		r.Post("/record", h.CreateRecord)
		r.Get("/record", h.ListRecords)
		r.Get("/record/{id}", h.GetRecord)
		r.Delete("/record/{id}", h.DeleteRecord)
	})

	return r
}
