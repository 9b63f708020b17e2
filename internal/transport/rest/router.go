package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"

	"github.com/stempede/stempede-api/internal/auth"
	"github.com/stempede/stempede-api/internal/cart"
	"github.com/stempede/stempede-api/internal/catalog"
	"github.com/stempede/stempede-api/internal/order"
	"github.com/stempede/stempede-api/internal/transport/middleware"
	"github.com/stempede/stempede-api/internal/transport/swagger"
	"github.com/stempede/stempede-api/internal/user"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, healthExtras map[string]Pinger, authHandler *auth.Handler, userHandler *user.Handler, catalogHandler *catalog.Handler, cartHandler *cart.Handler, orderHandler *order.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, healthExtras)

	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Swagger UI plus the spec it renders
	router.Handle("/swagger/*", swagger.Handler())
	router.Get("/openapi.yml", swagger.SpecHandler)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/register", authHandler.Register)
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
			sr.Post("/google", authHandler.GoogleLogin)
		})

		// Public catalog routes
		if catalogHandler != nil {
			r.Get("/products", catalogHandler.GetProducts)
			r.Get("/products/{id}", catalogHandler.GetProduct)
			r.Get("/labs", catalogHandler.GetLabs)
			r.Get("/labs/{id}", catalogHandler.GetLab)
			r.Get("/subcategories", catalogHandler.GetSubcategories)
			r.Get("/subcategories/{id}", catalogHandler.GetSubcategory)
		}

		// Protected routes
		r.Group(func(pr chi.Router) {
			pr.Use(auth.AuthMiddleware(authHandler.Service))

			if userHandler != nil {
				pr.Get("/users/me", userHandler.GetCurrentUser)
				pr.Patch("/users/me", userHandler.UpdateCurrentUser)

				// Administrative user management
				pr.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireRoles("Manager"))
					ar.Post("/admin/users/{id}/ban", userHandler.BanUser)
					ar.Post("/admin/users/{id}/unban", userHandler.UnbanUser)
				})
			}

			if cartHandler != nil {
				pr.Route("/cart", func(cr chi.Router) {
					cr.Get("/", cartHandler.GetCart)
					cr.Post("/items", cartHandler.AddItem)
					cr.Patch("/items/{productID}", cartHandler.UpdateItem)
					cr.Delete("/items/{productID}", cartHandler.RemoveItem)
					cr.Post("/checkout", cartHandler.Checkout)
				})
			}

			if orderHandler != nil {
				pr.Route("/orders", func(or chi.Router) {
					or.Get("/", orderHandler.ListOrders)
					or.Get("/{id}", orderHandler.GetOrder)

					or.Group(func(sr chi.Router) {
						sr.Use(middleware.RequireRoles("Staff", "Manager"))
						sr.Patch("/{id}/delivery", orderHandler.UpdateDelivery)
					})
				})
			}
		})
	})
}
