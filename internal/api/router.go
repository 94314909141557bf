/**
 * @description
 * This file sets up the HTTP router for the movement-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// MovementRoutes creates and returns the router for the movement service.
// Movement mutations sit behind merchant API-key auth; record lifecycle
// administration sits behind admin JWT auth; reads are open.
func MovementRoutes(h *MovementHandlers, adminJWTSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Read endpoints.
	r.Get("/transactions", h.ListTransactionsHandler)
	r.Get("/transactions/active", h.ListActiveTransactionsHandler)
	r.Get("/transactions/trashed", h.ListTrashedTransactionsHandler)
	r.Get("/transactions/card/{cardNumber}", h.ListTransactionsByCardHandler)
	r.Get("/transactions/{id}", h.GetTransactionHandler)
	r.Get("/transfers", h.ListTransfersHandler)
	r.Get("/transfers/active", h.ListActiveTransfersHandler)
	r.Get("/transfers/trashed", h.ListTrashedTransfersHandler)
	r.Get("/transfers/card/{cardNumber}", h.ListTransfersByCardHandler)
	r.Get("/transfers/{id}", h.GetTransferHandler)

	// Merchant-authenticated movement mutations.
	r.Group(func(r chi.Router) {
		r.Use(MerchantAuthMiddleware)

		r.Post("/transactions", h.CreateTransactionHandler)
		r.Put("/transactions/{id}", h.UpdateTransactionHandler)
		r.Post("/transfers", h.CreateTransferHandler)
		r.Put("/transfers/{id}", h.UpdateTransferHandler)
		r.Post("/topups", h.CreateTopupHandler)
		r.Put("/topups/{id}", h.UpdateTopupHandler)
		r.Post("/withdraws", h.CreateWithdrawHandler)
		r.Put("/withdraws/{id}", h.UpdateWithdrawHandler)
	})

	// Admin record lifecycle.
	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(adminJWTSecret))

		r.Post("/transactions/{id}/trash", h.TrashTransactionHandler)
		r.Post("/transactions/{id}/restore", h.RestoreTransactionHandler)
		r.Delete("/transactions/{id}", h.DeleteTransactionHandler)
		r.Post("/transactions/restore-all", h.RestoreAllTransactionsHandler)
		r.Delete("/transactions", h.DeleteAllTransactionsHandler)

		r.Post("/transfers/{id}/trash", h.TrashTransferHandler)
		r.Post("/transfers/{id}/restore", h.RestoreTransferHandler)
		r.Delete("/transfers/{id}", h.DeleteTransferHandler)
		r.Post("/transfers/restore-all", h.RestoreAllTransfersHandler)
		r.Delete("/transfers", h.DeleteAllTransfersHandler)
	})

	return r
}
