// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"bookhive/internal/activity"
	"bookhive/internal/auth"
	"bookhive/internal/booking"
	"bookhive/internal/catalog"
	"bookhive/internal/config"
	"bookhive/internal/lending"
	"bookhive/internal/member"
	"bookhive/internal/notify"
	"bookhive/internal/points"
	"bookhive/internal/store"
	"bookhive/internal/telemetry"
	"bookhive/internal/ticket"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdown, err := telemetry.Setup(ctx, "bookhive-api", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}
	defer shutdown(ctx)

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	members := member.NewService(db)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	authHandler := auth.NewHandler(members, issuer)
	memberHandler := member.NewHandler(members)
	catalogHandler := catalog.NewHandler(catalog.NewService(db))
	lendingHandler := lending.NewHandler(lending.NewService(db))
	bookingHandler := booking.NewHandler(booking.NewService(db))
	ticketHandler := ticket.NewHandler(ticket.NewService(db))
	pointsHandler := points.NewHandler(db)
	activityHandler := activity.NewHandler(db)
	notifyHandler := notify.NewHandler(db, members)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Post("/auth/register", authHandler.HandleRegister)
	r.Post("/auth/login", authHandler.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(issuer.Middleware)

		r.Get("/books/search", catalogHandler.HandleSearch)
		r.Get("/books/{id}", catalogHandler.HandleGet)

		r.Post("/borrows", lendingHandler.HandleBorrow)
		r.Post("/borrows/{id}/return", lendingHandler.HandleReturn)
		r.Delete("/borrows/{id}", lendingHandler.HandleRemove)
		r.Get("/borrows/{id}", lendingHandler.HandleGet)
		r.Get("/borrows", lendingHandler.HandleList)

		r.Post("/bookings", bookingHandler.HandleCreate)
		r.Patch("/bookings/{id}", bookingHandler.HandleEdit)
		r.Post("/bookings/{id}/cancel", bookingHandler.HandleCancel)
		r.Delete("/bookings/{id}", bookingHandler.HandleRemove)
		r.Get("/bookings/{id}", bookingHandler.HandleGet)
		r.Get("/bookings", bookingHandler.HandleList)

		r.Post("/tickets", ticketHandler.HandleCreate)
		r.Get("/tickets", ticketHandler.HandleList)
		r.Get("/tickets/{id}", ticketHandler.HandleGet)
		r.Delete("/tickets/{id}", ticketHandler.HandleDelete)

		r.Get("/me/points", pointsHandler.HandleMine)
		r.Get("/me/activities", activityHandler.HandleMine)
		r.Get("/me/notifications", notifyHandler.HandleList)
		r.Put("/me/fcm-token", notifyHandler.HandleUpdateFCMToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Post("/books", catalogHandler.HandleAdd)
			r.Patch("/books/{id}", catalogHandler.HandleUpdate)
			r.Delete("/books/{id}", catalogHandler.HandleRemove)

			r.Get("/users", memberHandler.HandleList)
			r.Get("/users/{id}", memberHandler.HandleGet)
			r.Patch("/users/{id}", memberHandler.HandleUpdate)
			r.Delete("/users/{id}", memberHandler.HandleDelete)

			r.Post("/tickets/{id}/review", ticketHandler.HandleReview)
		})
	})

	fmt.Printf("🚀 Starting BookHive API on port %s\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
