// cmd/notifier/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"bookhive/internal/config"
	"bookhive/internal/notify"
	"bookhive/internal/store"
	"bookhive/internal/telemetry"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := telemetry.Setup(ctx, "bookhive-notifier", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}
	defer shutdown(context.Background())

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	sender := notify.NewPushSender(cfg.PushEndpoint, cfg.PushServerKey)
	scanner := notify.NewScanner(db, sender)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	fmt.Printf("🔔 Starting BookHive notifier, sweep interval %s\n", cfg.ReminderInterval)

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	// One sweep at startup, then on every tick.
	if err := scanner.Run(ctx); err != nil {
		log.Printf("reminder sweep failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			log.Println("notifier shutting down")
			return
		case <-ticker.C:
			if err := scanner.Run(ctx); err != nil {
				log.Printf("reminder sweep failed: %v", err)
			}
		}
	}
}
