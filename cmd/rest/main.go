package main

import (
	"context"
	"log"

	"docqa-engine/internal/bootstrap"
	"docqa-engine/internal/config"
	"docqa-engine/internal/server"
	"docqa-engine/internal/tracer"
	"docqa-engine/pkg/database"
)

func main() {
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer()
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := database.NewGormDB(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	container := bootstrap.NewContainer(db, cfg)

	// Chunk embedding worker
	if err := container.ConsumerService.Consume(context.Background()); err != nil {
		log.Fatalf("Failed to start indexing consumer: %v", err)
	}

	srv := server.New(cfg, container)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
