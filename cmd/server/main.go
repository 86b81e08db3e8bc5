// cmd/server/main.go
package main

import (
	"log"

	"github.com/novelmovie/novelmovie/internal/app"
	"github.com/novelmovie/novelmovie/internal/config"
)

func main() {
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("starting Novel Movie server on port %s", baseConfig.Port)

	application := app.GetApp()
	if err := application.Initialize(baseConfig); err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server exited")
}
