package main

import (
	"log"

	"github.com/copperline/grantd/internal/oauth/app"
)

func main() {
	cfg := app.LoadConfig()

	// No resource owner directory is wired in this deployment; the password
	// grant and credential logins stay unavailable until one is attached.
	application, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
