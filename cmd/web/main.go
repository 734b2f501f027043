package main

import (
	"github.com/joho/godotenv"

	"lumen_backend/internal/app"
)

func main() {
	// Missing .env is fine, real deployments set env vars directly.
	_ = godotenv.Load()

	app.Run()
}
