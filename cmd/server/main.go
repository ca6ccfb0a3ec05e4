package main

import (
	"log"

	"github.com/playforge/arena-core/config"
	"github.com/playforge/arena-core/server"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env so WALLET_URL and DATABASE_URL are set: cwd .env or project root
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	_ = godotenv.Load("../.env.local")
	cfg := config.Load()
	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
