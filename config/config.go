package config

import (
	"os"
	"strconv"
)

type Config struct {
	WalletURL   string // Base URL of the account/balance service
	ArenaPort   int
	DataDir     string // Dir for session/flag/ledger JSON stores
	SeasonID    string // Current ranked season (e.g. "season_12")
	DatabaseURL string // Optional Postgres DSN for rating/flag persistence
}

func Load() *Config {
	walletURL := os.Getenv("WALLET_URL")
	if walletURL == "" {
		walletURL = "http://localhost:3000"
	}
	port := 8082
	// Prefer PORT (Render, Fly.io, Railway, etc.) then ARENA_PORT
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			port = v
		}
	} else if p := os.Getenv("ARENA_PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			port = v
		}
	}
	dataDir := os.Getenv("ARENA_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	seasonID := os.Getenv("ARENA_SEASON_ID")
	if seasonID == "" {
		seasonID = "season_1"
	}
	return &Config{
		WalletURL:   walletURL,
		ArenaPort:   port,
		DataDir:     dataDir,
		SeasonID:    seasonID,
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}
