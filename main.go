package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"mafianight/internal/database"
	"mafianight/internal/game"
	"mafianight/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	level, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	addr := envOr("ADDR", ":3001")
	dbPath := envOr("SQLITE_PATH", "./mafia.db")
	cleanupEvery, err := time.ParseDuration(envOr("CLEANUP_INTERVAL", "10m"))
	if err != nil {
		cleanupEvery = 10 * time.Minute
	}

	store, err := database.NewStore(dbPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("failed to open history store")
	}
	defer store.Close()

	registry := game.NewRegistry(log)
	gateway := server.NewGateway(registry, store, server.TimerScheduler{}, log)

	startedAt := time.Now()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","activeRooms":%d,"uptimeSeconds":%d}`,
			registry.Count(), int(time.Since(startedAt).Seconds()))
	})

	go func() {
		ticker := time.NewTicker(cleanupEvery)
		defer ticker.Stop()
		for range ticker.C {
			if n := gateway.ReapStaleRooms(); n > 0 {
				log.Info().Int("reclaimed", n).Int("remaining", registry.Count()).Msg("room cleanup")
			}
		}
	}()

	log.Info().Str("addr", addr).Dur("cleanupInterval", cleanupEvery).Msg("mafia server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
