package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/memoryservice"
)

func main() {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	if err := memoryservice.Run(); err != nil {
		log.Error().Err(err).Msg("memory-service exited with error")
		os.Exit(1)
	}
}
