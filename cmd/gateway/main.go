package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/modu-market/backend/internal/config"
	"github.com/modu-market/backend/internal/gateway"
	"github.com/modu-market/backend/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadGateway()
	logger := logging.NewDefault("gateway")

	s := gateway.NewServer(cfg, logger)

	logger.Info(context.Background(), "gateway starting",
		"port", cfg.Port, "userService", cfg.UserServiceURL)
	if err := s.Run(); err != nil {
		log.Fatalf("gateway stopped: %v", err)
	}
}
