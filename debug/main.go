package main

import (
	"os"

	"github.com/emrgen/rard/internal/config"
	"github.com/emrgen/rard/internal/server"
	"github.com/sirupsen/logrus"
)

// debug runs the api against a local sqlite file with verbose logging.
func main() {
	cfg := config.LoadConfig()
	cfg.LogLevel = "debug"

	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = "4001"
	}
	cfg.HTTPPort = httpPort

	if err := server.Start(cfg); err != nil {
		logrus.Fatal(err)
	}
}
