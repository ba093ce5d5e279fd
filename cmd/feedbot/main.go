// Command feedbot runs the feedback collection bot.
package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/feedbot/core/cmd"
	"github.com/m3rciful/feedbot/internal/app"
	"github.com/m3rciful/feedbot/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        loadConfig,
		Bootstrap:         bootstrapApp,
	})
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) (cmd.ConfigCarrier, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func bootstrapApp(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T", carrier)
	}
	a, err := app.Bootstrap(cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}
