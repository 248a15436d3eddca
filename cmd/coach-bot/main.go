package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"marathon-trainer/internal/app"
	"marathon-trainer/internal/coach"
	"marathon-trainer/internal/config"
	"marathon-trainer/internal/llm"
	"marathon-trainer/internal/metrics"
	"marathon-trainer/internal/store"
	"marathon-trainer/internal/telegram"
)

func main() {
	ctx := context.Background()

	configPath := os.Getenv("TRAINER_CONFIG")
	if configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configPath = home + "/.marathon-trainer/config.yaml"
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Telegram.Token == "" {
		log.Fatal("telegram.token is required to run the bot")
	}

	st, err := store.Open(cfg.State.Path)
	if err != nil {
		log.Fatalf("Failed to open state: %v", err)
	}

	var textGen llm.TextGenerator
	switch cfg.LLM.Provider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.Model)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		defer client.Close()
		textGen = client
	case "groq":
		textGen = llm.NewGroqClient(cfg.LLM.GroqAPIKey)
	}

	var c *coach.Coach
	if textGen != nil {
		c = coach.New(textGen)
	}

	var metricsStore *metrics.Store
	if cfg.Metrics.Enabled {
		db, err := metrics.OpenDB(cfg.Metrics.Path)
		if err != nil {
			log.Fatalf("Failed to initialize metrics database: %v", err)
		}
		metricsStore = metrics.NewStore(db)
		defer metricsStore.Close()
	}

	application := app.NewApp(st, c, metricsStore, cfg)

	bot, err := telegram.NewBot(cfg, application)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Bot is running. Press Ctrl+C to stop.")
	if err := bot.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Bot stopped: %v", err)
	}
	log.Println("Shutting down.")
}
