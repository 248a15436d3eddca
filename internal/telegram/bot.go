// Package telegram exposes the trainer over a long-polling Telegram bot.
// One user, one state: the bot is gated by a user-id allowlist and simply
// forwards messages into the app layer.
package telegram

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marathon-trainer/internal/app"
	"marathon-trainer/internal/config"
	"marathon-trainer/internal/metrics"
	"marathon-trainer/internal/pace"
	"marathon-trainer/internal/trainer"
)

// Bot wraps the Telegram API and the trainer app.
type Bot struct {
	api *tgbotapi.BotAPI
	app *app.App
	cfg *config.Config
}

// NewBot initializes the Telegram bot.
func NewBot(cfg *config.Config, a *app.App) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Printf("Authorized on account %s", api.Self.UserName)
	return &Bot{api: api, app: a, cfg: cfg}, nil
}

// Run long-polls for updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			if !b.allowed(update.Message.From.ID) {
				log.Printf("Unauthorized access attempt from UserID: %d (@%s)",
					update.Message.From.ID, update.Message.From.UserName)
				continue
			}
			go b.processMessage(update.Message)
		}
	}
}

func (b *Bot) allowed(userID int64) bool {
	for _, id := range b.cfg.Telegram.AllowedUserIDs {
		if userID == id {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "/start" || text == "/help":
		b.reply(msg.Chat.ID, helpText)
	case text == "/overview":
		b.reply(msg.Chat.ID, b.app.Overview())
	case text == "/records":
		b.reply(msg.Chat.ID, b.app.RecordsText())
	case text == "/stats":
		b.reply(msg.Chat.ID, b.app.StatsText())
	case text == "/metrics":
		b.handleMetricsCommand(msg.Chat.ID)
	case text == "/plan":
		b.handlePlanRequest(msg)
	case text == "/generate":
		out, err := b.app.GenerateLocalPlan()
		if err != nil {
			out = "Error: " + err.Error()
		}
		b.reply(msg.Chat.ID, out)
	case text == "/calendar":
		b.reply(msg.Chat.ID, calendarText(b.app))
	case strings.HasPrefix(text, "/apply "):
		out, err := b.app.ImportPlanText(strings.TrimPrefix(text, "/apply "))
		if err != nil {
			out = "Error: " + err.Error()
		}
		b.reply(msg.Chat.ID, out)
	case strings.HasPrefix(text, "/run "):
		b.handleLogRun(msg, strings.TrimPrefix(text, "/run "))
	case strings.HasPrefix(text, "/done "):
		b.handleCompleteDay(msg, strings.TrimPrefix(text, "/done "))
	case strings.HasPrefix(text, "/undone "):
		out, err := b.app.Uncomplete(strings.TrimSpace(strings.TrimPrefix(text, "/undone ")))
		if err != nil {
			out = "Error: " + err.Error()
		}
		b.reply(msg.Chat.ID, out)
	default:
		b.handleChat(msg)
	}
}

const helpText = `Commands:
/overview - countdown, weekly progress, next workouts
/plan - ask the coach for a training plan
/generate - build a plan locally, no AI
/calendar - show the training calendar
/apply <text> - read workouts from pasted plan text
/run <km> [mm:ss or h:mm:ss] - log a run for today
/done <YYYY-MM-DD> - mark a planned workout complete
/undone <YYYY-MM-DD> - revert a completion
/records - personal records
/stats - weekly totals and HR zones
/metrics - usage and health report

Anything else is treated as a question for the coach.`

func calendarText(a *app.App) string {
	plan := a.Store.Plan()
	if len(plan) == 0 {
		return "The calendar is empty. Use /plan or /generate first."
	}
	return trainer.Summarize(plan)
}

func (b *Bot) handlePlanRequest(msg *tgbotapi.Message) {
	sent := b.reply(msg.Chat.ID, "Thinking... building your plan.")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := b.app.BuildAIPlan(ctx)
	if err != nil {
		out = "Error building plan: " + err.Error()
	}
	b.edit(msg.Chat.ID, sent, out)
}

func (b *Bot) handleChat(msg *tgbotapi.Message) {
	sent := b.reply(msg.Chat.ID, "Thinking...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := b.app.Chat(ctx, msg.Text)
	if err != nil {
		out = "Error: " + err.Error()
	}
	b.edit(msg.Chat.ID, sent, out)
}

// handleLogRun parses "/run 8.5 45:30" style arguments.
func (b *Bot) handleLogRun(msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(msg.Chat.ID, "Usage: /run <km> [mm:ss]")
		return
	}
	km, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Could not read the distance: "+fields[0])
		return
	}
	timeSec := 0
	if len(fields) > 1 {
		if timeSec, err = pace.ParseClock(fields[1]); err != nil {
			b.reply(msg.Chat.ID, "Could not read the time: "+fields[1])
			return
		}
	}

	run, err := b.app.LogRun("", km, timeSec, "")
	if err != nil {
		b.reply(msg.Chat.ID, "Error: "+err.Error())
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Logged %.1f km on %s.", run.ActualKm, run.Date()))
}

func (b *Bot) handleCompleteDay(msg *tgbotapi.Message, date string) {
	out, err := b.app.CompleteDay(strings.TrimSpace(date), 0)
	if err != nil {
		out = "Error: " + err.Error()
	}
	b.reply(msg.Chat.ID, out)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	var sb strings.Builder
	sb.WriteString("Usage & Health Report\n\n")

	if b.app.Metrics != nil {
		usage, err := b.app.Metrics.GetDailyUsage(context.Background(), 7)
		if err != nil {
			b.reply(chatID, "Error fetching metrics.")
			return
		}
		sb.WriteString("Recent coach activity:\n")
		if len(usage) == 0 {
			sb.WriteString("  no data yet\n")
		}
		for _, d := range usage {
			sb.WriteString(fmt.Sprintf("  %s: %d tokens (%d calls)\n",
				d.Date, d.TotalPrompt+d.TotalCompletion, d.Calls))
		}
	} else {
		sb.WriteString("Metrics are disabled.\n")
	}

	health := metrics.GetSysHealth(filepath.Dir(b.cfg.State.Path))
	sb.WriteString("\nSystem health:\n")
	sb.WriteString(fmt.Sprintf("  RAM: %dMB (alloc) / %dMB (sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("  Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("  Data on disk: %s\n", health.DataSize))

	b.reply(chatID, sb.String())
}

func (b *Bot) reply(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("Failed to send reply: %v", err)
		return 0
	}
	return sent.MessageID
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.reply(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit reply: %v", err)
	}
}
