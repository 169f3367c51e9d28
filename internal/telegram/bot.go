package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mealplan-engine/internal/app"
	"mealplan-engine/internal/config"
	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	defaultPlanDays = 7
	maxMessageLen   = 4000
	requestTimeout  = 2 * time.Minute
)

const helpText = `🥗 *Meal Planner*

/plan [days] [diet] - plan next week, e.g. /plan 5 vegetarian
/groceries - grocery list of your latest plan
/progress - planned vs logged nutrition
/metrics - usage report (admin)

Send a recipe URL to add it to the catalog.`

// sender is the part of the Telegram API the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot serves the meal planner over Telegram.
type Bot struct {
	api    sender
	botAPI *tgbotapi.BotAPI
	app    *app.App
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewBot initializes the Telegram API. When a webhook URL is configured it
// is registered; otherwise Run must be used to poll for updates.
func NewBot(cfg *config.Config, a *app.App, logger *zap.Logger) (*Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("account", botAPI.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook URL %s: %w", cfg.TelegramWebhookURL, err)
		}
		resp, err := botAPI.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		logger.Info("webhook set", zap.String("description", resp.Description))
	}

	b := newBot(botAPI, a, cfg, logger)
	b.botAPI = botAPI
	return b, nil
}

func newBot(api sender, a *app.App, cfg *config.Config, logger *zap.Logger) *Bot {
	return &Bot{api: api, app: a, cfg: cfg, logger: logger, now: time.Now}
}

// Handler returns the webhook handler.
func (b *Bot) Handler() http.Handler {
	return http.HandlerFunc(b.handleWebhook)
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.botAPI == nil {
		return errors.New("telegram bot is not connected")
	}
	if _, err := b.botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.botAPI.GetUpdatesChan(u)
	b.logger.Info("polling telegram for updates")

	for {
		select {
		case <-ctx.Done():
			b.botAPI.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update := <-updates:
			b.dispatch(update)
		}
	}
}

// Wait blocks until in-flight updates are handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Warn("error parsing update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.dispatch(update)
	w.WriteHeader(http.StatusOK)
}

// dispatch handles an update in the background so the webhook returns fast.
func (b *Bot) dispatch(update tgbotapi.Update) {
	var from *tgbotapi.User
	switch {
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
	case update.Message != nil:
		from = update.Message.From
	default:
		return
	}
	if from == nil || !b.cfg.AllowsTelegramUser(from.ID) {
		if from != nil {
			b.logger.Warn("unauthorized access attempt", zap.Int64("user_id", from.ID), zap.String("username", from.UserName))
		}
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(ctx, update.CallbackQuery)
			return
		}
		b.processMessage(ctx, update.Message)
	}()
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		b.handleClipperRequest(ctx, msg, text)
		return
	}

	cmd, args := parseCommand(text)
	switch cmd {
	case "plan":
		b.handlePlannerRequest(ctx, msg, args)
	case "groceries":
		b.handleGroceriesRequest(ctx, msg)
	case "progress":
		b.handleProgressRequest(ctx, msg)
	case "metrics":
		b.handleMetricsRequest(ctx, msg)
	default:
		b.sendMarkdown(msg.Chat.ID, helpText)
	}
}

// parseCommand splits "/plan@MyBot 5 vegan" into "plan" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

// parsePlanArgs reads an optional day count and an optional diet in any order.
func parsePlanArgs(args []string) (int, string, error) {
	days := defaultPlanDays
	var diet []string
	for _, a := range args {
		if n, err := strconv.Atoi(a); err == nil {
			if n < 1 || n > 30 {
				return 0, "", fmt.Errorf("days must be between 1 and 30, got %d", n)
			}
			days = n
			continue
		}
		diet = append(diet, a)
	}
	return days, strings.Join(diet, " "), nil
}

func userIDOf(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func (b *Bot) handlePlannerRequest(ctx context.Context, msg *tgbotapi.Message, args []string) {
	days, diet, err := parsePlanArgs(args)
	if err != nil {
		b.sendMarkdown(msg.Chat.ID, "❌ "+escapeMarkdown(err.Error()))
		return
	}

	sentMsg, err := b.api.Send(markdownMessage(msg.Chat.ID, "🧑‍🍳 *Thinking...*\n(Picking recipes for your plan)"))
	if err != nil {
		b.logger.Warn("failed to send initial reply", zap.Error(err))
		return
	}

	userID := userIDOf(msg.From)
	nextMonday := planner.GetNextMonday(b.now())

	if latest, err := b.app.LatestPlan(ctx, userID); err == nil && nutrition.DateKey(latest.StartDate) == nutrition.DateKey(nextMonday) {
		promptText := fmt.Sprintf("🗓️ A plan already exists for next week (starting *%s*).\nWhat would you like to do?", nutrition.DateKey(nextMonday))
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 Regenerate", "regen|"+latest.ID),
				tgbotapi.NewInlineKeyboardButtonData("⏭️ Plan Following Week", fmt.Sprintf("next|%d|%s", days, diet)),
			),
		)
		edit := tgbotapi.NewEditMessageText(msg.Chat.ID, sentMsg.MessageID, promptText)
		edit.ParseMode = tgbotapi.ModeMarkdown
		edit.ReplyMarkup = &keyboard
		b.send(edit)
		return
	}

	b.generateAndSendPlan(ctx, msg.Chat.ID, sentMsg.MessageID, userID, days, diet, nextMonday)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	b.request(tgbotapi.NewCallback(query.ID, ""))

	chatID, messageID := query.Message.Chat.ID, query.Message.MessageID
	b.editMarkdown(chatID, messageID, "🧑‍🍳 *Thinking...*")

	parts := strings.Split(query.Data, "|")
	switch parts[0] {
	case "regen":
		if len(parts) != 2 {
			return
		}
		plan, err := b.app.RegeneratePlan(ctx, parts[1])
		if err != nil {
			b.editError(chatID, messageID, "Error regenerating plan", err)
			return
		}
		b.sendPlan(ctx, chatID, messageID, plan)
	case "next":
		if len(parts) != 3 {
			return
		}
		days, err := strconv.Atoi(parts[1])
		if err != nil {
			days = defaultPlanDays
		}
		following := planner.GetNextMonday(planner.GetNextMonday(b.now()))
		b.generateAndSendPlan(ctx, chatID, messageID, userIDOf(query.From), days, parts[2], following)
	}
}

func (b *Bot) generateAndSendPlan(ctx context.Context, chatID int64, messageID int, userID string, days int, diet string, start time.Time) {
	b.logger.Info("generating plan from telegram", zap.String("user_id", userID), zap.Int("days", days), zap.String("diet", diet))

	plan, err := b.app.GeneratePlan(ctx, app.GenerateRequest{
		UserID:    userID,
		StartDate: start,
		Preferences: planner.Preferences{
			DurationDays:      days,
			DietaryPreference: diet,
		},
	})
	if err != nil {
		b.editError(chatID, messageID, "Error generating plan", err)
		return
	}
	if plan.Summary.FlaggedDays > 0 {
		b.sendAdminAlert(fmt.Sprintf("⚠️ *Off-target plan*\nUser: %s\nFlagged days: %d of %d", userID, plan.Summary.FlaggedDays, len(plan.Days)))
	}
	b.sendPlan(ctx, chatID, messageID, plan)
}

// sendPlan replaces the status message with the plan and follows up with
// its grocery list.
func (b *Bot) sendPlan(ctx context.Context, chatID int64, messageID int, plan *planner.MealPlan) {
	parts := splitMessage(formatPlanMarkdown(plan), maxMessageLen)
	b.editMarkdown(chatID, messageID, parts[0])
	for _, p := range parts[1:] {
		b.sendMarkdown(chatID, p)
	}

	list, err := b.app.GroceryList(ctx, plan.ID)
	if err != nil {
		b.logger.Warn("failed to build grocery list", zap.String("plan_id", plan.ID), zap.Error(err))
		return
	}
	for _, p := range splitMessage(formatGroceriesMarkdown(list), maxMessageLen) {
		b.sendMarkdown(chatID, p)
	}
}

func (b *Bot) handleGroceriesRequest(ctx context.Context, msg *tgbotapi.Message) {
	plan, err := b.app.LatestPlan(ctx, userIDOf(msg.From))
	if err != nil {
		b.replyError(msg.Chat.ID, "No plan found, send /plan first", err)
		return
	}
	list, err := b.app.GroceryList(ctx, plan.ID)
	if err != nil {
		b.replyError(msg.Chat.ID, "Error building grocery list", err)
		return
	}
	for _, p := range splitMessage(formatGroceriesMarkdown(list), maxMessageLen) {
		b.sendMarkdown(msg.Chat.ID, p)
	}
}

func (b *Bot) handleProgressRequest(ctx context.Context, msg *tgbotapi.Message) {
	plan, err := b.app.LatestPlan(ctx, userIDOf(msg.From))
	if err != nil {
		b.replyError(msg.Chat.ID, "No plan found, send /plan first", err)
		return
	}
	progress, err := b.app.PlanProgress(ctx, plan.ID)
	if err != nil {
		b.replyError(msg.Chat.ID, "Error computing progress", err)
		return
	}
	b.sendMarkdown(msg.Chat.ID, formatProgressMarkdown(progress))
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.AdminTelegramID == 0 || msg.From.ID != b.cfg.AdminTelegramID {
		b.sendMarkdown(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	report, err := b.app.MetricsReport(ctx, 7)
	if err != nil {
		b.replyError(msg.Chat.ID, "Error fetching metrics", err)
		return
	}
	b.sendMarkdown(msg.Chat.ID, "📊 *Usage & Health Report*\n\n"+escapeMarkdown(report))
}

func (b *Bot) handleClipperRequest(ctx context.Context, msg *tgbotapi.Message, url string) {
	sentMsg, err := b.api.Send(markdownMessage(msg.Chat.ID, "✂️ *Clipping recipe...*"))
	if err != nil {
		b.logger.Warn("failed to send initial reply", zap.Error(err))
		return
	}
	rec, err := b.app.ClipRecipe(ctx, url)
	if err != nil {
		b.editError(msg.Chat.ID, sentMsg.MessageID, "Error clipping recipe", err)
		return
	}
	text := fmt.Sprintf("✅ *Recipe Saved!*\n\n*Title:* %s\n*Calories:* %.0f kcal per serving\n*Ingredients:* %d",
		escapeMarkdown(rec.Title), rec.Nutrition.Calories, len(rec.Ingredients))
	b.editMarkdown(msg.Chat.ID, sentMsg.MessageID, text)
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.sendMarkdown(b.cfg.AdminTelegramID, text)
}

func markdownMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	b.send(markdownMessage(chatID, text))
}

func (b *Bot) editMarkdown(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.send(edit)
}

func (b *Bot) editError(chatID int64, messageID int, title string, err error) {
	b.logger.Warn(strings.ToLower(title), zap.Error(err))
	b.editMarkdown(chatID, messageID, errorText(title, err))
}

func (b *Bot) replyError(chatID int64, title string, err error) {
	b.logger.Info(strings.ToLower(title), zap.Error(err))
	b.sendMarkdown(chatID, errorText(title, err))
}

func errorText(title string, err error) string {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *%s:*\n```\n%v\n```", title, safeErr)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("failed to send telegram message", zap.Error(err))
	}
}

func (b *Bot) request(c tgbotapi.Chattable) {
	if _, err := b.api.Request(c); err != nil {
		b.logger.Warn("telegram request failed", zap.Error(err))
	}
}
