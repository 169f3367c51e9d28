package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"mealplan-engine/internal/nutrition"

	"github.com/joho/godotenv"
)

// ErrProfileNotConfigured is returned when no default profile is set in the environment.
var ErrProfileNotConfigured = errors.New("default profile not configured")

// Config holds the configuration for the application.
type Config struct {
	DatabasePath      string
	RecipeStoragePath string
	TuningFile        string
	LogLevel          string
	LogFormat         string
	Port              string

	// NormalizeGroceryUnits folds g/kg and ml/l spellings before merging grocery lines.
	NormalizeGroceryUnits bool

	GhostURL        string
	GhostContentKey string
	GhostAdminKey   string

	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string
	GroqModel    string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	profile *nutrition.Profile
}

// NewFromEnv creates a new Config object from a .env file, when present,
// and environment variables. Feature-specific settings are checked by the
// Require* methods so each binary only fails on what it uses.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		DatabasePath:       getEnv("DATABASE_PATH", "data/mealplan.db"),
		RecipeStoragePath:  getEnv("RECIPE_STORAGE_PATH", "data/recipes"),
		TuningFile:         os.Getenv("PLANNER_TUNING_FILE"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		Port:               getEnv("PORT", "8080"),
		GhostURL:           os.Getenv("GHOST_API_URL"),
		GhostContentKey:    os.Getenv("GHOST_CONTENT_API_KEY"),
		GhostAdminKey:      os.Getenv("GHOST_ADMIN_API_KEY"),
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		GroqModel:          getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	if s := os.Getenv("GROCERY_NORMALIZE_UNITS"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid GROCERY_NORMALIZE_UNITS: %w", err)
		}
		cfg.NormalizeGroceryUnits = v
	}

	ids, err := parseIDs(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	cfg.TelegramAllowedUserIDs = ids

	if s := os.Getenv("ADMIN_TELEGRAM_ID"); s != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
		cfg.AdminTelegramID = id
	}

	profile, err := profileFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.profile = profile

	return cfg, nil
}

// RequireGhost checks the settings needed to browse the recipe blog.
func (c *Config) RequireGhost() error {
	if c.GhostURL == "" {
		return fmt.Errorf("GHOST_API_URL environment variable not set")
	}
	if c.GhostContentKey == "" && c.GhostAdminKey == "" {
		return fmt.Errorf("GHOST_CONTENT_API_KEY environment variable not set")
	}
	return nil
}

// RequireLLM checks the key of the configured LLM provider.
func (c *Config) RequireLLM() error {
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case "groq":
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (want gemini or groq)", c.LLMProvider)
	}
	return nil
}

// RequireTelegram checks the bot token.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	return nil
}

// AllowsTelegramUser reports whether the user may talk to the bot. An empty
// allow list admits everyone.
func (c *Config) AllowsTelegramUser(id int64) bool {
	if len(c.TelegramAllowedUserIDs) == 0 || id == c.AdminTelegramID {
		return true
	}
	for _, allowed := range c.TelegramAllowedUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

// DefaultProfile returns the profile configured through PROFILE_* variables.
func (c *Config) DefaultProfile() (nutrition.Profile, error) {
	if c.profile == nil {
		return nutrition.Profile{}, ErrProfileNotConfigured
	}
	return *c.profile, nil
}

func profileFromEnv() (*nutrition.Profile, error) {
	if os.Getenv("PROFILE_AGE") == "" {
		return nil, nil
	}

	var p nutrition.Profile
	var err error
	if p.Age, err = strconv.Atoi(strings.TrimSpace(os.Getenv("PROFILE_AGE"))); err != nil {
		return nil, fmt.Errorf("invalid PROFILE_AGE: %w", err)
	}
	if p.HeightCm, err = parseFloatEnv("PROFILE_HEIGHT_CM"); err != nil {
		return nil, err
	}
	if p.WeightKg, err = parseFloatEnv("PROFILE_WEIGHT_KG"); err != nil {
		return nil, err
	}
	p.Sex = nutrition.Sex(os.Getenv("PROFILE_SEX"))
	p.ActivityLevel = nutrition.ActivityLevel(getEnv("PROFILE_ACTIVITY", string(nutrition.ActivityModerate)))
	p.Goal = nutrition.Goal(getEnv("PROFILE_GOAL", string(nutrition.GoalMaintenance)))

	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default profile: %w", err)
	}
	return &p, nil
}

func parseFloatEnv(key string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
