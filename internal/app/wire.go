package app

import (
	"context"
	"fmt"
	"time"

	"mealplan-engine/internal/clipper"
	"mealplan-engine/internal/config"
	"mealplan-engine/internal/database"
	"mealplan-engine/internal/ghost"
	"mealplan-engine/internal/llm"
	"mealplan-engine/internal/metrics"
	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shopping"
	"mealplan-engine/internal/storage"

	"go.uber.org/zap"
)

// geminiFreeTierDelay keeps LLM extraction under 15 requests per minute.
const geminiFreeTierDelay = 5 * time.Second

// Bootstrap opens the database and builds an App from configuration. The
// LLM and Ghost clients are only created when their settings are present.
// The returned close function releases the database and the LLM client.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, func() error, error) {
	tuning, err := planner.LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	recipeStore, err := storage.NewRecipeStore(cfg.RecipeStoragePath)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var textGen llm.TextGenerator
	if err := cfg.RequireLLM(); err == nil {
		textGen, err = llm.New(ctx, cfg)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
	} else {
		logger.Info("LLM extraction disabled", zap.String("reason", err.Error()))
	}

	var ghostClient ghost.Client
	if err := cfg.RequireGhost(); err == nil {
		ghostClient = ghost.NewClient(cfg)
	}

	recipeRepo := recipe.NewRepository(db.SQL, logger)
	extractor := recipe.NewExtractor(textGen, logger)
	collector := metrics.NewCollector(metrics.DefaultCollectorConfig())

	var groceryOpts []shopping.Option
	if cfg.NormalizeGroceryUnits {
		groceryOpts = append(groceryOpts, shopping.WithUnitNormalization())
	}
	var ingestDelay time.Duration
	if cfg.LLMProvider == "gemini" {
		ingestDelay = geminiFreeTierDelay
	}

	a := NewApp(Deps{
		Config:         cfg,
		Logger:         logger,
		Planner:        planner.NewPlanner(recipeRepo, tuning, logger),
		RecipeRepo:     recipeRepo,
		PlanRepo:       planner.NewPlanRepository(db.SQL),
		ShoppingRepo:   shopping.NewRepository(db.SQL),
		LogRepo:        nutrition.NewLogRepository(db.SQL),
		MetricsStore:   metrics.NewStore(db.SQL),
		Collector:      collector,
		RecipeStore:    recipeStore,
		Ghost:          ghostClient,
		Extractor:      extractor,
		Clipper:        clipper.NewClipper(extractor, recipeRepo, logger),
		GroceryOptions: groceryOpts,
		IngestDelay:    ingestDelay,
	})

	closeFn := func() error {
		if c, ok := textGen.(llm.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close LLM client", zap.Error(err))
			}
		}
		return db.Close()
	}
	return a, closeFn, nil
}
