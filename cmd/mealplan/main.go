package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"mealplan-engine/internal/app"
	"mealplan-engine/internal/config"
	"mealplan-engine/internal/logger"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
)

var CLI struct {
	Version kong.VersionFlag

	Targets        TargetsCmd        `cmd:"" help:"Compute daily calorie and macro targets for a profile."`
	Generate       GenerateCmd       `cmd:"" help:"Generate a meal plan."`
	Regenerate     RegenerateCmd     `cmd:"" help:"Rebuild the days of an existing plan."`
	Plans          PlansCmd          `cmd:"" help:"List recent plans of a user."`
	Groceries      GroceriesCmd      `cmd:"" help:"Show the grocery list of a plan."`
	Progress       ProgressCmd       `cmd:"" help:"Compare planned and logged nutrition of a plan."`
	Status         StatusCmd         `cmd:"" help:"Move a plan through its lifecycle."`
	LogMeal        LogMealCmd        `cmd:"" name:"log-meal" help:"Record an eaten meal."`
	ImportRecipes  ImportRecipesCmd  `cmd:"" name:"import-recipes" help:"Load recipe files from the storage directory into the catalog."`
	Ingest         IngestCmd         `cmd:"" help:"Fetch recipes from Ghost and normalize them into the catalog."`
	Clip           ClipCmd           `cmd:"" help:"Import a recipe from a web page."`
	MetricsReport  MetricsReportCmd  `cmd:"" name:"metrics-report" help:"Print the usage and health report."`
	MetricsCleanup MetricsCleanupCmd `cmd:"" name:"metrics-cleanup" help:"Remove old metric records."`
}

// runContext is passed to every command. app is nil for commands listed in
// offlineCommands.
type runContext struct {
	ctx context.Context
	app *app.App
	cfg *config.Config
	out io.Writer
}

// offlineCommands run without opening the database.
var offlineCommands = map[string]bool{
	"targets": true,
}

func main() {
	kctx := kong.Parse(&CLI, parserOptions()...)

	if err := run(kctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parserOptions() []kong.Option {
	return []kong.Option{
		kong.Name("mealplan"),
		kong.Description("Nutrition-targeted meal plans from a recipe catalog"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.3.0"},
	}
}

func run(kctx *kong.Context) error {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if offlineCommands[kctx.Command()] {
		return kctx.Run(&runContext{ctx: ctx, cfg: cfg, out: os.Stdout})
	}

	application, closeApp, err := app.Bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeApp(); err != nil {
			log.Warn("failed to close resources", zap.Error(err))
		}
	}()

	return kctx.Run(&runContext{ctx: ctx, app: application, cfg: cfg, out: os.Stdout})
}
