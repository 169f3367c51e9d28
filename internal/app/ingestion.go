package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"mealplan-engine/internal/ghost"
	"mealplan-engine/internal/metrics"
	"mealplan-engine/internal/recipe"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when an optional collaborator is missing.
var ErrNotConfigured = errors.New("not configured")

// IngestResult counts the outcome of a catalog sync.
type IngestResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// IngestRecipes syncs recipe posts from Ghost into the catalog. Posts whose
// updated_at matches the stored recipe are skipped unless force is set.
// Failures of single posts are logged and counted, not returned.
func (a *App) IngestRecipes(ctx context.Context, force bool) (IngestResult, error) {
	var res IngestResult
	if a.ghostClient == nil || a.extractor == nil {
		return res, fmt.Errorf("recipe ingestion: %w", ErrNotConfigured)
	}

	posts, err := a.ghostClient.FetchRecipes(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to fetch recipes from ghost: %w", err)
	}
	a.logger.Info("fetched recipe posts", zap.Int("posts", len(posts)))

	defer func() {
		if a.collector != nil {
			a.collector.ObserveIngestion(res.Imported, res.Skipped, res.Failed)
		}
	}()

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if !force {
			existing, err := a.recipeRepo.Get(ctx, post.ID)
			if err != nil {
				return res, err
			}
			if existing != nil && existing.UpdatedAt == post.UpdatedAt {
				res.Skipped++
				continue
			}
		}

		source, err := a.processPost(ctx, post)
		if err != nil {
			res.Failed++
			a.logger.Warn("failed to ingest recipe post",
				zap.String("post_id", post.ID), zap.String("title", post.Title), zap.Error(err))
			continue
		}
		res.Imported++

		if source == recipe.SourceLLM && a.ingestDelay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(a.ingestDelay):
			}
		}
	}

	a.logger.Info("ingestion complete",
		zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed))
	return res, nil
}

// processPost extracts one post, saves it and records the extractor usage.
func (a *App) processPost(ctx context.Context, post ghost.Post) (string, error) {
	result, err := a.extractor.Extract(ctx, recipe.PostData{
		ID:        post.ID,
		Title:     post.Title,
		HTML:      post.HTML,
		UpdatedAt: post.UpdatedAt,
		Tags:      post.TagNames(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract recipe: %w", err)
	}
	if err := a.recipeRepo.Save(ctx, result.Recipe); err != nil {
		return "", fmt.Errorf("failed to save recipe: %w", err)
	}
	if a.metricsStore != nil {
		if err := a.metricsStore.RecordMeta(ctx, result.Meta); err != nil {
			a.logger.Warn("failed to record extractor metric", zap.Error(err))
		}
	}
	return result.Source, nil
}

// ImportRecipes copies the file catalog into the database. Recipes already
// in the database are left untouched.
func (a *App) ImportRecipes(ctx context.Context) (IngestResult, error) {
	var res IngestResult
	if a.recipeStore == nil {
		return res, fmt.Errorf("file catalog: %w", ErrNotConfigured)
	}

	existing, err := a.recipeRepo.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list existing recipes in DB: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, rec := range existing {
		known[rec.ID] = true
	}

	fileRecipes, err := a.recipeStore.ListAll()
	if err != nil {
		return res, fmt.Errorf("failed to list recipes from file storage: %w", err)
	}
	a.logger.Info("importing file catalog", zap.Int("files", len(fileRecipes)), zap.Int("in_db", len(known)))

	for _, rec := range fileRecipes {
		if known[rec.ID] {
			res.Skipped++
			continue
		}
		if err := a.recipeRepo.Save(ctx, rec); err != nil {
			res.Failed++
			a.logger.Warn("failed to import recipe", zap.String("recipe_id", rec.ID), zap.Error(err))
			continue
		}
		res.Imported++
	}
	if a.collector != nil {
		a.collector.ObserveIngestion(res.Imported, res.Skipped, res.Failed)
	}
	return res, nil
}

// ClipRecipe imports a single recipe page by URL.
func (a *App) ClipRecipe(ctx context.Context, url string) (*recipe.Recipe, error) {
	if a.clipper == nil {
		return nil, fmt.Errorf("recipe clipper: %w", ErrNotConfigured)
	}
	result, err := a.clipper.ClipURL(ctx, url)
	if err != nil {
		if a.collector != nil {
			a.collector.ObserveIngestion(0, 0, 1)
		}
		return nil, err
	}
	if a.collector != nil {
		a.collector.ObserveIngestion(1, 0, 0)
	}
	if a.metricsStore != nil {
		if err := a.metricsStore.RecordMeta(ctx, result.Meta); err != nil {
			a.logger.Warn("failed to record extractor metric", zap.Error(err))
		}
	}
	return &result.Recipe, nil
}

// MetricsReport renders system health and the last days of usage.
func (a *App) MetricsReport(ctx context.Context, days int) (string, error) {
	usage, err := a.metricsStore.GetDailyUsage(ctx, days)
	if err != nil {
		return "", err
	}
	dataPath := "."
	if a.cfg != nil {
		dataPath = filepath.Dir(a.cfg.DatabasePath)
	}
	return metrics.Report(metrics.GetSysHealth(dataPath), usage), nil
}

// CleanupMetrics deletes execution metrics older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("%w: retention must be at least one day", ErrInvalidRequest)
	}
	return a.metricsStore.Cleanup(ctx, days)
}

// CountRecipes returns the size of the catalog.
func (a *App) CountRecipes(ctx context.Context) (int, error) {
	return a.recipeRepo.Count(ctx)
}
