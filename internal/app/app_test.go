package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mealplan-engine/internal/config"
	"mealplan-engine/internal/database"
	"mealplan-engine/internal/ghost"
	"mealplan-engine/internal/llm"
	"mealplan-engine/internal/metrics"
	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shared"
	"mealplan-engine/internal/shopping"
	"mealplan-engine/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var planStart = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type mockGhostClient struct {
	posts []ghost.Post
	err   error
}

func (m *mockGhostClient) FetchRecipes(context.Context) ([]ghost.Post, error) {
	return m.posts, m.err
}

type mockTextGen struct {
	calls int
}

func (m *mockTextGen) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	m.calls++
	if strings.Contains(prompt, "Broken") {
		return llm.ContentResponse{Content: "not json"}, nil
	}
	return llm.ContentResponse{
		Content: `{"title": "Porridge", "meal_types": ["breakfast"], "ingredients": [{"name": "oats", "quantity": 60, "unit": "g"}], "nutrition": {"calories": 350}}`,
		Usage:   shared.TokenUsage{PromptTokens: 200, CompletionTokens: 80, Model: "mock"},
	}, nil
}

func seedRecipe(id, mealType string, kcal float64, ing recipe.Ingredient) recipe.Recipe {
	return recipe.Recipe{
		ID:          id,
		Title:       "Recipe " + id,
		MealTypes:   []string{mealType},
		Ingredients: []recipe.Ingredient{ing},
		Nutrition:   shared.Macros{Calories: kcal, Protein: kcal * 0.075, Carbs: kcal * 0.1, Fats: kcal * 0.033},
		PrepMinutes: 10,
		CookMinutes: 20,
		Servings:    1,
	}
}

func newTestApp(t *testing.T) (*App, *database.DB) {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "app.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	recipeRepo := recipe.NewRepository(db.SQL, logger)
	oats := recipe.Ingredient{Name: "oats", Quantity: 80, Unit: "g", Category: "pantry"}
	rice := recipe.Ingredient{Name: "rice", Quantity: 100, Unit: "g", Category: "pantry"}
	chicken := recipe.Ingredient{Name: "chicken breast", Quantity: 200, Unit: "g", Category: "meat"}
	apple := recipe.Ingredient{Name: "apple", Quantity: 1, Category: "produce"}
	for i, k := range []float64{600, 640, 680, 700} {
		require.NoError(t, recipeRepo.Save(ctx, seedRecipe(fmt.Sprintf("b-%d", i+1), "breakfast", k, oats)))
	}
	for i, k := range []float64{880, 900, 940, 960} {
		require.NoError(t, recipeRepo.Save(ctx, seedRecipe(fmt.Sprintf("l-%d", i+1), "lunch", k, rice)))
	}
	for i, k := range []float64{740, 780, 820, 860} {
		require.NoError(t, recipeRepo.Save(ctx, seedRecipe(fmt.Sprintf("d-%d", i+1), "dinner", k, chicken)))
	}
	for i, k := range []float64{220, 240, 260, 280} {
		require.NoError(t, recipeRepo.Save(ctx, seedRecipe(fmt.Sprintf("s-%d", i+1), "snack", k, apple)))
	}

	a := NewApp(Deps{
		Config:       &config.Config{DatabasePath: filepath.Join(t.TempDir(), "app.db")},
		Logger:       logger,
		Planner:      planner.NewPlanner(recipeRepo, planner.DefaultTuning(), logger),
		RecipeRepo:   recipeRepo,
		PlanRepo:     planner.NewPlanRepository(db.SQL),
		ShoppingRepo: shopping.NewRepository(db.SQL),
		LogRepo:      nutrition.NewLogRepository(db.SQL),
		MetricsStore: metrics.NewStore(db.SQL),
		Collector:    metrics.NewCollector(metrics.DefaultCollectorConfig()),
	})
	return a, db
}

func exampleProfile() *nutrition.Profile {
	return &nutrition.Profile{
		Age: 30, Sex: nutrition.SexMale, HeightCm: 180, WeightKg: 80,
		ActivityLevel: nutrition.ActivityModerate, Goal: nutrition.GoalMaintenance,
	}
}

func generate(t *testing.T, a *App, days int) *planner.MealPlan {
	t.Helper()
	plan, err := a.GeneratePlan(context.Background(), GenerateRequest{
		UserID:      "u1",
		StartDate:   planStart,
		Profile:     exampleProfile(),
		Preferences: planner.Preferences{DurationDays: days},
	})
	require.NoError(t, err)
	return plan
}

func TestGeneratePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("PersistsAndRecords", func(t *testing.T) {
		a, _ := newTestApp(t)
		plan := generate(t, a, 2)

		assert.Equal(t, planner.StatusDraft, plan.Status)
		assert.Len(t, plan.Days, 2)
		assert.Equal(t, "2-day balanced plan", plan.Title)

		stored, err := a.GetPlan(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.RecipeIDs(), stored.RecipeIDs())

		latest, err := a.LatestPlan(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, plan.ID, latest.ID)

		usage, err := a.metricsStore.GetDailyUsage(ctx, 1)
		require.NoError(t, err)
		require.Len(t, usage, 1)
		assert.Equal(t, 1, usage[0].TotalExecution)
		assert.Equal(t, 2, usage[0].PlanDays)
		assert.Equal(t, 0, usage[0].Failures)

		assert.Equal(t, 1, testutil.CollectAndCount(a.Collector().Registry(), "mealplan_engine_plans_generated_total"))
	})

	t.Run("ExplicitTarget", func(t *testing.T) {
		a, _ := newTestApp(t)
		target := nutrition.Target{DailyCalories: 2000, Protein: 150, Carbs: 200, Fats: 66}
		plan, err := a.GeneratePlan(ctx, GenerateRequest{
			UserID: "u1", StartDate: planStart, Target: &target, Preferences: planner.Preferences{DurationDays: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, target, plan.Target)
	})

	t.Run("FailureIsRecorded", func(t *testing.T) {
		a, _ := newTestApp(t)
		_, err := a.GeneratePlan(ctx, GenerateRequest{
			UserID: "u1", Profile: exampleProfile(),
			Preferences: planner.Preferences{DurationDays: 3, DietaryPreference: "vegan"},
		})
		assert.ErrorIs(t, err, planner.ErrNoEligibleRecipes)

		usage, err := a.metricsStore.GetDailyUsage(ctx, 1)
		require.NoError(t, err)
		require.Len(t, usage, 1)
		assert.Equal(t, 1, usage[0].Failures)

		plans, err := a.ListPlans(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Empty(t, plans)
	})

	t.Run("InvalidRequests", func(t *testing.T) {
		a, _ := newTestApp(t)
		_, err := a.GeneratePlan(ctx, GenerateRequest{Profile: exampleProfile(), Preferences: planner.Preferences{DurationDays: 1}})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = a.GeneratePlan(ctx, GenerateRequest{UserID: "u1", Preferences: planner.Preferences{DurationDays: 1}})
		assert.ErrorIs(t, err, config.ErrProfileNotConfigured)

		bad := exampleProfile()
		bad.Age = 0
		_, err = a.GeneratePlan(ctx, GenerateRequest{UserID: "u1", Profile: bad, Preferences: planner.Preferences{DurationDays: 1}})
		assert.ErrorIs(t, err, nutrition.ErrInvalidProfile)

		_, err = a.GetPlan(ctx, "missing")
		assert.ErrorIs(t, err, planner.ErrPlanNotFound)
		_, err = a.LatestPlan(ctx, "nobody")
		assert.ErrorIs(t, err, planner.ErrPlanNotFound)
	})
}

func TestPlanLifecycle(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	plan := generate(t, a, 2)

	_, err := a.TransitionPlan(ctx, plan.ID, "completed")
	assert.ErrorIs(t, err, planner.ErrInvalidStatusTransition)

	_, err = a.TransitionPlan(ctx, plan.ID, "archived")
	assert.ErrorIs(t, err, planner.ErrInvalidStatusTransition)

	active, err := a.TransitionPlan(ctx, plan.ID, "Active")
	require.NoError(t, err)
	assert.Equal(t, planner.StatusActive, active.Status)

	regenerated, err := a.RegeneratePlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, regenerated.ID)
	assert.Equal(t, planner.StatusActive, regenerated.Status)

	_, err = a.TransitionPlan(ctx, plan.ID, "completed")
	require.NoError(t, err)
	_, err = a.RegeneratePlan(ctx, plan.ID)
	assert.ErrorIs(t, err, planner.ErrInvalidStatusTransition)

	require.NoError(t, a.DeletePlan(ctx, plan.ID))
	_, err = a.GetPlan(ctx, plan.ID)
	assert.ErrorIs(t, err, planner.ErrPlanNotFound)
	assert.ErrorIs(t, a.DeletePlan(ctx, plan.ID), planner.ErrPlanNotFound)
}

func TestGroceryList(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	plan := generate(t, a, 2)

	list, err := a.GroceryList(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, list.MealPlanID)
	assert.NotZero(t, list.ID)
	assert.Equal(t, []shopping.GroceryItem{
		{Name: "oats", Quantity: 160, Unit: "g", Category: "pantry"},
		{Name: "rice", Quantity: 200, Unit: "g", Category: "pantry"},
		{Name: "chicken breast", Quantity: 400, Unit: "g", Category: "meat"},
		{Name: "apple", Quantity: 2, Category: "produce"},
	}, list.Items)

	_, err = a.MarkPurchased(ctx, plan.ID, "Oats", "g", true)
	require.NoError(t, err)
	_, err = a.MarkPurchased(ctx, plan.ID, "oats", "G", true)
	assert.ErrorIs(t, err, shopping.ErrItemNotFound, "units match as written")
	_, err = a.MarkPurchased(ctx, plan.ID, "tofu", "g", true)
	assert.ErrorIs(t, err, shopping.ErrItemNotFound)
	_, err = a.MarkPurchased(ctx, plan.ID, " ", "g", true)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	refreshed, err := a.GroceryList(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, list.ID, refreshed.ID)
	assert.True(t, refreshed.Items[0].Purchased, "purchased flag survives a refresh")
	assert.False(t, refreshed.Items[1].Purchased)

	_, err = a.RegeneratePlan(ctx, plan.ID)
	require.NoError(t, err)
	stale, err := a.shoppingRepo.GetByMealPlanID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Nil(t, stale, "regeneration drops the saved list")

	_, err = a.GroceryList(ctx, "missing")
	assert.ErrorIs(t, err, planner.ErrPlanNotFound)
}

func TestStoredPlanWithRecipeIDs(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)

	day := func(n int, lunch string) planner.PlanDay {
		return planner.PlanDay{
			DayNumber: n,
			Date:      planStart.AddDate(0, 0, n-1),
			Meals: map[planner.MealSlot][]recipe.Ref{
				planner.SlotLunch:  {recipe.Unresolved(lunch)},
				planner.SlotSnacks: {},
			},
		}
	}
	stored := &planner.MealPlan{
		ID:           "by-id",
		UserID:       "u1",
		DurationDays: 2,
		StartDate:    planStart,
		Days:         []planner.PlanDay{day(1, "l-1"), day(2, "l-1")},
		Status:       planner.StatusDraft,
		CreatedAt:    planStart,
		UpdatedAt:    planStart,
	}
	require.NoError(t, a.planRepo.Save(ctx, stored))

	t.Run("RefsResolveFromCatalog", func(t *testing.T) {
		plan, err := a.GetPlan(ctx, "by-id")
		require.NoError(t, err)
		lunch, err := plan.Days[0].Meals[planner.SlotLunch][0].MustRecipe()
		require.NoError(t, err)
		assert.Equal(t, "l-1", lunch.ID)

		list, err := a.GroceryList(ctx, "by-id")
		require.NoError(t, err)
		assert.Equal(t, []shopping.GroceryItem{
			{Name: "rice", Quantity: 200, Unit: "g", Category: "pantry"},
		}, list.Items)

		rollup, err := a.PlanNutrition(ctx, "by-id")
		require.NoError(t, err)
		require.Len(t, rollup.Days, 2)
		assert.InDelta(t, 880.0, rollup.Days[0].Totals.Calories, 0.01)
		assert.InDelta(t, 1760.0, rollup.Totals.Calories, 0.01)
	})

	t.Run("UnknownRecipeKeepsLifecycle", func(t *testing.T) {
		gone := *stored
		gone.ID = "gone"
		gone.Days = []planner.PlanDay{day(1, "deleted-recipe")}
		require.NoError(t, a.planRepo.Save(ctx, &gone))

		_, err := a.GroceryList(ctx, "gone")
		assert.ErrorIs(t, err, recipe.ErrUnresolvedRecipe)
		_, err = a.PlanNutrition(ctx, "gone")
		assert.ErrorIs(t, err, recipe.ErrUnresolvedRecipe)

		plan, err := a.TransitionPlan(ctx, "gone", "active")
		require.NoError(t, err)
		assert.Equal(t, planner.StatusActive, plan.Status)
	})
}

func TestNutritionTracking(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	plan := generate(t, a, 2)

	logged, err := a.LogMeal(ctx, nutrition.MealRecord{UserID: "u1", Date: planStart.Add(9 * time.Hour), RecipeID: "b-1"})
	require.NoError(t, err)
	assert.NotZero(t, logged.ID)
	assert.Equal(t, "Recipe b-1", logged.Title)
	assert.Equal(t, 600.0, logged.Nutrition.Calories)

	_, err = a.LogMeal(ctx, nutrition.MealRecord{UserID: "u1", Date: planStart, Title: "Coffee", Nutrition: shared.Macros{Calories: 50}})
	require.NoError(t, err)

	_, err = a.LogMeal(ctx, nutrition.MealRecord{UserID: "u1", Date: planStart, RecipeID: "unknown"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = a.LogMeal(ctx, nutrition.MealRecord{Date: planStart, Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	t.Run("PlanNutrition", func(t *testing.T) {
		rollup, err := a.PlanNutrition(ctx, plan.ID)
		require.NoError(t, err)
		require.Len(t, rollup.Days, 2)
		assert.Equal(t, plan.Days[0].Nutrition.Calories, rollup.Days[0].Totals.Calories)
		assert.Equal(t, 4, rollup.Days[0].Meals)
	})

	t.Run("PlanProgress", func(t *testing.T) {
		progress, err := a.PlanProgress(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.Target, progress.Target)
		require.Len(t, progress.Logged.Days, 2)
		assert.Equal(t, 650.0, progress.Logged.Days[0].Totals.Calories)
		assert.Equal(t, 2, progress.Logged.Days[0].Meals)
		assert.Zero(t, progress.Logged.Days[1].Totals.Calories)
	})

	t.Run("NutritionRange", func(t *testing.T) {
		rollup, err := a.NutritionRange(ctx, "u1", "2025-03-09", "2025-03-11")
		require.NoError(t, err)
		require.Len(t, rollup.Days, 3)
		assert.Equal(t, 650.0, rollup.Days[1].Totals.Calories)
		assert.Equal(t, 650.0, rollup.Totals.Calories)

		_, err = a.NutritionRange(ctx, "u1", "2025-03-11", "2025-03-09")
		assert.ErrorIs(t, err, nutrition.ErrInvalidDateRange)
		_, err = a.NutritionRange(ctx, "u1", "yesterday", "2025-03-09")
		assert.ErrorIs(t, err, nutrition.ErrInvalidDateRange)
	})
}

const jsonLDPost = `<script type="application/ld+json">{"@type":"Recipe","name":"Tomato Soup","recipeCategory":"Lunch",
"recipeIngredient":["500 g tomatoes","1 onion"],"nutrition":{"calories":"210 kcal"}}</script>`

func TestIngestRecipes(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	gen := &mockTextGen{}
	a.ghostClient = &mockGhostClient{posts: []ghost.Post{
		{ID: "post-soup", Title: "Tomato Soup", HTML: jsonLDPost, UpdatedAt: "2024-05-01T10:00:00Z"},
		{ID: "post-porridge", Title: "Porridge", HTML: "<p>Oats and milk</p>", UpdatedAt: "2024-05-02T10:00:00Z",
			Tags: []ghost.Tag{{Name: "Vegetarian"}}},
		{ID: "post-broken", Title: "Broken", HTML: "<p>Broken post</p>", UpdatedAt: "2024-05-03T10:00:00Z"},
	}}
	a.extractor = recipe.NewExtractor(gen, zap.NewNop())

	res, err := a.IngestRecipes(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Imported: 2, Skipped: 0, Failed: 1}, res)
	assert.Equal(t, 2, gen.calls)

	porridge, err := a.recipeRepo.Get(ctx, "post-porridge")
	require.NoError(t, err)
	require.NotNil(t, porridge)
	assert.Equal(t, []string{"vegetarian"}, porridge.DietaryTags)

	usage, err := a.metricsStore.GetDailyUsage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 200, usage[0].TotalPrompt, "only the LLM extraction used tokens")

	t.Run("SkipsUnchanged", func(t *testing.T) {
		res, err := a.IngestRecipes(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, IngestResult{Skipped: 2, Failed: 1}, res)
	})

	t.Run("Force", func(t *testing.T) {
		res, err := a.IngestRecipes(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, IngestResult{Imported: 2, Failed: 1}, res)
	})

	t.Run("GhostError", func(t *testing.T) {
		a.ghostClient = &mockGhostClient{err: fmt.Errorf("boom")}
		_, err := a.IngestRecipes(ctx, false)
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("NotConfigured", func(t *testing.T) {
		a.ghostClient = nil
		_, err := a.IngestRecipes(ctx, false)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestImportRecipes(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)

	store, err := storage.NewRecipeStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(seedRecipe("b-1", "breakfast", 999, recipe.Ingredient{Name: "egg", Quantity: 2})))
	require.NoError(t, store.Save(seedRecipe("file-1", "dinner", 700, recipe.Ingredient{Name: "tofu", Quantity: 200, Unit: "g"})))

	_, err = a.ImportRecipes(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	a.recipeStore = store
	res, err := a.ImportRecipes(ctx)
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Imported: 1, Skipped: 1}, res)

	existing, err := a.recipeRepo.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 600.0, existing.Nutrition.Calories, "existing recipes are not overwritten")

	count, err := a.CountRecipes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 17, count)
}

func TestOperations(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	generate(t, a, 1)

	_, err := a.ClipRecipe(ctx, "https://example.com/recipe")
	assert.ErrorIs(t, err, ErrNotConfigured)

	report, err := a.MetricsReport(ctx, 7)
	require.NoError(t, err)
	assert.Contains(t, report, "System:")
	assert.Contains(t, report, "1 runs (0 failed), 1 plan days")

	_, err = a.CleanupMetrics(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	removed, err := a.CleanupMetrics(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
