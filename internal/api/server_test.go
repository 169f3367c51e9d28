package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"mealplan-engine/internal/app"
	"mealplan-engine/internal/clipper"
	"mealplan-engine/internal/config"
	"mealplan-engine/internal/database"
	"mealplan-engine/internal/metrics"
	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shared"
	"mealplan-engine/internal/shopping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	recipeRepo := recipe.NewRepository(db.SQL, logger)
	slots := map[string][]float64{
		"breakfast": {600, 640, 680, 700},
		"lunch":     {880, 900, 940, 960},
		"dinner":    {740, 780, 820, 860},
		"snack":     {220, 240, 260, 280},
	}
	for mealType, kcals := range slots {
		for i, k := range kcals {
			require.NoError(t, recipeRepo.Save(ctx, recipe.Recipe{
				ID:          fmt.Sprintf("%s-%d", mealType, i+1),
				Title:       fmt.Sprintf("%s %d", mealType, i+1),
				MealTypes:   []string{mealType},
				Ingredients: []recipe.Ingredient{{Name: "rice", Quantity: 100, Unit: "g", Category: "pantry"}},
				Nutrition:   shared.Macros{Calories: k, Protein: k * 0.075, Carbs: k * 0.1, Fats: k * 0.033},
				Servings:    1,
			}))
		}
	}

	a := app.NewApp(app.Deps{
		Config:       &config.Config{DatabasePath: filepath.Join(t.TempDir(), "api.db")},
		Logger:       logger,
		Planner:      planner.NewPlanner(recipeRepo, planner.DefaultTuning(), logger),
		RecipeRepo:   recipeRepo,
		PlanRepo:     planner.NewPlanRepository(db.SQL),
		ShoppingRepo: shopping.NewRepository(db.SQL),
		LogRepo:      nutrition.NewLogRepository(db.SQL),
		MetricsStore: metrics.NewStore(db.SQL),
		Collector:    metrics.NewCollector(metrics.DefaultCollectorConfig()),
	})
	return NewServer(":0", a, logger)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

var profileBody = map[string]any{
	"age": 30, "sex": "male", "height_cm": 180, "weight_kg": 80,
	"activity_level": "moderate", "goal": "maintenance",
}

func createPlan(t *testing.T, s *Server) planner.MealPlan {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/plans", map[string]any{
		"user_id":     "u1",
		"start_date":  "2025-03-10",
		"profile":     profileBody,
		"preferences": map[string]any{"duration_days": 2},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[planner.MealPlan](t, rec)
}

func TestTargets(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/targets", profileBody)
	require.Equal(t, http.StatusOK, rec.Code)
	target := decodeBody[nutrition.Target](t, rec)
	assert.Greater(t, target.DailyCalories, 2000.0)

	bad := map[string]any{"age": 300, "sex": "male", "height_cm": 180, "weight_kg": 80, "activity_level": "moderate", "goal": "maintenance"}
	rec = do(t, s, http.MethodPost, "/targets", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "age")

	req := httptest.NewRequest(http.MethodPost, "/targets", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlanEndpoints(t *testing.T) {
	s := newTestServer(t)
	plan := createPlan(t, s)
	assert.Len(t, plan.Days, 2)
	assert.Equal(t, "2025-03-10", nutrition.DateKey(plan.StartDate))

	rec := do(t, s, http.MethodGet, "/plans/"+plan.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.ID, decodeBody[planner.MealPlan](t, rec).ID)

	rec = do(t, s, http.MethodGet, "/plans?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]planner.MealPlan](t, rec), 1)

	rec = do(t, s, http.MethodGet, "/plans", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/plans/"+plan.ID+"/status", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/plans/"+plan.ID+"/status", map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, planner.StatusActive, decodeBody[planner.MealPlan](t, rec).Status)

	rec = do(t, s, http.MethodPost, "/plans/"+plan.ID+"/regenerate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.ID, decodeBody[planner.MealPlan](t, rec).ID)

	rec = do(t, s, http.MethodGet, "/plans/"+plan.ID+"/nutrition", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[nutrition.RangeRollup](t, rec).Days, 2)

	rec = do(t, s, http.MethodGet, "/plans/"+plan.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.ID, decodeBody[app.Progress](t, rec).PlanID)

	rec = do(t, s, http.MethodDelete, "/plans/"+plan.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, "/plans/"+plan.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePlanErrors(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"MissingUser", map[string]any{"profile": profileBody, "preferences": map[string]any{"duration_days": 1}}, http.StatusBadRequest},
		{"BadStartDate", map[string]any{"user_id": "u1", "start_date": "10/03/2025", "profile": profileBody}, http.StatusBadRequest},
		{"DurationOutOfRange", map[string]any{"user_id": "u1", "profile": profileBody, "preferences": map[string]any{"duration_days": 31}}, http.StatusBadRequest},
		{"InvalidTarget", map[string]any{"user_id": "u1", "target": map[string]any{"daily_calories": 0}, "preferences": map[string]any{"duration_days": 1}}, http.StatusBadRequest},
		{"NoEligibleRecipes", map[string]any{"user_id": "u1", "profile": profileBody, "preferences": map[string]any{"duration_days": 1, "dietary_preference": "vegan"}}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/plans", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestGroceryEndpoints(t *testing.T) {
	s := newTestServer(t)
	plan := createPlan(t, s)

	rec := do(t, s, http.MethodGet, "/plans/"+plan.ID+"/groceries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[shopping.ShoppingList](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, shopping.GroceryItem{Name: "rice", Quantity: 800, Unit: "g", Category: "pantry"}, list.Items[0])

	rec = do(t, s, http.MethodPut, "/plans/"+plan.ID+"/groceries/purchased", map[string]any{"name": "rice", "unit": "g", "purchased": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[shopping.ShoppingList](t, rec).Items[0].Purchased)

	rec = do(t, s, http.MethodPut, "/plans/"+plan.ID+"/groceries/purchased", map[string]any{"name": "salt", "unit": "g", "purchased": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/plans/"+plan.ID+"/groceries?group=category", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"category":"pantry"`)
	assert.Contains(t, rec.Body.String(), `"purchased":true`)

	rec = do(t, s, http.MethodGet, "/plans/missing/groceries", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNutritionEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/meals", map[string]any{"user_id": "u1", "date": "2025-03-10", "recipe_id": "lunch-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 880.0, decodeBody[nutrition.MealRecord](t, rec).Nutrition.Calories)

	rec = do(t, s, http.MethodPost, "/meals", map[string]any{"user_id": "u1", "date": "today"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/nutrition?user_id=u1&start=2025-03-10&end=2025-03-12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rollup := decodeBody[nutrition.RangeRollup](t, rec)
	require.Len(t, rollup.Days, 3)
	assert.Equal(t, 880.0, rollup.Days[0].Totals.Calories)

	rec = do(t, s, http.MethodGet, "/nutrition?user_id=u1&start=2025-03-12&end=2025-03-10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/nutrition?start=2025-03-10&end=2025-03-12", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)
	createPlan(t, s)

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, 16.0, health["recipes"])

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mealplan_engine_plans_generated_total{outcome="success"} 1`)

	rec = do(t, s, http.MethodPost, "/recipes/clip", map[string]string{"url": "https://example.com/x"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("wrap: %w", clipper.ErrInvalidURL)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&planner.GenerationError{Err: planner.ErrNoEligibleRecipes}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
}
