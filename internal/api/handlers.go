package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mealplan-engine/internal/app"
	"mealplan-engine/internal/clipper"
	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shared"
	"mealplan-engine/internal/shopping"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type planRequest struct {
	UserID      string              `json:"user_id"`
	Title       string              `json:"title"`
	StartDate   string              `json:"start_date"`
	Profile     *nutrition.Profile  `json:"profile"`
	Target      *nutrition.Target   `json:"target"`
	Preferences planner.Preferences `json:"preferences"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type purchasedRequest struct {
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Purchased bool   `json:"purchased"`
}

type mealRequest struct {
	UserID    string        `json:"user_id"`
	Date      string        `json:"date"`
	RecipeID  string        `json:"recipe_id"`
	Title     string        `json:"title"`
	Nutrition shared.Macros `json:"nutrition"`
}

type clipRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "healthy", "timestamp": time.Now().Unix()}
	if n, err := s.app.CountRecipes(r.Context()); err == nil {
		resp["recipes"] = n
	} else {
		resp["status"] = "degraded"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	var profile nutrition.Profile
	if !s.decode(w, r, &profile) {
		return
	}
	target, err := s.app.ResolveTargets(profile)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, target)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !s.decode(w, r, &req) {
		return
	}
	genReq := app.GenerateRequest{
		UserID:      req.UserID,
		Title:       req.Title,
		Profile:     req.Profile,
		Target:      req.Target,
		Preferences: req.Preferences,
	}
	if req.StartDate != "" {
		start, err := time.Parse(nutrition.DateLayout, req.StartDate)
		if err != nil {
			s.writeErrorMessage(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		genReq.StartDate = start
	}

	plan, err := s.app.GeneratePlan(r.Context(), genReq)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeErrorMessage(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	plans, err := s.app.ListPlans(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if plans == nil {
		plans = []*planner.MealPlan{}
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.app.GetPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeletePlan(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.decode(w, r, &req) {
		return
	}
	plan, err := s.app.TransitionPlan(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	plan, err := s.app.RegeneratePlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleGroceries(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.GroceryList(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if r.URL.Query().Get("group") == "category" {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"meal_plan_id": list.MealPlanID,
			"categories":   shopping.GroupByCategory(list.Items),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePurchased(w http.ResponseWriter, r *http.Request) {
	var req purchasedRequest
	if !s.decode(w, r, &req) {
		return
	}
	list, err := s.app.MarkPurchased(r.Context(), chi.URLParam(r, "id"), req.Name, req.Unit, req.Purchased)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePlanNutrition(w http.ResponseWriter, r *http.Request) {
	rollup, err := s.app.PlanNutrition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rollup)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.app.PlanProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleLogMeal(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if !s.decode(w, r, &req) {
		return
	}
	date, err := time.Parse(nutrition.DateLayout, req.Date)
	if err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	rec, err := s.app.LogMeal(r.Context(), nutrition.MealRecord{
		UserID:    req.UserID,
		Date:      date,
		RecipeID:  req.RecipeID,
		Title:     req.Title,
		Nutrition: req.Nutrition,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleNutritionRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("user_id") == "" {
		s.writeErrorMessage(w, http.StatusBadRequest, "user_id is required")
		return
	}
	rollup, err := s.app.NutritionRange(r.Context(), q.Get("user_id"), q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rollup)
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	var req clipRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.app.ClipRecipe(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, planner.ErrInvalidPreferences),
		errors.Is(err, planner.ErrInvalidTarget),
		errors.Is(err, nutrition.ErrInvalidProfile),
		errors.Is(err, nutrition.ErrInvalidDateRange),
		errors.Is(err, clipper.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, planner.ErrPlanNotFound),
		errors.Is(err, shopping.ErrListNotFound),
		errors.Is(err, shopping.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, planner.ErrNoEligibleRecipes),
		errors.Is(err, recipe.ErrIncompleteRecipe),
		errors.Is(err, recipe.ErrUnresolvedRecipe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeErrorMessage(w, status, err.Error())
}

func (s *Server) writeErrorMessage(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
