package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mealplan-engine/internal/clipper"
	"mealplan-engine/internal/config"
	"mealplan-engine/internal/ghost"
	"mealplan-engine/internal/metrics"
	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shopping"
	"mealplan-engine/internal/storage"

	"go.uber.org/zap"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid request")

// Deps are the collaborators of an App. Ghost, Extractor, Clipper and
// RecipeStore are optional; the operations that need them fail when unset.
type Deps struct {
	Config       *config.Config
	Logger       *zap.Logger
	Planner      *planner.Planner
	RecipeRepo   *recipe.Repository
	PlanRepo     *planner.PlanRepository
	ShoppingRepo *shopping.Repository
	LogRepo      *nutrition.LogRepository
	MetricsStore *metrics.Store
	Collector    *metrics.Collector
	RecipeStore  *storage.RecipeStore
	Ghost        ghost.Client
	Extractor    *recipe.Extractor
	Clipper      *clipper.Clipper

	// GroceryOptions are applied to every grocery list build.
	GroceryOptions []shopping.Option
	// IngestDelay is waited after each LLM extraction to stay under provider rate limits.
	IngestDelay time.Duration
}

// App holds the application's dependencies and implements the use cases
// shared by the CLI, the HTTP API and the Telegram bot.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	mealPlanner  *planner.Planner
	recipeRepo   *recipe.Repository
	planRepo     *planner.PlanRepository
	shoppingRepo *shopping.Repository
	logRepo      *nutrition.LogRepository
	metricsStore *metrics.Store
	collector    *metrics.Collector
	recipeStore  *storage.RecipeStore
	ghostClient  ghost.Client
	extractor    *recipe.Extractor
	clipper      *clipper.Clipper
	groceryOpts  []shopping.Option
	ingestDelay  time.Duration
	now          func() time.Time
}

// NewApp creates and initializes a new App instance.
func NewApp(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:          d.Config,
		logger:       logger,
		mealPlanner:  d.Planner,
		recipeRepo:   d.RecipeRepo,
		planRepo:     d.PlanRepo,
		shoppingRepo: d.ShoppingRepo,
		logRepo:      d.LogRepo,
		metricsStore: d.MetricsStore,
		collector:    d.Collector,
		recipeStore:  d.RecipeStore,
		ghostClient:  d.Ghost,
		extractor:    d.Extractor,
		clipper:      d.Clipper,
		groceryOpts:  d.GroceryOptions,
		ingestDelay:  d.IngestDelay,
		now:          time.Now,
	}
}

// Collector returns the Prometheus collector fed by the use cases, or nil.
func (a *App) Collector() *metrics.Collector {
	return a.collector
}

// GenerateRequest asks for a new plan. The target is taken from Target when
// set, otherwise resolved from Profile, otherwise from the configured
// default profile.
type GenerateRequest struct {
	UserID      string              `json:"user_id"`
	Title       string              `json:"title,omitempty"`
	StartDate   time.Time           `json:"start_date,omitempty"`
	Profile     *nutrition.Profile  `json:"profile,omitempty"`
	Target      *nutrition.Target   `json:"target,omitempty"`
	Preferences planner.Preferences `json:"preferences"`
}

// ResolveTargets derives daily targets from a profile.
func (a *App) ResolveTargets(profile nutrition.Profile) (nutrition.Target, error) {
	return nutrition.ResolveTargets(profile)
}

// GeneratePlan builds, persists and records a new draft plan.
func (a *App) GeneratePlan(ctx context.Context, req GenerateRequest) (*planner.MealPlan, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	target, err := a.targetFor(req)
	if err != nil {
		return nil, err
	}

	start := a.now()
	plan, err := a.mealPlanner.GeneratePlan(ctx, planner.Request{
		UserID:      req.UserID,
		Title:       req.Title,
		StartDate:   req.StartDate,
		Target:      target,
		Preferences: req.Preferences,
	})
	a.recordGeneration(ctx, "generate_plan", req.UserID, plan, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := a.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (a *App) targetFor(req GenerateRequest) (nutrition.Target, error) {
	if req.Target != nil {
		return *req.Target, nil
	}
	profile := req.Profile
	if profile == nil {
		if a.cfg == nil {
			return nutrition.Target{}, config.ErrProfileNotConfigured
		}
		p, err := a.cfg.DefaultProfile()
		if err != nil {
			return nutrition.Target{}, err
		}
		profile = &p
	}
	return nutrition.ResolveTargets(*profile)
}

// RegeneratePlan rebuilds the days of an existing plan in place. The
// persisted grocery list is dropped because it no longer matches.
func (a *App) RegeneratePlan(ctx context.Context, planID string) (*planner.MealPlan, error) {
	plan, err := a.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	start := a.now()
	fresh, err := a.mealPlanner.Regenerate(ctx, plan)
	a.recordGeneration(ctx, "regenerate_plan", plan.UserID, fresh, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := a.planRepo.Save(ctx, fresh); err != nil {
		return nil, err
	}
	if err := a.shoppingRepo.DeleteByMealPlanID(ctx, planID); err != nil {
		a.logger.Warn("failed to drop stale grocery list", zap.String("plan_id", planID), zap.Error(err))
	}
	return fresh, nil
}

func (a *App) recordGeneration(ctx context.Context, op, userID string, plan *planner.MealPlan, took time.Duration, genErr error) {
	flagged := 0
	m := metrics.ExecutionMetric{
		Operation: op,
		UserID:    userID,
		Success:   genErr == nil,
		LatencyMS: took.Milliseconds(),
	}
	if plan != nil {
		flagged = plan.Summary.FlaggedDays
		m.PlanDays = len(plan.Days)
		m.FlaggedDays = flagged
		m.EligibleRecipes = plan.Summary.EligibleRecipes
	}
	if a.collector != nil {
		a.collector.ObserveGeneration(took, flagged, genErr)
	}
	if a.metricsStore == nil {
		return
	}
	if err := a.metricsStore.Record(ctx, m); err != nil {
		a.logger.Warn("failed to record execution metric", zap.String("operation", op), zap.Error(err))
	}
}

// GetPlan loads a plan or fails with planner.ErrPlanNotFound.
func (a *App) GetPlan(ctx context.Context, planID string) (*planner.MealPlan, error) {
	plan, err := a.planRepo.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", planner.ErrPlanNotFound, planID)
	}
	return a.resolvePlan(ctx, plan)
}

// resolvePlan fills id-only refs from the catalog. A plan naming recipes
// that have since left the catalog is returned as stored, so lifecycle
// operations still work and derived views report the unresolved recipe.
func (a *App) resolvePlan(ctx context.Context, plan *planner.MealPlan) (*planner.MealPlan, error) {
	resolved, err := planner.ResolveRefs(ctx, plan, a.recipeRepo)
	if errors.Is(err, recipe.ErrUnresolvedRecipe) {
		a.logger.Warn("meal plan references unknown recipes", zap.String("plan_id", plan.ID), zap.Error(err))
		return plan, nil
	}
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// LatestPlan returns the most recently created plan of a user.
func (a *App) LatestPlan(ctx context.Context, userID string) (*planner.MealPlan, error) {
	plans, err := a.planRepo.ListRecentByUserID(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w for user %s", planner.ErrPlanNotFound, userID)
	}
	return a.resolvePlan(ctx, plans[0])
}

// ListPlans returns a user's most recent plans, newest first.
func (a *App) ListPlans(ctx context.Context, userID string, limit int) ([]*planner.MealPlan, error) {
	if limit <= 0 {
		limit = 10
	}
	return a.planRepo.ListRecentByUserID(ctx, userID, limit)
}

// TransitionPlan moves a plan along draft, active, completed.
func (a *App) TransitionPlan(ctx context.Context, planID, status string) (*planner.MealPlan, error) {
	next, err := planner.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	plan, err := a.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := plan.Transition(next, a.now().UTC()); err != nil {
		return nil, err
	}
	if err := a.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	a.logger.Info("meal plan status changed", zap.String("plan_id", planID), zap.String("status", string(next)))
	return plan, nil
}

// DeletePlan removes a plan and its grocery list.
func (a *App) DeletePlan(ctx context.Context, planID string) error {
	if _, err := a.GetPlan(ctx, planID); err != nil {
		return err
	}
	if err := a.shoppingRepo.DeleteByMealPlanID(ctx, planID); err != nil {
		return err
	}
	return a.planRepo.Delete(ctx, planID)
}
