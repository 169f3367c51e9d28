package planner

import (
	"context"
	"fmt"
	"time"

	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/recipe"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request is a single plan generation request.
type Request struct {
	UserID      string
	Title       string
	StartDate   time.Time
	Target      nutrition.Target
	Preferences Preferences
}

// Planner assembles multi-day plans from a recipe catalog.
type Planner struct {
	catalog recipe.Catalog
	tuning  Tuning
	logger  *zap.Logger
	now     func() time.Time
}

// NewPlanner creates a new Planner instance.
func NewPlanner(catalog recipe.Catalog, tuning Tuning, logger *zap.Logger) *Planner {
	return &Planner{
		catalog: catalog,
		tuning:  tuning,
		logger:  logger,
		now:     time.Now,
	}
}

// GeneratePlan builds a complete draft plan or fails without returning one.
// The catalog is queried once and the snapshot is used for every day.
func (p *Planner) GeneratePlan(ctx context.Context, req Request) (*MealPlan, error) {
	if err := p.tuning.Validate(); err != nil {
		return nil, err
	}
	if err := req.Preferences.Validate(); err != nil {
		return nil, err
	}
	if err := validateTarget(req.Target); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	start := req.StartDate
	if start.IsZero() {
		start = now.AddDate(0, 0, 1)
	}
	start = nutrition.CivilDate(start)

	days, summary, err := p.assemble(ctx, req, start, nil)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = defaultTitle(req.Preferences)
	}

	plan := &MealPlan{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Title:        title,
		DurationDays: req.Preferences.DurationDays,
		StartDate:    start,
		Preferences:  req.Preferences,
		Target:       req.Target,
		Days:         days,
		Summary:      summary,
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	p.logger.Info("meal plan generated",
		zap.String("plan_id", plan.ID),
		zap.String("user_id", plan.UserID),
		zap.Int("days", plan.DurationDays),
		zap.Float64("target_kcal", req.Target.DailyCalories),
		zap.Float64("average_kcal", summary.AverageDailyCalories),
		zap.Int("flagged_days", summary.FlaggedDays),
		zap.Int("eligible_recipes", summary.EligibleRecipes),
	)
	return plan, nil
}

// Regenerate replaces the days of an existing plan, keeping its identity and
// request. Recipes from the replaced days are used only when nothing else fits.
func (p *Planner) Regenerate(ctx context.Context, plan *MealPlan) (*MealPlan, error) {
	if plan.Status == StatusCompleted {
		return nil, fmt.Errorf("%w: completed plans cannot be regenerated", ErrInvalidStatusTransition)
	}
	if err := p.tuning.Validate(); err != nil {
		return nil, err
	}

	req := Request{
		UserID:      plan.UserID,
		Title:       plan.Title,
		StartDate:   plan.StartDate,
		Target:      plan.Target,
		Preferences: plan.Preferences,
	}
	avoid := make(map[string]bool)
	for _, id := range plan.RecipeIDs() {
		avoid[id] = true
	}

	days, summary, err := p.assemble(ctx, req, plan.StartDate, avoid)
	if err != nil {
		return nil, err
	}

	out := *plan
	out.Days = days
	out.Summary = summary
	out.UpdatedAt = p.now().UTC()

	p.logger.Info("meal plan regenerated",
		zap.String("plan_id", out.ID),
		zap.Float64("average_kcal", summary.AverageDailyCalories),
		zap.Int("flagged_days", summary.FlaggedDays),
	)
	return &out, nil
}

func (p *Planner) assemble(ctx context.Context, req Request, start time.Time, avoid map[string]bool) ([]PlanDay, NutritionSummary, error) {
	query := req.Preferences.Query()

	if err := ctx.Err(); err != nil {
		return nil, NutritionSummary{}, fmt.Errorf("plan generation cancelled: %w", err)
	}
	found, err := p.catalog.FindEligible(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NutritionSummary{}, fmt.Errorf("plan generation cancelled: %w", ctx.Err())
		}
		return nil, NutritionSummary{}, &GenerationError{Query: query, Err: fmt.Errorf("failed to query recipe catalog: %w", err)}
	}
	// The catalog is external; its answer is re-checked against the filters.
	eligible := recipe.Filter(found, query)

	alloc, err := newAllocator(eligible, req.Target, p.tuning, req.Preferences.DurationDays, avoid)
	if err != nil {
		return nil, NutritionSummary{}, &GenerationError{Day: 1, Query: query, Err: err}
	}

	days := make([]PlanDay, 0, req.Preferences.DurationDays)
	for n := 1; n <= req.Preferences.DurationDays; n++ {
		if err := ctx.Err(); err != nil {
			return nil, NutritionSummary{}, fmt.Errorf("plan generation cancelled: %w", err)
		}
		day, err := alloc.allocateDay(n, start.AddDate(0, 0, n-1))
		if err != nil {
			return nil, NutritionSummary{}, &GenerationError{Day: n, Query: query, Err: err}
		}
		days = append(days, day)
	}

	summary, err := summarize(days, req.Target)
	if err != nil {
		return nil, NutritionSummary{}, &GenerationError{Query: query, Err: err}
	}
	summary.EligibleRecipes = len(eligible)
	return days, summary, nil
}

// summarize reduces realized day nutrition through the nutrition aggregator.
func summarize(days []PlanDay, target nutrition.Target) (NutritionSummary, error) {
	plan := MealPlan{Days: days}
	records, err := plan.MealRecords()
	if err != nil {
		return NutritionSummary{}, err
	}
	rollup, err := nutrition.AggregateDates(records, plan.Dates())
	if err != nil {
		return NutritionSummary{}, err
	}

	summary := NutritionSummary{
		AverageDailyCalories: rollup.Average.Calories,
		AverageProtein:       rollup.Average.Protein,
		AverageCarbs:         rollup.Average.Carbs,
		AverageFats:          rollup.Average.Fats,
		TargetCalories:       target.DailyCalories,
	}
	for _, d := range days {
		if d.OffTarget {
			summary.FlaggedDays++
		}
	}
	return summary, nil
}

func validateTarget(t nutrition.Target) error {
	if t.DailyCalories <= 0 {
		return fmt.Errorf("%w: daily calories must be positive", ErrInvalidTarget)
	}
	if t.Protein < 0 || t.Carbs < 0 || t.Fats < 0 {
		return fmt.Errorf("%w: macros must not be negative", ErrInvalidTarget)
	}
	return nil
}

func defaultTitle(p Preferences) string {
	diet := recipe.NormalizeTag(p.DietaryPreference)
	if diet == "" || diet == "none" {
		diet = "balanced"
	}
	return fmt.Sprintf("%d-day %s plan", p.DurationDays, diet)
}
