package app

import (
	"context"
	"fmt"
	"strings"

	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/shopping"
)

// GroceryList builds the grocery list of a plan and persists it. Purchased
// flags of a previously saved list carry over to matching lines.
func (a *App) GroceryList(ctx context.Context, planID string) (*shopping.ShoppingList, error) {
	plan, err := a.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	items, err := shopping.BuildGroceryList(plan, a.groceryOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build grocery list for plan %s: %w", planID, err)
	}

	list := &shopping.ShoppingList{UserID: plan.UserID, MealPlanID: plan.ID, Items: items}
	existing, err := a.shoppingRepo.GetByMealPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		list.Items = shopping.MergePurchased(items, existing.Items)
		list.CreatedAt = existing.CreatedAt
	}

	id, err := a.shoppingRepo.Save(ctx, list)
	if err != nil {
		return nil, err
	}
	list.ID = id
	list.UpdatedAt = a.now().UTC()
	if list.CreatedAt.IsZero() {
		list.CreatedAt = list.UpdatedAt
	}
	if a.collector != nil {
		a.collector.ObserveGroceryList(len(list.Items))
	}
	return list, nil
}

// MarkPurchased flips the purchased flag of one line of a plan's saved list.
func (a *App) MarkPurchased(ctx context.Context, planID, name, unit string, purchased bool) (*shopping.ShoppingList, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidRequest)
	}
	return a.shoppingRepo.SetPurchased(ctx, planID, name, unit, purchased)
}

// Progress compares what a plan schedules with what the user logged over the
// plan's dates.
type Progress struct {
	PlanID  string                `json:"plan_id"`
	Target  nutrition.Target      `json:"target"`
	Planned nutrition.RangeRollup `json:"planned"`
	Logged  nutrition.RangeRollup `json:"logged"`
	Status  planner.PlanStatus    `json:"status"`
}

// PlanNutrition rolls up the planned meals of a plan per day.
func (a *App) PlanNutrition(ctx context.Context, planID string) (nutrition.RangeRollup, error) {
	plan, err := a.GetPlan(ctx, planID)
	if err != nil {
		return nutrition.RangeRollup{}, err
	}
	return planRollup(plan)
}

func planRollup(plan *planner.MealPlan) (nutrition.RangeRollup, error) {
	records, err := plan.MealRecords()
	if err != nil {
		return nutrition.RangeRollup{}, err
	}
	return nutrition.AggregateDates(records, plan.Dates())
}

// PlanProgress returns planned and logged nutrition side by side.
func (a *App) PlanProgress(ctx context.Context, planID string) (*Progress, error) {
	plan, err := a.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	planned, err := planRollup(plan)
	if err != nil {
		return nil, err
	}

	dates := plan.Dates()
	logged, err := a.logRepo.ListBetween(ctx, plan.UserID, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	loggedRollup, err := nutrition.AggregateDates(logged, dates)
	if err != nil {
		return nil, err
	}

	return &Progress{
		PlanID:  plan.ID,
		Target:  plan.Target,
		Planned: planned,
		Logged:  loggedRollup,
		Status:  plan.Status,
	}, nil
}

// LogMeal records a meal the user actually ate.
func (a *App) LogMeal(ctx context.Context, rec nutrition.MealRecord) (nutrition.MealRecord, error) {
	if rec.UserID == "" {
		return rec, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if rec.RecipeID != "" && rec.Nutrition.IsZero() {
		r, err := a.recipeRepo.Get(ctx, rec.RecipeID)
		if err != nil {
			return rec, err
		}
		if r == nil {
			return rec, fmt.Errorf("%w: unknown recipe %s", ErrInvalidRequest, rec.RecipeID)
		}
		rec.Nutrition = r.Nutrition
		if rec.Title == "" {
			rec.Title = r.Title
		}
	}
	rec.Date = nutrition.CivilDate(rec.Date)

	id, err := a.logRepo.Add(ctx, rec)
	if err != nil {
		return rec, err
	}
	rec.ID = id
	return rec, nil
}

// NutritionRange rolls up a user's logged meals over an inclusive date range.
func (a *App) NutritionRange(ctx context.Context, userID string, start, end string) (nutrition.RangeRollup, error) {
	s, e, err := nutrition.ParseDateRange(start, end)
	if err != nil {
		return nutrition.RangeRollup{}, err
	}
	records, err := a.logRepo.ListBetween(ctx, userID, s, e)
	if err != nil {
		return nutrition.RangeRollup{}, err
	}
	return nutrition.AggregateRange(records, s, e)
}
