package planner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shared"

	"github.com/go-playground/validator/v10"
)

// PlanStatus represents the lifecycle state of a meal plan.
type PlanStatus string

const (
	StatusDraft     PlanStatus = "draft"
	StatusActive    PlanStatus = "active"
	StatusCompleted PlanStatus = "completed"
)

var allowedTransitions = map[PlanStatus]PlanStatus{
	StatusDraft:  StatusActive,
	StatusActive: StatusCompleted,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (PlanStatus, error) {
	switch st := PlanStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDraft, StatusActive, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, s)
}

// CanTransitionTo reports whether next directly follows s.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	return allowedTransitions[s] == next
}

// MealSlot is one of the daily meal occasions.
type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotDinner    MealSlot = "dinner"
	SlotSnacks    MealSlot = "snacks"
)

// SlotOrder is the fixed fill order of a day.
var SlotOrder = []MealSlot{SlotBreakfast, SlotLunch, SlotDinner, SlotSnacks}

// Preferences are the user's generation constraints.
type Preferences struct {
	DurationDays        int      `json:"duration_days" validate:"gte=1,lte=30"`
	DietaryPreference   string   `json:"dietary_preference,omitempty"`
	ExcludedIngredients []string `json:"excluded_ingredients,omitempty"`
	Cuisines            []string `json:"cuisines,omitempty"`
	MaxPrepMinutes      int      `json:"max_prep_minutes,omitempty" validate:"gte=0"`
	MaxCookMinutes      int      `json:"max_cook_minutes,omitempty" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// Validate checks the preference ranges.
func (p Preferences) Validate() error {
	if err := validate.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s=%s (got %v)", ErrInvalidPreferences, fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}
	return nil
}

// Query converts the preferences into catalog filters.
func (p Preferences) Query() recipe.Query {
	q := recipe.Query{
		ExcludedIngredients: nonEmpty(p.ExcludedIngredients),
		Cuisines:            nonEmpty(p.Cuisines),
		MaxPrepMinutes:      p.MaxPrepMinutes,
		MaxCookMinutes:      p.MaxCookMinutes,
	}
	if diet := recipe.NormalizeTag(p.DietaryPreference); diet != "" && diet != "none" {
		q.DietaryTags = []string{diet}
	}
	return q
}

// PlanDay holds one day's meals and the nutrition actually selected.
type PlanDay struct {
	DayNumber int                       `json:"day_number"`
	Date      time.Time                 `json:"date"`
	Meals     map[MealSlot][]recipe.Ref `json:"meals"`
	Nutrition shared.Macros             `json:"nutrition"`
	OffTarget bool                      `json:"off_target,omitempty"`
	Notes     []string                  `json:"notes,omitempty"`
}

// NutritionSummary describes the realized nutrition of a whole plan.
type NutritionSummary struct {
	AverageDailyCalories float64 `json:"average_daily_calories"`
	AverageProtein       float64 `json:"average_protein"`
	AverageCarbs         float64 `json:"average_carbs"`
	AverageFats          float64 `json:"average_fats"`
	TargetCalories       float64 `json:"target_calories"`
	FlaggedDays          int     `json:"flagged_days"`
	EligibleRecipes      int     `json:"eligible_recipes"`
}

// MealPlan is a generated multi-day plan.
type MealPlan struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Title        string           `json:"title"`
	DurationDays int              `json:"duration_days"`
	StartDate    time.Time        `json:"start_date"`
	Preferences  Preferences      `json:"preferences"`
	Target       nutrition.Target `json:"target"`
	Days         []PlanDay        `json:"days"`
	Summary      NutritionSummary `json:"nutrition_summary"`
	Status       PlanStatus       `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Transition moves the plan to next if the lifecycle allows it.
func (p *MealPlan) Transition(next PlanStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// EachRef visits every assigned recipe in day and slot order.
func (p *MealPlan) EachRef(fn func(day PlanDay, slot MealSlot, ref recipe.Ref) error) error {
	for _, day := range p.Days {
		for _, slot := range SlotOrder {
			for _, ref := range day.Meals[slot] {
				if err := fn(day, slot, ref); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RecipeIDs returns the distinct recipe ids in first-appearance order.
func (p *MealPlan) RecipeIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	_ = p.EachRef(func(_ PlanDay, _ MealSlot, ref recipe.Ref) error {
		if !seen[ref.ID()] {
			seen[ref.ID()] = true
			ids = append(ids, ref.ID())
		}
		return nil
	})
	return ids
}

// MealRecords turns every planned meal into a dated nutrition record.
func (p *MealPlan) MealRecords() ([]nutrition.MealRecord, error) {
	var records []nutrition.MealRecord
	err := p.EachRef(func(day PlanDay, _ MealSlot, ref recipe.Ref) error {
		rec, err := ref.MustRecipe()
		if err != nil {
			return err
		}
		records = append(records, nutrition.MealRecord{
			UserID:    p.UserID,
			Date:      day.Date,
			RecipeID:  rec.ID,
			Title:     rec.Title,
			Nutrition: rec.Nutrition,
		})
		return nil
	})
	return records, err
}

// Dates returns the calendar date of every plan day.
func (p *MealPlan) Dates() []time.Time {
	dates := make([]time.Time, len(p.Days))
	for i, d := range p.Days {
		dates[i] = d.Date
	}
	return dates
}

// ResolveRefs returns a copy of the plan whose unresolved refs are filled
// from lookup. Ids missing from lookup fail with recipe.ErrUnresolvedRecipe.
func ResolveRefs(ctx context.Context, plan *MealPlan, lookup recipe.Lookup) (*MealPlan, error) {
	var missing []string
	_ = plan.EachRef(func(_ PlanDay, _ MealSlot, ref recipe.Ref) error {
		if !ref.IsResolved() {
			missing = append(missing, ref.ID())
		}
		return nil
	})
	if len(missing) == 0 {
		return plan, nil
	}

	found, err := lookup.GetByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan recipes: %w", err)
	}
	byID := make(map[string]recipe.Recipe, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	out := *plan
	out.Days = make([]PlanDay, len(plan.Days))
	for i, day := range plan.Days {
		meals := make(map[MealSlot][]recipe.Ref, len(day.Meals))
		for slot, refs := range day.Meals {
			resolved := make([]recipe.Ref, len(refs))
			for j, ref := range refs {
				if ref.IsResolved() {
					resolved[j] = ref
					continue
				}
				rec, ok := byID[ref.ID()]
				if !ok {
					return nil, fmt.Errorf("%w: %s", recipe.ErrUnresolvedRecipe, ref.ID())
				}
				resolved[j] = recipe.Resolved(rec)
			}
			meals[slot] = resolved
		}
		day.Meals = meals
		out.Days[i] = day
	}
	return &out, nil
}

// GetNextMonday returns the next Monday after t at midnight UTC.
func GetNextMonday(t time.Time) time.Time {
	daysUntil := (8 - int(t.Weekday())) % 7
	if daysUntil == 0 {
		daysUntil = 7
	}
	return nutrition.CivilDate(t).AddDate(0, 0, daysUntil)
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
