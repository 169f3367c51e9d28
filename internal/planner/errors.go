package planner

import (
	"errors"
	"fmt"
	"strings"

	"mealplan-engine/internal/recipe"
)

var (
	// ErrNoEligibleRecipes is returned when the catalog filters leave nothing to pick from.
	ErrNoEligibleRecipes = errors.New("no eligible recipes")
	// ErrGenerationFailed matches every plan generation failure.
	ErrGenerationFailed = errors.New("plan generation failed")
	// ErrInvalidPreferences is returned for out-of-range generation preferences.
	ErrInvalidPreferences = errors.New("invalid preferences")
	// ErrInvalidTarget is returned for unusable nutrition targets.
	ErrInvalidTarget = errors.New("invalid nutrition target")
	// ErrInvalidTuning is returned for inconsistent planner tuning.
	ErrInvalidTuning = errors.New("invalid planner tuning")
	// ErrInvalidStatusTransition is returned for lifecycle moves that are not allowed.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrPlanNotFound is returned when a plan id is unknown.
	ErrPlanNotFound = errors.New("meal plan not found")
)

// GenerationError reports the first failure of a plan generation. It matches
// ErrGenerationFailed and unwraps to the underlying cause.
type GenerationError struct {
	Day   int
	Query recipe.Query
	Err   error
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	if e.Day > 0 {
		fmt.Fprintf(&b, "plan generation failed on day %d: %v", e.Day, e.Err)
	} else {
		fmt.Fprintf(&b, "plan generation failed: %v", e.Err)
	}
	if errors.Is(e.Err, ErrNoEligibleRecipes) {
		b.WriteString(" (")
		b.WriteString(describeFilters(e.Query))
		b.WriteString("; try relaxing one of these filters)")
	}
	return b.String()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func describeFilters(q recipe.Query) string {
	var parts []string
	if len(q.DietaryTags) > 0 {
		parts = append(parts, "diet="+strings.Join(q.DietaryTags, ","))
	}
	if len(q.ExcludedIngredients) > 0 {
		parts = append(parts, fmt.Sprintf("%d excluded ingredients [%s]", len(q.ExcludedIngredients), strings.Join(q.ExcludedIngredients, ", ")))
	}
	if len(q.Cuisines) > 0 {
		parts = append(parts, "cuisines="+strings.Join(q.Cuisines, ","))
	}
	if q.MaxPrepMinutes > 0 {
		parts = append(parts, fmt.Sprintf("max prep %d min", q.MaxPrepMinutes))
	}
	if q.MaxCookMinutes > 0 {
		parts = append(parts, fmt.Sprintf("max cook %d min", q.MaxCookMinutes))
	}
	if len(parts) == 0 {
		return "no filters set, the catalog is empty"
	}
	return "filters: " + strings.Join(parts, ", ")
}
