package recipe

import (
	"errors"
	"strings"
	"unicode"

	"mealplan-engine/internal/shared"
)

// ErrUnresolvedRecipe is returned when a computation needs recipe data that
// a plan only references by id.
var ErrUnresolvedRecipe = errors.New("recipe not resolved")

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Unit     string  `json:"unit,omitempty" yaml:"unit"`
	Category string  `json:"category,omitempty" yaml:"category"`
}

// Recipe is a catalog entry. Nutrition is per serving.
type Recipe struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	DietaryTags []string      `json:"dietary_tags,omitempty" yaml:"dietary_tags"`
	Cuisine     string        `json:"cuisine,omitempty" yaml:"cuisine"`
	MealTypes   []string      `json:"meal_types,omitempty" yaml:"meal_types"`
	Ingredients []Ingredient  `json:"ingredients" yaml:"ingredients"`
	Nutrition   shared.Macros `json:"nutrition" yaml:"nutrition"`
	PrepMinutes int           `json:"prep_minutes" yaml:"prep_minutes"`
	CookMinutes int           `json:"cook_minutes" yaml:"cook_minutes"`
	Servings    int           `json:"servings,omitempty" yaml:"servings"`
	Difficulty  string        `json:"difficulty,omitempty" yaml:"difficulty"`
	UpdatedAt   string        `json:"updated_at,omitempty" yaml:"updated_at"`
}

// HasTag reports whether the recipe carries the dietary tag.
func (r Recipe) HasTag(tag string) bool {
	want := NormalizeTag(tag)
	for _, t := range r.DietaryTags {
		if NormalizeTag(t) == want {
			return true
		}
	}
	return false
}

// SuitsMeal reports whether the recipe is hinted for the given meal type.
func (r Recipe) SuitsMeal(mealType string) bool {
	want := singular(NormalizeTag(mealType))
	for _, m := range r.MealTypes {
		if singular(NormalizeTag(m)) == want {
			return true
		}
	}
	return false
}

// ContainsIngredient reports whether any ingredient name contains term as a
// whole word sequence, ignoring case and simple plurals.
func (r Recipe) ContainsIngredient(term string) bool {
	needle := words(term)
	if len(needle) == 0 {
		return false
	}
	for _, ing := range r.Ingredients {
		if containsSequence(words(ing.Name), needle) {
			return true
		}
	}
	return false
}

// TotalMinutes is prep plus cook time.
func (r Recipe) TotalMinutes() int {
	return r.PrepMinutes + r.CookMinutes
}

// NormalizeTag lower-cases a tag and folds spaces and hyphens to underscores.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(tag)
}

func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = singular(f)
	}
	return fields
}

func singular(w string) string {
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return strings.TrimSuffix(w, "ies") + "y"
	case (strings.HasSuffix(w, "oes") || strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "sses")) && len(w) > 4:
		return strings.TrimSuffix(w, "es")
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		return strings.TrimSuffix(w, "s")
	}
	return w
}

func containsSequence(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
