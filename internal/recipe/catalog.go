package recipe

import (
	"context"
	"strings"
)

// Query holds the hard filters applied to the catalog before selection.
// Zero time ceilings mean no limit; an empty cuisine list means any cuisine.
type Query struct {
	DietaryTags         []string `json:"dietary_tags,omitempty"`
	ExcludedIngredients []string `json:"excluded_ingredients,omitempty"`
	Cuisines            []string `json:"cuisines,omitempty"`
	MaxPrepMinutes      int      `json:"max_prep_minutes,omitempty"`
	MaxCookMinutes      int      `json:"max_cook_minutes,omitempty"`
}

// Catalog is the read-only recipe source used by the planner.
type Catalog interface {
	FindEligible(ctx context.Context, q Query) ([]Recipe, error)
}

// Lookup resolves recipes by id.
type Lookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]Recipe, error)
}

// Matches reports whether the recipe passes every filter of the query.
func (q Query) Matches(r Recipe) bool {
	for _, tag := range q.DietaryTags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		if !r.HasTag(tag) {
			return false
		}
	}
	for _, excluded := range q.ExcludedIngredients {
		if r.ContainsIngredient(excluded) {
			return false
		}
	}
	if q.MaxPrepMinutes > 0 && r.PrepMinutes > q.MaxPrepMinutes {
		return false
	}
	if q.MaxCookMinutes > 0 && r.CookMinutes > q.MaxCookMinutes {
		return false
	}
	if len(q.Cuisines) > 0 && !matchesCuisine(r.Cuisine, q.Cuisines) {
		return false
	}
	return true
}

// Filter returns the recipes matching q, preserving order.
func Filter(recipes []Recipe, q Query) []Recipe {
	var out []Recipe
	for _, r := range recipes {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func matchesCuisine(cuisine string, wanted []string) bool {
	have := NormalizeTag(cuisine)
	for _, c := range wanted {
		if NormalizeTag(c) == have && have != "" {
			return true
		}
	}
	return false
}
