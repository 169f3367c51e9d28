package shopping

import (
	"math"
	"sort"
	"strings"

	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/recipe"
)

// Occurrence is a recipe and the number of times a plan uses it.
type Occurrence struct {
	Recipe recipe.Recipe
	Count  int
}

// Option configures the aggregator.
type Option func(*options)

type options struct {
	normalizeUnits bool
}

// WithUnitNormalization merges spellings of convertible units within one
// dimension, e.g. 1 kg and 500 g of flour become 1.5 kg. Mass and volume
// are never mixed and unknown units still merge only on exact spelling.
func WithUnitNormalization() Option {
	return func(o *options) { o.normalizeUnits = true }
}

// OccurrencesFromPlan counts recipe uses across all days and slots, in
// first-appearance order.
func OccurrencesFromPlan(plan *planner.MealPlan) ([]Occurrence, error) {
	index := make(map[string]int)
	var out []Occurrence
	err := plan.EachRef(func(_ planner.PlanDay, _ planner.MealSlot, ref recipe.Ref) error {
		if i, ok := index[ref.ID()]; ok {
			out[i].Count++
			return nil
		}
		rec, err := ref.MustRecipe()
		if err != nil {
			return err
		}
		index[ref.ID()] = len(out)
		out = append(out, Occurrence{Recipe: rec, Count: 1})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BuildGroceryList derives a fresh grocery list from a plan. The plan is
// not modified and purchased flags are never set.
func BuildGroceryList(plan *planner.MealPlan, opts ...Option) ([]GroceryItem, error) {
	occurrences, err := OccurrencesFromPlan(plan)
	if err != nil {
		return nil, err
	}
	return Aggregate(occurrences, opts...), nil
}

type line struct {
	item      GroceryItem
	dimension recipe.Dimension
	base      float64
}

// Aggregate multiplies ingredient quantities by occurrence counts and merges
// lines with the same name and unit. Output follows first appearance.
func Aggregate(occurrences []Occurrence, opts ...Option) []GroceryItem {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	index := make(map[string]int)
	var lines []*line
	for _, occ := range occurrences {
		if occ.Count <= 0 {
			continue
		}
		for _, ing := range occ.Recipe.Ingredients {
			name := strings.TrimSpace(ing.Name)
			if name == "" {
				continue
			}
			qty := ing.Quantity * float64(occ.Count)
			unit := strings.TrimSpace(ing.Unit)

			key := lineKey(name, unit)
			var dim recipe.Dimension
			var base float64
			if o.normalizeUnits {
				if u, ok := recipe.LookupUnit(unit); ok {
					dim = u.Dimension
					base = qty * u.ToBase
					key = lineKey(name, string(dim))
				} else {
					key = lineKey(name, recipe.CanonicalUnit(unit))
				}
			}

			if i, ok := index[key]; ok {
				lines[i].item.Quantity += qty
				lines[i].base += base
				continue
			}
			category := strings.TrimSpace(ing.Category)
			if category == "" {
				category = DefaultCategory
			}
			index[key] = len(lines)
			lines = append(lines, &line{
				item:      GroceryItem{Name: name, Quantity: qty, Unit: unit, Category: category},
				dimension: dim,
				base:      base,
			})
		}
	}

	items := make([]GroceryItem, 0, len(lines))
	for _, l := range lines {
		item := l.item
		if l.dimension != "" {
			item.Quantity, item.Unit = displayUnit(l.dimension, l.base)
		} else if o.normalizeUnits {
			item.Unit = recipe.CanonicalUnit(item.Unit)
		}
		item.Quantity = round2(item.Quantity)
		items = append(items, item)
	}
	return items
}

// displayUnit expresses a base quantity in g/kg or ml/l.
func displayUnit(dim recipe.Dimension, base float64) (float64, string) {
	switch dim {
	case recipe.DimensionMass:
		if base >= 1000 {
			return base / 1000, "kg"
		}
		return base, "g"
	case recipe.DimensionVolume:
		if base >= 1000 {
			return base / 1000, "l"
		}
		return base, "ml"
	}
	return base, ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MergePurchased copies purchased flags from a persisted list onto a freshly
// built one. Lines that disappeared from the plan are dropped.
func MergePurchased(fresh, persisted []GroceryItem) []GroceryItem {
	purchased := make(map[string]bool, len(persisted))
	for _, item := range persisted {
		if item.Purchased {
			purchased[item.Key()] = true
		}
	}
	out := make([]GroceryItem, len(fresh))
	for i, item := range fresh {
		item.Purchased = purchased[item.Key()]
		out[i] = item
	}
	return out
}

// CategoryGroup is the items of one category, for display.
type CategoryGroup struct {
	Category string        `json:"category"`
	Items    []GroceryItem `json:"items"`
}

// GroupByCategory buckets items by category, sorted by category name with
// item order preserved inside each bucket.
func GroupByCategory(items []GroceryItem) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(groups)
			index[item.Category] = i
			groups = append(groups, CategoryGroup{Category: item.Category})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Category < groups[j].Category })
	return groups
}
