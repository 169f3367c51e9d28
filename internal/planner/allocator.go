package planner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shared"
)

// Tuning holds the allocation defaults that can be overridden per deployment.
type Tuning struct {
	SlotShares       map[MealSlot]float64 `json:"slot_shares"`
	CalorieTolerance float64              `json:"calorie_tolerance"`
	RepeatWindowDays int                  `json:"repeat_window_days"`
	SnacksPerDay     int                  `json:"snacks_per_day"`
}

// DefaultTuning returns the canonical 25/35/30/10 split, a ±10% calorie band,
// a seven-day repetition window and one snack per day.
func DefaultTuning() Tuning {
	return Tuning{
		SlotShares: map[MealSlot]float64{
			SlotBreakfast: 0.25,
			SlotLunch:     0.35,
			SlotDinner:    0.30,
			SlotSnacks:    0.10,
		},
		CalorieTolerance: 0.10,
		RepeatWindowDays: 7,
		SnacksPerDay:     1,
	}
}

// Validate checks that the shares cover the whole day and the limits are sane.
func (t Tuning) Validate() error {
	var total float64
	for _, slot := range SlotOrder {
		share, ok := t.SlotShares[slot]
		if !ok || share <= 0 {
			return fmt.Errorf("%w: %s share must be positive", ErrInvalidTuning, slot)
		}
		total += share
	}
	if math.Abs(total-1) > 0.001 {
		return fmt.Errorf("%w: slot shares sum to %.3f, want 1", ErrInvalidTuning, total)
	}
	if t.CalorieTolerance <= 0 || t.CalorieTolerance >= 1 {
		return fmt.Errorf("%w: calorie tolerance %.2f outside (0, 1)", ErrInvalidTuning, t.CalorieTolerance)
	}
	if t.RepeatWindowDays < 1 {
		return fmt.Errorf("%w: repeat window must be at least one day", ErrInvalidTuning)
	}
	if t.SnacksPerDay < 0 || t.SnacksPerDay > 3 {
		return fmt.Errorf("%w: snacks per day %d outside [0, 3]", ErrInvalidTuning, t.SnacksPerDay)
	}
	return nil
}

// repeatWindow remembers the recipe ids used on the most recent days.
type repeatWindow struct {
	size int
	days []map[string]bool
}

func newRepeatWindow(size int) *repeatWindow {
	return &repeatWindow{size: size}
}

func (w *repeatWindow) contains(id string) bool {
	for _, d := range w.days {
		if d[id] {
			return true
		}
	}
	return false
}

func (w *repeatWindow) push(ids map[string]bool) {
	w.days = append(w.days, ids)
	if len(w.days) > w.size {
		w.days = w.days[len(w.days)-w.size:]
	}
}

type slotEntry struct {
	slot  MealSlot
	share float64
}

// allocator fills plan days from one eligible-set snapshot.
type allocator struct {
	tuning  Tuning
	target  shared.Macros
	pools   map[MealSlot][]recipe.Recipe
	entries []slotEntry
	window  *repeatWindow
	avoid   map[string]bool
}

func newAllocator(eligible []recipe.Recipe, target nutrition.Target, tuning Tuning, durationDays int, avoid map[string]bool) (*allocator, error) {
	if len(eligible) == 0 {
		return nil, ErrNoEligibleRecipes
	}

	sorted := make([]recipe.Recipe, len(eligible))
	copy(sorted, eligible)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var entries []slotEntry
	for _, slot := range SlotOrder {
		share := tuning.SlotShares[slot]
		if slot != SlotSnacks {
			entries = append(entries, slotEntry{slot: slot, share: share})
			continue
		}
		for i := 0; i < tuning.SnacksPerDay; i++ {
			entries = append(entries, slotEntry{slot: slot, share: share / float64(tuning.SnacksPerDay)})
		}
	}

	return &allocator{
		tuning:  tuning,
		target:  target.Macros(),
		pools:   partitionBySlot(sorted),
		entries: entries,
		window:  newRepeatWindow(min(tuning.RepeatWindowDays, durationDays)),
		avoid:   avoid,
	}, nil
}

// partitionBySlot groups recipes by meal-type hints. Recipes without any hint
// are usable in every slot, and a slot nobody is hinted for uses everything.
func partitionBySlot(eligible []recipe.Recipe) map[MealSlot][]recipe.Recipe {
	pools := make(map[MealSlot][]recipe.Recipe, len(SlotOrder))
	for _, slot := range SlotOrder {
		var pool []recipe.Recipe
		for _, r := range eligible {
			if !hasSlotHint(r) || hintedFor(r, slot) {
				pool = append(pool, r)
			}
		}
		if len(pool) == 0 {
			pool = eligible
		}
		pools[slot] = pool
	}
	return pools
}

func hintedFor(r recipe.Recipe, slot MealSlot) bool {
	if r.SuitsMeal(string(slot)) || r.HasTag(string(slot)) {
		return true
	}
	return slot == SlotSnacks && r.HasTag("snack")
}

func hasSlotHint(r recipe.Recipe) bool {
	for _, slot := range SlotOrder {
		if hintedFor(r, slot) {
			return true
		}
	}
	return false
}

// allocateDay fills every slot of one day. Each pick aims at the slot's share
// of what is left of the daily budget, so later slots absorb earlier misses.
func (a *allocator) allocateDay(dayNumber int, date time.Time) (PlanDay, error) {
	day := PlanDay{
		DayNumber: dayNumber,
		Date:      date,
		Meals:     make(map[MealSlot][]recipe.Ref, len(SlotOrder)),
	}
	day.Meals[SlotSnacks] = []recipe.Ref{}

	remaining := a.target
	var remainingShare float64
	for _, e := range a.entries {
		remainingShare += e.share
	}

	usedToday := make(map[string]bool)
	var realized shared.Macros
	var fallbacks []string
	repeated := false

	for _, e := range a.entries {
		pool := a.pools[e.slot]
		if len(pool) == 0 {
			return PlanDay{}, fmt.Errorf("%w for %s", ErrNoEligibleRecipes, e.slot)
		}

		fraction := e.share / remainingShare
		slotCalories := math.Max(remaining.Calories, 0) * fraction
		slotProtein := math.Max(remaining.Protein, 0) * fraction

		candidates, fresh := a.preferUnused(pool, usedToday)
		if !fresh {
			repeated = true
		}

		pick, fits := pickClosest(candidates, slotCalories, slotProtein, remaining.Calories)
		if !fits {
			fallbacks = append(fallbacks, fmt.Sprintf("no %s option fit the remaining %.0f kcal, used the lightest (%.0f kcal)",
				e.slot, math.Max(remaining.Calories, 0), pick.Nutrition.Calories))
		}

		day.Meals[e.slot] = append(day.Meals[e.slot], recipe.Resolved(pick))
		usedToday[pick.ID] = true
		remaining = remaining.Sub(pick.Nutrition)
		realized = realized.Add(pick.Nutrition)
		remainingShare -= e.share
	}

	day.Nutrition = realized.Round()
	day.Notes, day.OffTarget = a.notes(day.Nutrition, fallbacks, repeated)
	a.window.push(usedToday)
	return day, nil
}

// preferUnused narrows the pool step by step: not used today, not in the
// repetition window, not in the avoid set. The strictest non-empty tier wins.
func (a *allocator) preferUnused(pool []recipe.Recipe, usedToday map[string]bool) ([]recipe.Recipe, bool) {
	tiers := []func(recipe.Recipe) bool{
		func(r recipe.Recipe) bool { return !usedToday[r.ID] && !a.window.contains(r.ID) && !a.avoid[r.ID] },
		func(r recipe.Recipe) bool { return !usedToday[r.ID] && !a.window.contains(r.ID) },
		func(r recipe.Recipe) bool { return !usedToday[r.ID] },
	}
	for i, keep := range tiers {
		var out []recipe.Recipe
		for _, r := range pool {
			if keep(r) {
				out = append(out, r)
			}
		}
		if len(out) > 0 {
			return out, i < 2
		}
	}
	return pool, false
}

// pickClosest chooses among candidates under the remaining calories the one
// closest to the slot calories, then closest to the slot protein, then by id.
// When nothing fits it returns the lightest candidate and false.
func pickClosest(candidates []recipe.Recipe, slotCalories, slotProtein, remainingCalories float64) (recipe.Recipe, bool) {
	var fitting []recipe.Recipe
	for _, r := range candidates {
		if r.Nutrition.Calories <= remainingCalories {
			fitting = append(fitting, r)
		}
	}

	if len(fitting) == 0 {
		lightest := candidates[0]
		for _, r := range candidates[1:] {
			if r.Nutrition.Calories < lightest.Nutrition.Calories ||
				(r.Nutrition.Calories == lightest.Nutrition.Calories && r.ID < lightest.ID) {
				lightest = r
			}
		}
		return lightest, false
	}

	sort.SliceStable(fitting, func(i, j int) bool {
		ci := math.Abs(fitting[i].Nutrition.Calories - slotCalories)
		cj := math.Abs(fitting[j].Nutrition.Calories - slotCalories)
		if ci != cj {
			return ci < cj
		}
		pi := math.Abs(fitting[i].Nutrition.Protein - slotProtein)
		pj := math.Abs(fitting[j].Nutrition.Protein - slotProtein)
		if pi != pj {
			return pi < pj
		}
		return fitting[i].ID < fitting[j].ID
	})
	return fitting[0], true
}

func (a *allocator) notes(realized shared.Macros, fallbacks []string, repeated bool) ([]string, bool) {
	var notes []string
	target := a.target.Calories
	if target > 0 {
		deviation := (realized.Calories - target) / target
		switch {
		case deviation > a.tuning.CalorieTolerance:
			notes = append(notes, fmt.Sprintf("over target: %.0f kcal vs %.0f kcal target (%+.1f%%)", realized.Calories, target, deviation*100))
		case deviation < -a.tuning.CalorieTolerance:
			notes = append(notes, fmt.Sprintf("under target: %.0f kcal vs %.0f kcal target (%+.1f%%)", realized.Calories, target, deviation*100))
		case len(fallbacks) > 0:
			notes = append(notes, fmt.Sprintf("over target: %.0f kcal vs %.0f kcal target (%+.1f%%)", realized.Calories, target, deviation*100))
		}
	}
	offTarget := len(notes) > 0
	notes = append(notes, fallbacks...)
	if repeated {
		notes = append(notes, fmt.Sprintf("repeats recipes from the last %d days: eligible set too small for full variety", a.window.size))
	}
	return notes, offTarget
}
