package planner

import (
	"testing"
	"time"

	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/recipe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuningValidate(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())

	tests := []struct {
		name   string
		mutate func(*Tuning)
	}{
		{"SharesDoNotSum", func(tu *Tuning) { tu.SlotShares[SlotLunch] = 0.5 }},
		{"MissingSlot", func(tu *Tuning) { delete(tu.SlotShares, SlotDinner) }},
		{"ZeroTolerance", func(tu *Tuning) { tu.CalorieTolerance = 0 }},
		{"ZeroWindow", func(tu *Tuning) { tu.RepeatWindowDays = 0 }},
		{"TooManySnacks", func(tu *Tuning) { tu.SnacksPerDay = 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := DefaultTuning()
			tt.mutate(&tu)
			assert.ErrorIs(t, tu.Validate(), ErrInvalidTuning)
		})
	}
}

func TestPartitionBySlot(t *testing.T) {
	recipes := []recipe.Recipe{
		makeRecipe("a", "breakfast", 500),
		makeRecipe("b", "", 500),
		makeRecipe("c", "dinner", 500),
	}
	pools := partitionBySlot(recipes)

	ids := func(rs []recipe.Recipe) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b"}, ids(pools[SlotBreakfast]))
	assert.Equal(t, []string{"b"}, ids(pools[SlotLunch]))
	assert.Equal(t, []string{"b", "c"}, ids(pools[SlotDinner]))
	assert.Equal(t, []string{"b"}, ids(pools[SlotSnacks]))

	t.Run("EmptyPartitionUsesEverything", func(t *testing.T) {
		only := []recipe.Recipe{makeRecipe("a", "breakfast", 500)}
		pools := partitionBySlot(only)
		assert.Equal(t, []string{"a"}, ids(pools[SlotDinner]))
	})
}

func TestAllocateDay(t *testing.T) {
	target := nutrition.Target{DailyCalories: 2000, Protein: 150, Carbs: 200, Fats: 67}
	date := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	t.Run("NoEligibleRecipes", func(t *testing.T) {
		_, err := newAllocator(nil, target, DefaultTuning(), 3, nil)
		assert.ErrorIs(t, err, ErrNoEligibleRecipes)
	})

	t.Run("FallbackToLightest", func(t *testing.T) {
		recipes := []recipe.Recipe{
			makeRecipe("heavy-1", "", 1500),
			makeRecipe("heavy-2", "", 1400),
			makeRecipe("heavy-3", "", 1300),
			makeRecipe("heavy-4", "", 1200),
		}
		a, err := newAllocator(recipes, target, DefaultTuning(), 1, nil)
		require.NoError(t, err)

		day, err := a.allocateDay(1, date)
		require.NoError(t, err)

		assert.True(t, day.OffTarget)
		assert.Contains(t, day.Notes[0], "over target")
		assert.Contains(t, day.Notes[1], "used the lightest")
		for _, slot := range SlotOrder {
			assert.Len(t, day.Meals[slot], 1)
		}
	})

	t.Run("UnderTarget", func(t *testing.T) {
		recipes := []recipe.Recipe{
			makeRecipe("tiny-1", "", 100),
			makeRecipe("tiny-2", "", 110),
			makeRecipe("tiny-3", "", 120),
			makeRecipe("tiny-4", "", 130),
		}
		a, err := newAllocator(recipes, target, DefaultTuning(), 1, nil)
		require.NoError(t, err)

		day, err := a.allocateDay(1, date)
		require.NoError(t, err)
		assert.True(t, day.OffTarget)
		assert.Contains(t, day.Notes[0], "under target")
		assert.Equal(t, 460.0, day.Nutrition.Calories)
	})

	t.Run("NoSnacks", func(t *testing.T) {
		tuning := DefaultTuning()
		tuning.SnacksPerDay = 0
		a, err := newAllocator(balancedCatalog(), target, tuning, 1, nil)
		require.NoError(t, err)

		day, err := a.allocateDay(1, date)
		require.NoError(t, err)
		assert.NotNil(t, day.Meals[SlotSnacks])
		assert.Empty(t, day.Meals[SlotSnacks])
		assert.Len(t, day.Meals[SlotDinner], 1)
	})

	t.Run("TwoSnacks", func(t *testing.T) {
		tuning := DefaultTuning()
		tuning.SnacksPerDay = 2
		a, err := newAllocator(balancedCatalog(), exampleTarget(t), tuning, 1, nil)
		require.NoError(t, err)

		day, err := a.allocateDay(1, date)
		require.NoError(t, err)
		require.Len(t, day.Meals[SlotSnacks], 2)
		assert.NotEqual(t, day.Meals[SlotSnacks][0].ID(), day.Meals[SlotSnacks][1].ID())
	})

	t.Run("RepeatWindow", func(t *testing.T) {
		recipes := []recipe.Recipe{
			makeRecipe("r-1", "", 500),
			makeRecipe("r-2", "", 500),
			makeRecipe("r-3", "", 500),
			makeRecipe("r-4", "", 500),
			makeRecipe("r-5", "", 500),
			makeRecipe("r-6", "", 500),
			makeRecipe("r-7", "", 500),
			makeRecipe("r-8", "", 500),
		}
		a, err := newAllocator(recipes, target, DefaultTuning(), 3, nil)
		require.NoError(t, err)

		first, err := a.allocateDay(1, date)
		require.NoError(t, err)
		second, err := a.allocateDay(2, date.AddDate(0, 0, 1))
		require.NoError(t, err)

		used := make(map[string]bool)
		for _, slot := range SlotOrder {
			used[first.Meals[slot][0].ID()] = true
		}
		for _, slot := range SlotOrder {
			assert.False(t, used[second.Meals[slot][0].ID()], "slot %s repeats day 1", slot)
		}
		assert.Empty(t, second.Notes)

		third, err := a.allocateDay(3, date.AddDate(0, 0, 2))
		require.NoError(t, err)
		require.NotEmpty(t, third.Notes)
		assert.Contains(t, third.Notes[len(third.Notes)-1], "repeats recipes from the last 3 days")
	})
}
