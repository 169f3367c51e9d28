package main

import (
	"encoding/json"
	"fmt"
	"time"

	"mealplan-engine/internal/app"
	"mealplan-engine/internal/nutrition"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/shared"
	"mealplan-engine/internal/shopping"
)

func (rc *runContext) printJSON(v any) error {
	enc := json.NewEncoder(rc.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ProfileFlags overrides the PROFILE_* defaults when Age is given.
type ProfileFlags struct {
	Age      int     `help:"Age in years."`
	Sex      string  `help:"male or female."`
	Height   float64 `help:"Height in cm."`
	Weight   float64 `help:"Weight in kg."`
	Activity string  `help:"sedentary, light, moderate, active or very_active." default:"moderate"`
	Goal     string  `help:"weight_loss, maintenance or muscle_gain." default:"maintenance"`
}

func (p ProfileFlags) profile() *nutrition.Profile {
	if p.Age == 0 {
		return nil
	}
	return &nutrition.Profile{
		Age:           p.Age,
		Sex:           nutrition.Sex(p.Sex),
		HeightCm:      p.Height,
		WeightKg:      p.Weight,
		ActivityLevel: nutrition.ActivityLevel(p.Activity),
		Goal:          nutrition.Goal(p.Goal),
	}
}

type TargetsCmd struct {
	ProfileFlags
}

func (c *TargetsCmd) Run(rc *runContext) error {
	profile := c.profile()
	if profile == nil {
		p, err := rc.cfg.DefaultProfile()
		if err != nil {
			return err
		}
		profile = &p
	}
	target, err := nutrition.ResolveTargets(*profile)
	if err != nil {
		return err
	}
	return rc.printJSON(target)
}

type GenerateCmd struct {
	ProfileFlags

	User     string   `help:"Owner of the plan." default:"cli"`
	Title    string   `help:"Plan title."`
	Start    string   `help:"First day (YYYY-MM-DD). Defaults to next Monday."`
	Days     int      `help:"Number of days." default:"7"`
	Diet     string   `help:"Dietary tag every recipe must carry, e.g. vegetarian."`
	Exclude  []string `help:"Ingredients to avoid." sep:","`
	Cuisine  []string `help:"Allowed cuisines." sep:","`
	MaxPrep  int      `help:"Maximum prep minutes per recipe."`
	MaxCook  int      `help:"Maximum cook minutes per recipe."`
	Calories float64  `help:"Daily calorie target. Overrides the profile."`
}

func (c *GenerateCmd) Run(rc *runContext) error {
	start := planner.GetNextMonday(time.Now())
	if c.Start != "" {
		var err error
		if start, err = time.Parse(nutrition.DateLayout, c.Start); err != nil {
			return fmt.Errorf("invalid start date %q: %w", c.Start, err)
		}
	}

	req := app.GenerateRequest{
		UserID:    c.User,
		Title:     c.Title,
		StartDate: start,
		Profile:   c.profile(),
		Preferences: planner.Preferences{
			DurationDays:        c.Days,
			DietaryPreference:   c.Diet,
			ExcludedIngredients: c.Exclude,
			Cuisines:            c.Cuisine,
			MaxPrepMinutes:      c.MaxPrep,
			MaxCookMinutes:      c.MaxCook,
		},
	}
	if c.Calories > 0 {
		target := nutrition.TargetFromCalories(c.Calories)
		req.Target = &target
	}

	plan, err := rc.app.GeneratePlan(rc.ctx, req)
	if err != nil {
		return err
	}
	return rc.printJSON(plan)
}

type RegenerateCmd struct {
	PlanID string `arg:"" help:"Plan to rebuild."`
}

func (c *RegenerateCmd) Run(rc *runContext) error {
	plan, err := rc.app.RegeneratePlan(rc.ctx, c.PlanID)
	if err != nil {
		return err
	}
	return rc.printJSON(plan)
}

type PlansCmd struct {
	User  string `help:"Owner of the plans." default:"cli"`
	Limit int    `help:"Maximum number of plans." default:"10"`
}

func (c *PlansCmd) Run(rc *runContext) error {
	plans, err := rc.app.ListPlans(rc.ctx, c.User, c.Limit)
	if err != nil {
		return err
	}
	for _, p := range plans {
		fmt.Fprintf(rc.out, "%s  %s  %-9s  %d days  %s\n", p.ID, nutrition.DateKey(p.StartDate), p.Status, p.DurationDays, p.Title)
	}
	return nil
}

type GroceriesCmd struct {
	PlanID string `arg:"" help:"Plan to shop for."`
	Group  bool   `help:"Group items by category."`
}

func (c *GroceriesCmd) Run(rc *runContext) error {
	list, err := rc.app.GroceryList(rc.ctx, c.PlanID)
	if err != nil {
		return err
	}
	if c.Group {
		return rc.printJSON(shopping.GroupByCategory(list.Items))
	}
	return rc.printJSON(list)
}

type ProgressCmd struct {
	PlanID string `arg:"" help:"Plan to compare against the meal log."`
}

func (c *ProgressCmd) Run(rc *runContext) error {
	progress, err := rc.app.PlanProgress(rc.ctx, c.PlanID)
	if err != nil {
		return err
	}
	return rc.printJSON(progress)
}

type StatusCmd struct {
	PlanID string `arg:"" help:"Plan to update."`
	Status string `arg:"" help:"New status: active, completed or archived."`
}

func (c *StatusCmd) Run(rc *runContext) error {
	plan, err := rc.app.TransitionPlan(rc.ctx, c.PlanID, c.Status)
	if err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "Plan %s is now %s.\n", plan.ID, plan.Status)
	return nil
}

type LogMealCmd struct {
	User     string  `help:"Who ate the meal." default:"cli"`
	Date     string  `help:"Day eaten (YYYY-MM-DD). Defaults to today."`
	Recipe   string  `help:"Catalog recipe id; fills in nutrition."`
	Title    string  `help:"Free-form meal title."`
	Calories float64 `help:"Calories when no recipe is given."`
	Protein  float64 `help:"Protein grams."`
	Carbs    float64 `help:"Carb grams."`
	Fats     float64 `help:"Fat grams."`
}

func (c *LogMealCmd) Run(rc *runContext) error {
	date := time.Now()
	if c.Date != "" {
		var err error
		if date, err = time.Parse(nutrition.DateLayout, c.Date); err != nil {
			return fmt.Errorf("invalid date %q: %w", c.Date, err)
		}
	}
	rec, err := rc.app.LogMeal(rc.ctx, nutrition.MealRecord{
		UserID:    c.User,
		Date:      date,
		RecipeID:  c.Recipe,
		Title:     c.Title,
		Nutrition: shared.Macros{Calories: c.Calories, Protein: c.Protein, Carbs: c.Carbs, Fats: c.Fats},
	})
	if err != nil {
		return err
	}
	return rc.printJSON(rec)
}

type ImportRecipesCmd struct{}

func (c *ImportRecipesCmd) Run(rc *runContext) error {
	res, err := rc.app.ImportRecipes(rc.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "Imported %d recipe files, %d failed.\n", res.Imported, res.Failed)
	return nil
}

type IngestCmd struct {
	Force bool `help:"Re-extract posts that have not changed."`
}

func (c *IngestCmd) Run(rc *runContext) error {
	res, err := rc.app.IngestRecipes(rc.ctx, c.Force)
	if err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "Ingestion finished: %d imported, %d unchanged, %d failed.\n", res.Imported, res.Skipped, res.Failed)
	return nil
}

type ClipCmd struct {
	URL string `arg:"" help:"Recipe page to import."`
}

func (c *ClipCmd) Run(rc *runContext) error {
	rec, err := rc.app.ClipRecipe(rc.ctx, c.URL)
	if err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "Saved %s (%s): %.0f kcal per serving, %d ingredients.\n", rec.Title, rec.ID, rec.Nutrition.Calories, len(rec.Ingredients))
	return nil
}

type MetricsReportCmd struct {
	Days int `help:"Report window in days." default:"7"`
}

func (c *MetricsReportCmd) Run(rc *runContext) error {
	report, err := rc.app.MetricsReport(rc.ctx, c.Days)
	if err != nil {
		return err
	}
	fmt.Fprintln(rc.out, report)
	return nil
}

type MetricsCleanupCmd struct {
	Days int `help:"Keep records for the last N days." default:"30"`
}

func (c *MetricsCleanupCmd) Run(rc *runContext) error {
	affected, err := rc.app.CleanupMetrics(rc.ctx, c.Days)
	if err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "Successfully removed %d old metric records.\n", affected)
	return nil
}
