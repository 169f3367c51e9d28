package nutrition

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"mealplan-engine/internal/shared"

	"github.com/go-playground/validator/v10"
)

// Sex selects the Mifflin-St Jeor constant.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ActivityLevel is the self-reported weekly activity.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// Goal adjusts maintenance calories.
type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMaintenance Goal = "maintenance"
	GoalMuscleGain  Goal = "muscle_gain"
)

const (
	proteinShare = 0.30
	carbsShare   = 0.40
	fatsShare    = 0.30

	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
)

var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.465,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

var activityAliases = map[string]ActivityLevel{
	"lightly_active":    ActivityLight,
	"moderately_active": ActivityModerate,
	"extra_active":      ActivityVeryActive,
}

var goalFactors = map[Goal]float64{
	GoalWeightLoss:  0.85,
	GoalMaintenance: 1.0,
	GoalMuscleGain:  1.10,
}

var sexConstants = map[Sex]float64{
	SexMale:   5,
	SexFemale: -161,
}

// Profile is the physiological input to target resolution.
type Profile struct {
	Age           int           `json:"age" validate:"gte=1,lte=120"`
	Sex           Sex           `json:"sex" validate:"oneof=male female"`
	HeightCm      float64       `json:"height_cm" validate:"gte=50,lte=250"`
	WeightKg      float64       `json:"weight_kg" validate:"gte=20,lte=300"`
	ActivityLevel ActivityLevel `json:"activity_level" validate:"oneof=sedentary light moderate active very_active"`
	Goal          Goal          `json:"goal" validate:"oneof=weight_loss maintenance muscle_gain"`
}

// Target is the daily calorie and macro goal derived from a profile.
type Target struct {
	DailyCalories float64 `json:"daily_calories"`
	Protein       float64 `json:"protein"`
	Carbs         float64 `json:"carbs"`
	Fats          float64 `json:"fats"`
}

// Macros returns the target as a macro bundle.
func (t Target) Macros() shared.Macros {
	return shared.Macros{Calories: t.DailyCalories, Protein: t.Protein, Carbs: t.Carbs, Fats: t.Fats}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Normalize lower-cases the enum fields and folds common spellings.
func (p Profile) Normalize() Profile {
	p.Sex = Sex(normalizeToken(string(p.Sex)))
	level := normalizeToken(string(p.ActivityLevel))
	if alias, ok := activityAliases[level]; ok {
		level = string(alias)
	}
	p.ActivityLevel = ActivityLevel(level)
	p.Goal = Goal(normalizeToken(string(p.Goal)))
	return p
}

// Validate checks the profile ranges.
func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return profileErrorFrom(verrs[0])
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

// ResolveTargets computes daily targets with Mifflin-St Jeor, the activity
// multiplier and the goal factor, then splits calories 30/40/30 into macros.
func ResolveTargets(p Profile) (Target, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return Target{}, err
	}

	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age) + sexConstants[p.Sex]
	if bmr <= 0 {
		return Target{}, &ProfileError{Field: "profile", Reason: "yields a non-positive basal metabolic rate"}
	}

	return TargetFromCalories(math.Round(bmr * activityMultipliers[p.ActivityLevel] * goalFactors[p.Goal])), nil
}

// TargetFromCalories splits a daily calorie goal 30/40/30 into macro grams.
func TargetFromCalories(calories float64) Target {
	return Target{
		DailyCalories: calories,
		Protein:       round1(calories * proteinShare / kcalPerGramProtein),
		Carbs:         round1(calories * carbsShare / kcalPerGramCarbs),
		Fats:          round1(calories * fatsShare / kcalPerGramFat),
	}
}

func profileErrorFrom(fe validator.FieldError) *ProfileError {
	var reason string
	switch fe.Tag() {
	case "gte":
		reason = fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		reason = fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		reason = fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		reason = fmt.Sprintf("failed %s", fe.Tag())
	}
	return &ProfileError{Field: fe.Field(), Reason: reason}
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
