package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type tuningFile struct {
	SlotShares struct {
		Breakfast float64 `mapstructure:"breakfast"`
		Lunch     float64 `mapstructure:"lunch"`
		Dinner    float64 `mapstructure:"dinner"`
		Snacks    float64 `mapstructure:"snacks"`
	} `mapstructure:"slot_shares"`
	CalorieTolerance float64 `mapstructure:"calorie_tolerance"`
	RepeatWindowDays int     `mapstructure:"repeat_window_days"`
	SnacksPerDay     int     `mapstructure:"snacks_per_day"`
}

// LoadTuning reads planner tuning from path, or from tuning.{yaml,json,toml}
// in . or ./config when path is empty. MEALPLAN_* variables override file
// values, e.g. MEALPLAN_SLOT_SHARES_SNACKS or MEALPLAN_SNACKS_PER_DAY.
func LoadTuning(path string) (Tuning, error) {
	v := viper.New()
	setTuningDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tuning")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MEALPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Tuning{}, fmt.Errorf("failed to read tuning config: %w", err)
		}
	}

	var raw tuningFile
	if err := v.Unmarshal(&raw); err != nil {
		return Tuning{}, fmt.Errorf("failed to unmarshal tuning config: %w", err)
	}

	tuning := Tuning{
		SlotShares: map[MealSlot]float64{
			SlotBreakfast: raw.SlotShares.Breakfast,
			SlotLunch:     raw.SlotShares.Lunch,
			SlotDinner:    raw.SlotShares.Dinner,
			SlotSnacks:    raw.SlotShares.Snacks,
		},
		CalorieTolerance: raw.CalorieTolerance,
		RepeatWindowDays: raw.RepeatWindowDays,
		SnacksPerDay:     raw.SnacksPerDay,
	}
	if err := tuning.Validate(); err != nil {
		return Tuning{}, err
	}
	return tuning, nil
}

func setTuningDefaults(v *viper.Viper) {
	d := DefaultTuning()
	v.SetDefault("slot_shares.breakfast", d.SlotShares[SlotBreakfast])
	v.SetDefault("slot_shares.lunch", d.SlotShares[SlotLunch])
	v.SetDefault("slot_shares.dinner", d.SlotShares[SlotDinner])
	v.SetDefault("slot_shares.snacks", d.SlotShares[SlotSnacks])
	v.SetDefault("calorie_tolerance", d.CalorieTolerance)
	v.SetDefault("repeat_window_days", d.RepeatWindowDays)
	v.SetDefault("snacks_per_day", d.SnacksPerDay)
}
