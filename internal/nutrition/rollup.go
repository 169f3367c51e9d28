package nutrition

import (
	"fmt"
	"sort"
	"time"

	"mealplan-engine/internal/shared"
)

// DateLayout is the calendar-date format used for rollup keys.
const DateLayout = "2006-01-02"

const maxRangeDays = 366

// MealRecord is one dated meal, either planned or logged.
type MealRecord struct {
	ID        int64         `json:"id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Date      time.Time     `json:"date"`
	RecipeID  string        `json:"recipe_id,omitempty"`
	Title     string        `json:"title,omitempty"`
	Nutrition shared.Macros `json:"nutrition"`
}

// DailyRollup is the nutrition total for one calendar date.
type DailyRollup struct {
	Date   string        `json:"date"`
	Totals shared.Macros `json:"totals"`
	Meals  int           `json:"meals"`
}

// RangeRollup covers every date of a requested range, zero-filled.
type RangeRollup struct {
	Start   string        `json:"start"`
	End     string        `json:"end"`
	Days    []DailyRollup `json:"days"`
	Totals  shared.Macros `json:"totals"`
	Average shared.Macros `json:"average"`
}

// DateKey formats the calendar date of t in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// CivilDate returns midnight UTC of t's calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDateRange parses two YYYY-MM-DD dates.
func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q: %v", ErrInvalidDateRange, start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q: %v", ErrInvalidDateRange, end, err)
	}
	return s, e, nil
}

// AggregateByDate sums records per calendar date. Only dates that have
// records are returned, oldest first.
func AggregateByDate(records []MealRecord) []DailyRollup {
	byDate := groupByDate(records)

	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]DailyRollup, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byDate[k])
	}
	return out
}

// AggregateRange rolls records up over every date from start to end inclusive.
// Dates without records are present with zero totals.
func AggregateRange(records []MealRecord, start, end time.Time) (RangeRollup, error) {
	if start.IsZero() || end.IsZero() {
		return RangeRollup{}, fmt.Errorf("%w: start and end are required", ErrInvalidDateRange)
	}
	s, e := CivilDate(start), CivilDate(end)
	if e.Before(s) {
		return RangeRollup{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidDateRange, DateKey(e), DateKey(s))
	}
	span := int(e.Sub(s).Hours()/24) + 1
	if span > maxRangeDays {
		return RangeRollup{}, fmt.Errorf("%w: %d days exceeds the %d day limit", ErrInvalidDateRange, span, maxRangeDays)
	}

	dates := make([]time.Time, 0, span)
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return rollup(records, dates), nil
}

// AggregateDates rolls records up over an explicit set of dates. Duplicates
// are collapsed and the result is ordered by date.
func AggregateDates(records []MealRecord, dates []time.Time) (RangeRollup, error) {
	if len(dates) == 0 {
		return RangeRollup{}, fmt.Errorf("%w: no dates requested", ErrInvalidDateRange)
	}
	if len(dates) > maxRangeDays {
		return RangeRollup{}, fmt.Errorf("%w: %d dates exceeds the %d day limit", ErrInvalidDateRange, len(dates), maxRangeDays)
	}

	seen := make(map[string]bool, len(dates))
	unique := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			return RangeRollup{}, fmt.Errorf("%w: zero date", ErrInvalidDateRange)
		}
		c := CivilDate(d)
		if seen[DateKey(c)] {
			continue
		}
		seen[DateKey(c)] = true
		unique = append(unique, c)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Before(unique[j]) })

	return rollup(records, unique), nil
}

func rollup(records []MealRecord, dates []time.Time) RangeRollup {
	byDate := groupByDate(records)

	r := RangeRollup{
		Start: DateKey(dates[0]),
		End:   DateKey(dates[len(dates)-1]),
		Days:  make([]DailyRollup, 0, len(dates)),
	}
	for _, d := range dates {
		key := DateKey(d)
		day := DailyRollup{Date: key}
		if agg, ok := byDate[key]; ok {
			day = *agg
		}
		r.Days = append(r.Days, day)
		r.Totals = r.Totals.Add(day.Totals)
	}
	r.Totals = r.Totals.Round()
	r.Average = r.Totals.Scale(1 / float64(len(dates))).Round()
	return r
}

func groupByDate(records []MealRecord) map[string]*DailyRollup {
	byDate := make(map[string]*DailyRollup)
	for _, rec := range records {
		key := DateKey(rec.Date)
		agg, ok := byDate[key]
		if !ok {
			agg = &DailyRollup{Date: key}
			byDate[key] = agg
		}
		agg.Totals = agg.Totals.Add(rec.Nutrition)
		agg.Meals++
	}
	for _, agg := range byDate {
		agg.Totals = agg.Totals.Round()
	}
	return byDate
}
