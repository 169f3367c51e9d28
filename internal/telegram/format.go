package telegram

import (
	"fmt"
	"strings"

	"mealplan-engine/internal/app"
	"mealplan-engine/internal/planner"
	"mealplan-engine/internal/shopping"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown escapes the characters that legacy Markdown mode treats as markup.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

var slotLabels = map[planner.MealSlot]string{
	planner.SlotBreakfast: "Breakfast",
	planner.SlotLunch:     "Lunch",
	planner.SlotDinner:    "Dinner",
	planner.SlotSnacks:    "Snacks",
}

func formatPlanMarkdown(plan *planner.MealPlan) string {
	var pb strings.Builder
	fmt.Fprintf(&pb, "📅 *%s*\n", escapeMarkdown(plan.Title))
	fmt.Fprintf(&pb, "_Starts %s, target %.0f kcal/day_\n\n", plan.StartDate.Format("Mon 2 Jan"), plan.Target.DailyCalories)

	for _, day := range plan.Days {
		fmt.Fprintf(&pb, "*Day %d* (%s): %.0f kcal\n", day.DayNumber, day.Date.Format("Mon 2 Jan"), day.Nutrition.Calories)
		for _, slot := range planner.SlotOrder {
			refs := day.Meals[slot]
			if len(refs) == 0 {
				continue
			}
			titles := make([]string, 0, len(refs))
			for _, ref := range refs {
				title := ref.ID()
				if rec, err := ref.MustRecipe(); err == nil {
					title = rec.Title
				}
				titles = append(titles, escapeMarkdown(title))
			}
			fmt.Fprintf(&pb, "• %s: %s\n", slotLabels[slot], strings.Join(titles, ", "))
		}
		for _, note := range day.Notes {
			fmt.Fprintf(&pb, "⚠️ _%s_\n", strings.ReplaceAll(note, "_", " "))
		}
		pb.WriteString("\n")
	}

	s := plan.Summary
	fmt.Fprintf(&pb, "📊 *Daily average:* %.0f kcal, P %.0fg, C %.0fg, F %.0fg",
		s.AverageDailyCalories, s.AverageProtein, s.AverageCarbs, s.AverageFats)
	if s.FlaggedDays > 0 {
		fmt.Fprintf(&pb, "\n⚠️ %d day(s) outside the calorie tolerance", s.FlaggedDays)
	}
	return pb.String()
}

func formatGroceriesMarkdown(list *shopping.ShoppingList) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n")
	if len(list.Items) == 0 {
		sb.WriteString("\n_Nothing to buy_")
		return sb.String()
	}
	for _, group := range shopping.GroupByCategory(list.Items) {
		fmt.Fprintf(&sb, "\n*%s*\n", escapeMarkdown(titleCase(group.Category)))
		for _, item := range group.Items {
			mark := "•"
			if item.Purchased {
				mark = "✅"
			}
			fmt.Fprintf(&sb, "%s %s\n", mark, escapeMarkdown(formatQuantity(item)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatQuantity(item shopping.GroceryItem) string {
	qty := strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", item.Quantity), "0"), ".")
	if item.Unit == "" {
		return fmt.Sprintf("%s x %s", item.Name, qty)
	}
	return fmt.Sprintf("%s %s %s", item.Name, qty, item.Unit)
}

func formatProgressMarkdown(p *app.Progress) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📈 *Progress* (%s to %s, %s)\n", p.Planned.Start, p.Planned.End, p.Status)
	fmt.Fprintf(&sb, "_Target %.0f kcal/day_\n\n", p.Target.DailyCalories)
	for i, planned := range p.Planned.Days {
		logged := p.Logged.Days[i]
		fmt.Fprintf(&sb, "%s: %.0f / %.0f kcal\n", planned.Date, logged.Totals.Calories, planned.Totals.Calories)
	}
	fmt.Fprintf(&sb, "\n*Total:* %.0f logged of %.0f planned kcal", p.Logged.Totals.Calories, p.Planned.Totals.Calories)
	return sb.String()
}

// splitMessage cuts text on line boundaries into chunks of at most limit
// bytes. A single longer line is cut hard.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			parts = append(parts, line[:limit])
			line = line[limit:]
		}
		if cur.Len()+len(line) > limit {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
