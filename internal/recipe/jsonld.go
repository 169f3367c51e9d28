package recipe

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"mealplan-engine/internal/shared"

	"github.com/PuerkitoBio/goquery"
)

var (
	isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
	leadingNum  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

var dietSchemas = map[string]string{
	"vegandiet":      "vegan",
	"vegetariandiet": "vegetarian",
	"glutenfreediet": "gluten_free",
	"lowcaloriediet": "low_calorie",
	"lowfatdiet":     "low_fat",
	"lowlactosediet": "lactose_free",
	"lowsaltdiet":    "low_salt",
	"diabeticdiet":   "diabetic",
	"halaldiet":      "halal",
	"kosherdiet":     "kosher",
	"hindudiet":      "hindu",
}

// ParseJSONLD looks for a schema.org Recipe in the ld+json scripts of an
// HTML document. It returns false when the page has none.
func ParseJSONLD(html string) (Recipe, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Recipe{}, false, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		found = findRecipeNode(payload)
		return found == nil
	})
	if found == nil {
		return Recipe{}, false, nil
	}
	return recipeFromNode(found), true, nil
}

func findRecipeNode(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if r := findRecipeNode(item); r != nil {
				return r
			}
		}
	case map[string]any:
		for _, t := range stringList(node["@type"]) {
			if strings.EqualFold(t, "Recipe") {
				return node
			}
		}
		if graph, ok := node["@graph"]; ok {
			return findRecipeNode(graph)
		}
	}
	return nil
}

func recipeFromNode(node map[string]any) Recipe {
	r := Recipe{
		Title:       strings.TrimSpace(firstString(node["name"])),
		Cuisine:     strings.TrimSpace(firstString(node["recipeCuisine"])),
		PrepMinutes: parseISODuration(firstString(node["prepTime"])),
		CookMinutes: parseISODuration(firstString(node["cookTime"])),
		Servings:    int(parseNumber(firstString(node["recipeYield"]))),
	}

	for _, line := range stringList(node["recipeIngredient"]) {
		if strings.TrimSpace(line) != "" {
			r.Ingredients = append(r.Ingredients, ParseIngredientLine(line))
		}
	}
	for _, cat := range stringList(node["recipeCategory"]) {
		if mt := mealType(cat); mt != "" {
			r.MealTypes = appendUnique(r.MealTypes, mt)
		}
	}
	for _, diet := range stringList(node["suitableForDiet"]) {
		key := strings.ToLower(diet[strings.LastIndex(diet, "/")+1:])
		if tag, ok := dietSchemas[key]; ok {
			r.DietaryTags = appendUnique(r.DietaryTags, tag)
		}
	}

	if n, ok := node["nutrition"].(map[string]any); ok {
		r.Nutrition = shared.Macros{
			Calories: parseNumber(firstString(n["calories"])),
			Protein:  parseNumber(firstString(n["proteinContent"])),
			Carbs:    parseNumber(firstString(n["carbohydrateContent"])),
			Fats:     parseNumber(firstString(n["fatContent"])),
		}
	}
	return r
}

// parseISODuration converts an ISO 8601 duration such as PT1H30M to whole minutes.
func parseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	atoi := func(v string) float64 {
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	minutes := atoi(m[1])*24*60 + atoi(m[2])*60 + atoi(m[3]) + atoi(m[4])/60
	return int(math.Round(minutes))
}

// parseNumber reads the first number in strings like "450 kcal" or "12,5 g".
func parseNumber(s string) float64 {
	m := leadingNum.FindString(s)
	if m == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	return v
}

func mealType(s string) string {
	switch w := singular(NormalizeTag(s)); {
	case strings.Contains(w, "breakfast") || strings.Contains(w, "brunch"):
		return "breakfast"
	case strings.Contains(w, "lunch"):
		return "lunch"
	case strings.Contains(w, "dinner") || strings.Contains(w, "main"):
		return "dinner"
	case strings.Contains(w, "snack") || strings.Contains(w, "appetizer"):
		return "snack"
	}
	return ""
}

func firstString(v any) string {
	list := stringList(v)
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// stringList flattens JSON-LD values that may be a string, a number, a list
// or an object with @id/text/name into strings.
func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, stringList(item)...)
		}
		return out
	case map[string]any:
		for _, key := range []string{"text", "name", "@id"} {
			if s, ok := val[key].(string); ok {
				return []string{s}
			}
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// HTMLToText strips scripts, styles and navigation and returns the visible text.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, nav, footer, iframe, .ads, #ads").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, td").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}
