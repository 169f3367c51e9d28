package recipe

import "strings"

// Dimension groups units that can be converted into each other.
type Dimension string

const (
	DimensionMass   Dimension = "mass"
	DimensionVolume Dimension = "volume"
)

// Unit is a known measuring unit. ToBase converts to grams or millilitres.
type Unit struct {
	Symbol    string
	Dimension Dimension
	ToBase    float64
}

var units = map[string]Unit{
	"mg": {"mg", DimensionMass, 0.001},
	"g":  {"g", DimensionMass, 1},
	"kg": {"kg", DimensionMass, 1000},
	"oz": {"oz", DimensionMass, 28.349523125},
	"lb": {"lb", DimensionMass, 453.59237},

	"ml":    {"ml", DimensionVolume, 1},
	"l":     {"l", DimensionVolume, 1000},
	"tsp":   {"tsp", DimensionVolume, 4.92892159375},
	"tbsp":  {"tbsp", DimensionVolume, 14.78676478125},
	"cup":   {"cup", DimensionVolume, 236.5882365},
	"fl-oz": {"fl-oz", DimensionVolume, 29.5735295625},
}

var unitAliases = map[string]string{
	"gram": "g", "grams": "g", "gr": "g",
	"milligram": "mg", "milligrams": "mg",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"ounce": "oz", "ounces": "oz",
	"pound": "lb", "pounds": "lb", "lbs": "lb",
	"milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"teaspoon": "tsp", "teaspoons": "tsp", "tsps": "tsp",
	"tablespoon": "tbsp", "tablespoons": "tbsp", "tbsps": "tbsp", "tbs": "tbsp",
	"cups": "cup",
	"fl oz": "fl-oz", "floz": "fl-oz", "fluid ounce": "fl-oz", "fluid ounces": "fl-oz",
}

// caseSensitiveAliases are shorthands whose case carries meaning: T is a
// tablespoon, t a teaspoon. They are matched before any lower-casing.
var caseSensitiveAliases = map[string]string{
	"T": "tbsp", "Tb": "tbsp", "Tbs": "tbsp",
	"t": "tsp",
}

// countUnits are kept verbatim (singular) but never converted.
var countUnits = map[string]string{
	"clove": "clove", "cloves": "clove",
	"can": "can", "cans": "can",
	"slice": "slice", "slices": "slice",
	"piece": "piece", "pieces": "piece",
	"pinch": "pinch", "pinches": "pinch",
	"bunch": "bunch", "bunches": "bunch",
	"handful": "handful", "handfuls": "handful",
	"stick": "stick", "sticks": "stick",
}

// LookupUnit resolves a spelling to a convertible unit.
func LookupUnit(s string) (Unit, bool) {
	s = strings.TrimSpace(s)
	if alias, ok := caseSensitiveAliases[s]; ok {
		return units[alias], true
	}
	key := strings.ToLower(s)
	if alias, ok := unitAliases[key]; ok {
		key = alias
	}
	u, ok := units[key]
	return u, ok
}

// CanonicalUnit returns the canonical spelling of a unit, or the trimmed
// input as written when the unit is unknown.
func CanonicalUnit(s string) string {
	s = strings.TrimSpace(s)
	if u, ok := LookupUnit(s); ok {
		return u.Symbol
	}
	if c, ok := countUnits[strings.ToLower(s)]; ok {
		return c
	}
	return s
}

func isUnitWord(s string) bool {
	if _, ok := LookupUnit(s); ok {
		return true
	}
	_, ok := countUnits[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
