package recipe

import (
	"strconv"
	"strings"
	"unicode"
)

var unicodeFractions = map[rune]float64{
	'¼': 0.25, '½': 0.5, '¾': 0.75,
	'⅓': 1.0 / 3, '⅔': 2.0 / 3,
	'⅕': 0.2, '⅖': 0.4, '⅗': 0.6, '⅘': 0.8,
	'⅙': 1.0 / 6, '⅚': 5.0 / 6,
	'⅛': 0.125, '⅜': 0.375, '⅝': 0.625, '⅞': 0.875,
}

// ParseIngredientLine splits a free-text ingredient line such as
// "1 ½ cups plain flour, sifted" or "200g rice" into quantity, unit and
// name. Lines without a leading amount get quantity 0.
func ParseIngredientLine(line string) Ingredient {
	line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
	fields := strings.Fields(expandUnicodeFractions(line))

	var qty float64
	i := 0
	for i < len(fields) {
		v, rest, ok := parseAmount(fields[i])
		if !ok {
			break
		}
		qty += v
		i++
		if rest != "" {
			// "200g" or "2-3": the suffix is a unit or the end of a range.
			if isUnitWord(rest) {
				fields = append(fields[:i], append([]string{rest}, fields[i:]...)...)
			}
			break
		}
	}

	var unit string
	if i < len(fields) {
		if i+1 < len(fields) && isUnitWord(fields[i]+" "+fields[i+1]) {
			unit = CanonicalUnit(fields[i] + " " + fields[i+1])
			i += 2
		} else if word := strings.TrimSuffix(fields[i], "."); qty > 0 && isUnitWord(word) {
			unit = CanonicalUnit(word)
			i++
		}
	}

	name := strings.Join(fields[i:], " ")
	name = strings.TrimPrefix(name, "of ")
	if idx := strings.IndexAny(name, ",("); idx > 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = line
	}

	return Ingredient{
		Name:     name,
		Quantity: qty,
		Unit:     unit,
		Category: GuessCategory(name),
	}
}

// expandUnicodeFractions turns "1½" into the tokens "1 0.5".
func expandUnicodeFractions(s string) string {
	var b strings.Builder
	for _, r := range s {
		if v, ok := unicodeFractions[r]; ok {
			b.WriteString(" ")
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
			b.WriteString(" ")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseAmount reads a leading number, decimal or a/b fraction from tok and
// returns the unparsed suffix.
func parseAmount(tok string) (float64, string, bool) {
	end := 0
	for end < len(tok) {
		c := rune(tok[end])
		if unicode.IsDigit(c) || c == '.' || c == ',' || c == '/' {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, "", false
	}
	num, rest := strings.TrimRight(tok[:end], "./,"), tok[end:]
	rest = strings.TrimPrefix(rest, "-")
	if rest != "" && unicode.IsDigit(rune(rest[0])) {
		// Upper bound of a range; the lower bound is used.
		_, rest, _ = parseAmount(rest)
	}

	if a, b, ok := strings.Cut(num, "/"); ok {
		n, err1 := strconv.ParseFloat(a, 64)
		d, err2 := strconv.ParseFloat(b, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, "", false
		}
		return n / d, rest, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", "."), 64)
	if err != nil {
		return 0, "", false
	}
	return v, rest, true
}
