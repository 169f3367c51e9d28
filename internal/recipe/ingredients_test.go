package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIngredientLine(t *testing.T) {
	tests := []struct {
		line string
		want Ingredient
	}{
		{"2 cups plain flour, sifted", Ingredient{Name: "plain flour", Quantity: 2, Unit: "cup", Category: "pantry"}},
		{"1 1/2 tbsp olive oil", Ingredient{Name: "olive oil", Quantity: 1.5, Unit: "tbsp", Category: "pantry"}},
		{"1½ cups milk", Ingredient{Name: "milk", Quantity: 1.5, Unit: "cup", Category: "dairy"}},
		{"½ tsp salt", Ingredient{Name: "salt", Quantity: 0.5, Unit: "tsp", Category: "spices"}},
		{"200g basmati rice", Ingredient{Name: "basmati rice", Quantity: 200, Unit: "g", Category: "pantry"}},
		{"3 eggs", Ingredient{Name: "eggs", Quantity: 3, Category: "dairy"}},
		{"2-3 tomatoes (ripe)", Ingredient{Name: "tomatoes", Quantity: 2, Category: "produce"}},
		{"4 garlic cloves", Ingredient{Name: "garlic cloves", Quantity: 4, Category: "produce"}},
		{"2 cloves garlic", Ingredient{Name: "garlic", Quantity: 2, Unit: "clove", Category: "produce"}},
		{"1,5 kg chicken thighs", Ingredient{Name: "chicken thighs", Quantity: 1.5, Unit: "kg", Category: "meat"}},
		{"- 1 cup of frozen peas", Ingredient{Name: "frozen peas", Quantity: 1, Unit: "cup", Category: "frozen"}},
		{"Salt to taste", Ingredient{Name: "Salt to taste", Category: "spices"}},
		{"1 bell pepper", Ingredient{Name: "bell pepper", Quantity: 1, Category: "produce"}},
		{"2 tbsp peanut butter", Ingredient{Name: "peanut butter", Quantity: 2, Unit: "tbsp", Category: "pantry"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := ParseIngredientLine(tt.line)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.InDelta(t, tt.want.Quantity, got.Quantity, 0.0001)
			assert.Equal(t, tt.want.Unit, got.Unit)
			assert.Equal(t, tt.want.Category, got.Category)
		})
	}
}

func TestGuessCategory(t *testing.T) {
	assert.Equal(t, "seafood", GuessCategory("Salmon fillets"))
	assert.Equal(t, "pantry", GuessCategory("coconut milk"))
	assert.Equal(t, "spices", GuessCategory("black pepper"))
	assert.Equal(t, "", GuessCategory("unobtainium"))
}
