package shopping

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrListNotFound is returned when a plan has no persisted grocery list.
	ErrListNotFound = errors.New("grocery list not found")
	// ErrItemNotFound is returned when a grocery line is not on the list.
	ErrItemNotFound = errors.New("grocery item not found")
)

// DefaultCategory is used when no contributing recipe declares one.
const DefaultCategory = "other"

// GroceryItem is one merged line of a grocery list.
type GroceryItem struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	Category  string  `json:"category"`
	Purchased bool    `json:"purchased"`
}

// Key identifies the line for merging: the trimmed name in any case and the
// trimmed unit exactly as written. T and t are different units.
func (i GroceryItem) Key() string {
	return lineKey(i.Name, i.Unit)
}

func lineKey(name, unit string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.TrimSpace(unit)
}

// ShoppingList is the persisted grocery list of a meal plan.
type ShoppingList struct {
	ID         int64         `json:"id"`
	UserID     string        `json:"user_id"`
	MealPlanID string        `json:"meal_plan_id"`
	Items      []GroceryItem `json:"items"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
