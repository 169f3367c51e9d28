package shopping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository handles persistence of shopping lists.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new shopping list repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save stores the list of a meal plan, replacing any previous version.
func (r *Repository) Save(ctx context.Context, list *ShoppingList) (int64, error) {
	itemsJSON, err := json.Marshal(list.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal shopping list items: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO shopping_lists (user_id, meal_plan_id, items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(meal_plan_id) DO UPDATE SET
			user_id = excluded.user_id,
			items = excluded.items,
			updated_at = excluded.updated_at
		RETURNING id`,
		list.UserID, list.MealPlanID, string(itemsJSON), now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save shopping list: %w", err)
	}
	return id, nil
}

// GetByMealPlanID retrieves a shopping list by meal plan ID. It returns
// nil, nil when the plan has no list yet.
func (r *Repository) GetByMealPlanID(ctx context.Context, mealPlanID string) (*ShoppingList, error) {
	var (
		list  ShoppingList
		items string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, meal_plan_id, items, created_at, updated_at
		FROM shopping_lists WHERE meal_plan_id = ?`,
		mealPlanID,
	).Scan(&list.ID, &list.UserID, &list.MealPlanID, &items, &list.CreatedAt, &list.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shopping list by meal plan ID: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &list.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shopping list items: %w", err)
	}
	return &list, nil
}

// SetPurchased flips the purchased flag of one line of a persisted list.
func (r *Repository) SetPurchased(ctx context.Context, mealPlanID, name, unit string, purchased bool) (*ShoppingList, error) {
	list, err := r.GetByMealPlanID(ctx, mealPlanID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("%w for meal plan %s", ErrListNotFound, mealPlanID)
	}

	key := lineKey(name, unit)
	found := false
	for i := range list.Items {
		if list.Items[i].Key() == key {
			list.Items[i].Purchased = purchased
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s (%s)", ErrItemNotFound, name, unit)
	}

	if _, err := r.Save(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteByMealPlanID deletes a shopping list by meal plan ID.
func (r *Repository) DeleteByMealPlanID(ctx context.Context, mealPlanID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shopping_lists WHERE meal_plan_id = ?`, mealPlanID); err != nil {
		return fmt.Errorf("failed to delete shopping list for meal plan %s: %w", mealPlanID, err)
	}
	return nil
}
