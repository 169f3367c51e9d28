package nutrition

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LogRepository persists ad hoc meal logs.
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(d *sql.DB) *LogRepository {
	return &LogRepository{db: d}
}

// Add stores a logged meal and returns its id.
func (r *LogRepository) Add(ctx context.Context, rec MealRecord) (int64, error) {
	if rec.Date.IsZero() {
		return 0, fmt.Errorf("%w: meal date is required", ErrInvalidDateRange)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO meal_logs (user_id, eaten_on, recipe_id, title, calories, protein, carbs, fats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, DateKey(rec.Date), rec.RecipeID, rec.Title,
		rec.Nutrition.Calories, rec.Nutrition.Protein, rec.Nutrition.Carbs, rec.Nutrition.Fats,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert meal log: %w", err)
	}
	return res.LastInsertId()
}

// ListBetween returns a user's logged meals between start and end inclusive.
func (r *LogRepository) ListBetween(ctx context.Context, userID string, start, end time.Time) ([]MealRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, eaten_on, recipe_id, title, calories, protein, carbs, fats
		FROM meal_logs
		WHERE user_id = ? AND eaten_on BETWEEN ? AND ?
		ORDER BY eaten_on, id`,
		userID, DateKey(start), DateKey(end),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal logs for user %s: %w", userID, err)
	}
	defer rows.Close()

	var records []MealRecord
	for rows.Next() {
		var (
			rec     MealRecord
			eatenOn string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &eatenOn, &rec.RecipeID, &rec.Title,
			&rec.Nutrition.Calories, &rec.Nutrition.Protein, &rec.Nutrition.Carbs, &rec.Nutrition.Fats); err != nil {
			return nil, fmt.Errorf("failed to scan meal log: %w", err)
		}
		rec.Date, err = time.Parse(DateLayout, eatenOn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse meal log date %q: %w", eatenOn, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes a logged meal.
func (r *LogRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM meal_logs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete meal log %d: %w", id, err)
	}
	return nil
}
