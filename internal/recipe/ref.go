package recipe

import (
	"encoding/json"
	"fmt"
)

// Ref points at a recipe from a plan. It is either resolved, carrying a
// snapshot of the recipe, or unresolved, carrying only the id.
type Ref struct {
	id     string
	recipe *Recipe
}

// Resolved wraps a recipe snapshot.
func Resolved(r Recipe) Ref {
	snapshot := r
	return Ref{id: r.ID, recipe: &snapshot}
}

// Unresolved references a recipe by id only.
func Unresolved(id string) Ref {
	return Ref{id: id}
}

// ID returns the referenced recipe id.
func (r Ref) ID() string {
	return r.id
}

// IsResolved reports whether the recipe data is present.
func (r Ref) IsResolved() bool {
	return r.recipe != nil
}

// Recipe returns the snapshot and true when resolved.
func (r Ref) Recipe() (Recipe, bool) {
	if r.recipe == nil {
		return Recipe{}, false
	}
	return *r.recipe, true
}

// MustRecipe returns the snapshot or ErrUnresolvedRecipe.
func (r Ref) MustRecipe() (Recipe, error) {
	rec, ok := r.Recipe()
	if !ok {
		return Recipe{}, fmt.Errorf("%w: %s", ErrUnresolvedRecipe, r.id)
	}
	return rec, nil
}

type refJSON struct {
	ID     string  `json:"id"`
	Recipe *Recipe `json:"recipe,omitempty"`
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(refJSON{ID: r.id, Recipe: r.recipe})
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw refJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID == "" && raw.Recipe != nil {
		raw.ID = raw.Recipe.ID
	}
	if raw.ID == "" {
		return fmt.Errorf("recipe ref without id")
	}
	r.id = raw.ID
	r.recipe = raw.Recipe
	return nil
}
