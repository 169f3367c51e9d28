package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mealplan-engine/internal/recipe"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no file exists for a recipe id.
var ErrNotFound = errors.New("recipe file not found")

var extensions = []string{".json", ".yaml", ".yml"}

// RecipeStore is a file catalog: one recipe per JSON or YAML file.
type RecipeStore struct {
	basePath string
}

// NewRecipeStore creates a new RecipeStore and ensures the base directory exists.
func NewRecipeStore(basePath string) (*RecipeStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &RecipeStore{basePath: basePath}, nil
}

func (s *RecipeStore) path(recipeID, ext string) (string, error) {
	if recipeID == "" || strings.ContainsAny(recipeID, `/\`) || recipeID == "." || recipeID == ".." {
		return "", fmt.Errorf("invalid recipe id %q", recipeID)
	}
	return filepath.Join(s.basePath, recipeID+ext), nil
}

// Save writes the recipe as <id>.json, replacing YAML copies of the same id.
func (s *RecipeStore) Save(rec recipe.Recipe) error {
	filePath, err := s.path(rec.ID, ".json")
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write recipe file: %w", err)
	}

	for _, ext := range extensions[1:] {
		stale, _ := s.path(rec.ID, ext)
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale file %s: %w", stale, err)
		}
	}
	return nil
}

// Load reads a recipe by id from whichever supported file exists.
func (s *RecipeStore) Load(recipeID string) (*recipe.Recipe, error) {
	for _, ext := range extensions {
		filePath, err := s.path(recipeID, ext)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(filePath); err != nil {
			continue
		}
		return readRecipe(filePath)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, recipeID)
}

// Exists checks if a file exists for the recipe id.
func (s *RecipeStore) Exists(recipeID string) bool {
	for _, ext := range extensions {
		filePath, err := s.path(recipeID, ext)
		if err != nil {
			return false
		}
		if _, err := os.Stat(filePath); err == nil {
			return true
		}
	}
	return false
}

// Delete removes every file of the recipe id.
func (s *RecipeStore) Delete(recipeID string) error {
	for _, ext := range extensions {
		filePath, err := s.path(recipeID, ext)
		if err != nil {
			return err
		}
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove recipe file %s: %w", filePath, err)
		}
	}
	return nil
}

// ListAll reads every recipe file, sorted by id. A file without an id takes
// its id from the file name; a malformed file fails the whole listing.
func (s *RecipeStore) ListAll() ([]recipe.Recipe, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	seen := make(map[string]bool)
	var recipes []recipe.Recipe
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !supported(ext) {
			continue
		}
		rec, err := readRecipe(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return nil, err
		}
		if rec.ID == "" {
			rec.ID = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("duplicate recipe id %q in %s", rec.ID, entry.Name())
		}
		seen[rec.ID] = true
		recipes = append(recipes, *rec)
	}

	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })
	return recipes, nil
}

// FindEligible implements recipe.Catalog over the stored files.
func (s *RecipeStore) FindEligible(ctx context.Context, q recipe.Query) ([]recipe.Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	return recipe.Filter(all, q), nil
}

func supported(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func readRecipe(filePath string) (*recipe.Recipe, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var rec recipe.Recipe
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rec)
	default:
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe %s: %w", filepath.Base(filePath), err)
	}
	return &rec, nil
}
