package recipe

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"mealplan-engine/internal/llm"
	"mealplan-engine/internal/shared"

	"go.uber.org/zap"
)

//go:embed extractor_prompt.md
var extractorPrompt string

var extractorTemplate = template.Must(template.New("extractor").Parse(extractorPrompt))

// ErrIncompleteRecipe is returned when extraction yields a recipe the planner cannot use.
var ErrIncompleteRecipe = errors.New("incomplete recipe")

const (
	SourceJSONLD = "json-ld"
	SourceLLM    = "llm"
)

// PostData is the raw input of an extraction.
type PostData struct {
	ID        string
	Title     string
	HTML      string
	UpdatedAt string
	Tags      []string
}

// ExtractorResult is a parsed recipe plus how it was obtained.
type ExtractorResult struct {
	Recipe Recipe
	Source string
	Meta   shared.ExecutionMeta
}

// Extractor turns recipe posts into catalog entries. Structured schema.org
// data is used when present; otherwise the post text goes to the LLM.
type Extractor struct {
	textGen llm.TextGenerator
	logger  *zap.Logger
}

// NewExtractor creates an Extractor. textGen may be nil, in which case only
// posts carrying JSON-LD can be extracted.
func NewExtractor(textGen llm.TextGenerator, logger *zap.Logger) *Extractor {
	return &Extractor{textGen: textGen, logger: logger}
}

// Extract parses one post.
func (e *Extractor) Extract(ctx context.Context, data PostData) (ExtractorResult, error) {
	start := time.Now()

	rec, ok, err := ParseJSONLD(data.HTML)
	if err != nil {
		return ExtractorResult{}, err
	}
	result := ExtractorResult{Recipe: rec, Source: SourceJSONLD}
	if !ok {
		if e.textGen == nil {
			return ExtractorResult{}, fmt.Errorf("%w: post %s has no structured data and no LLM is configured", ErrIncompleteRecipe, data.ID)
		}
		result, err = e.runLLM(ctx, data)
		if err != nil {
			return result, err
		}
	}

	finish(&result.Recipe, data)
	result.Meta.Operation = "extract_recipe"
	result.Meta.Latency = time.Since(start)

	if err := validateExtracted(result.Recipe); err != nil {
		return result, err
	}
	e.logger.Debug("recipe extracted",
		zap.String("recipe_id", result.Recipe.ID),
		zap.String("source", result.Source),
		zap.Int("ingredients", len(result.Recipe.Ingredients)),
	)
	return result, nil
}

func (e *Extractor) runLLM(ctx context.Context, data PostData) (ExtractorResult, error) {
	text, err := HTMLToText(data.HTML)
	if err != nil {
		return ExtractorResult{}, err
	}

	var buf bytes.Buffer
	err = extractorTemplate.Execute(&buf, struct {
		Title string
		Tags  []string
		Text  string
	}{data.Title, data.Tags, text})
	if err != nil {
		return ExtractorResult{}, fmt.Errorf("failed to build extractor prompt: %w", err)
	}

	llmResp, err := e.textGen.GenerateContent(ctx, buf.String())
	if err != nil {
		return ExtractorResult{}, fmt.Errorf("failed to get LLM response: %w", err)
	}
	result := ExtractorResult{Source: SourceLLM, Meta: shared.ExecutionMeta{Usage: llmResp.Usage}}

	content := strings.TrimSpace(llmResp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")
	if err := json.Unmarshal([]byte(content), &result.Recipe); err != nil {
		return result, fmt.Errorf("failed to unmarshal LLM response: %w", err)
	}
	return result, nil
}

// finish applies the post identity and tags and fills ingredient categories.
func finish(r *Recipe, data PostData) {
	r.ID = data.ID
	r.UpdatedAt = data.UpdatedAt
	if r.Title == "" {
		r.Title = data.Title
	}
	for _, tag := range data.Tags {
		if mt := mealType(tag); mt != "" {
			r.MealTypes = appendUnique(r.MealTypes, mt)
			continue
		}
		if t := NormalizeTag(tag); t != "" && t != "recipe" && t != "recipes" {
			r.DietaryTags = appendUnique(r.DietaryTags, t)
		}
	}
	for i := range r.Ingredients {
		if r.Ingredients[i].Category == "" {
			r.Ingredients[i].Category = GuessCategory(r.Ingredients[i].Name)
		}
	}
	if r.Servings == 0 {
		r.Servings = 1
	}
}

func validateExtracted(r Recipe) error {
	switch {
	case r.Title == "":
		return fmt.Errorf("%w: %s has no title", ErrIncompleteRecipe, r.ID)
	case len(r.Ingredients) == 0:
		return fmt.Errorf("%w: %s has no ingredients", ErrIncompleteRecipe, r.ID)
	case r.Nutrition.Calories <= 0:
		return fmt.Errorf("%w: %s has no calorie information", ErrIncompleteRecipe, r.ID)
	}
	return nil
}
