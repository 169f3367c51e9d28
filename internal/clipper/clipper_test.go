package clipper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"mealplan-engine/internal/llm"
	"mealplan-engine/internal/recipe"
	"mealplan-engine/internal/shared"

	"go.uber.org/zap"
)

// --- Mocks ---
type MockSaver struct {
	Saved       []recipe.Recipe
	ShouldError bool
}

func (m *MockSaver) Save(_ context.Context, rec recipe.Recipe) error {
	if m.ShouldError {
		return errors.New("mock error")
	}
	m.Saved = append(m.Saved, rec)
	return nil
}

type MockTextGenerator struct {
	Response string
	Prompt   string
}

func (m *MockTextGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	m.Prompt = prompt
	return llm.ContentResponse{Content: m.Response, Usage: shared.TokenUsage{Model: "mock"}}, nil
}

func newTestClipper(gen llm.TextGenerator, saver Saver) *Clipper {
	c := NewClipper(recipe.NewExtractor(gen, zap.NewNop()), saver, zap.NewNop())
	c.now = func() time.Time { return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) }
	return c
}

// --- Tests ---

func TestClipURL_JSONLD(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Shakshuka | Blog</title>
		<meta property="og:title" content="Shakshuka">
		<script type="application/ld+json">{"@type":"Recipe","name":"Shakshuka","recipeCategory":"Breakfast",
		"recipeIngredient":["4 eggs","400 g chopped tomatoes"],"nutrition":{"calories":"380 kcal"}}</script>
		</head><body></body></html>`))
	}))
	defer ts.Close()

	saver := &MockSaver{}
	gen := &MockTextGenerator{}
	c := newTestClipper(gen, saver)

	result, err := c.ClipURL(context.Background(), ts.URL+"/recipes/shakshuka/")
	if err != nil {
		t.Fatalf("ClipURL failed: %v", err)
	}
	if result.Source != recipe.SourceJSONLD {
		t.Errorf("Expected source %q, got %q", recipe.SourceJSONLD, result.Source)
	}
	if gen.Prompt != "" {
		t.Error("Expected no LLM call for a page with JSON-LD")
	}
	if len(saver.Saved) != 1 {
		t.Fatalf("Expected 1 saved recipe, got %d", len(saver.Saved))
	}
	saved := saver.Saved[0]
	if !strings.HasPrefix(saved.ID, "clip-127-0-0-1-") || !strings.HasSuffix(saved.ID, "-recipes-shakshuka") {
		t.Errorf("Unexpected recipe id %q", saved.ID)
	}
	if saved.UpdatedAt != "2025-03-09T12:00:00Z" {
		t.Errorf("Expected clip time as updated_at, got %q", saved.UpdatedAt)
	}
	if saved.Ingredients[1].Name != "chopped tomatoes" || saved.Ingredients[1].Unit != "g" {
		t.Errorf("Unexpected ingredient %+v", saved.Ingredients[1])
	}
}

func TestClipURL_LLMFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Mock Pie</title><script>alert('bad');</script></head>
		<body><h1>Mock Pie</h1><div class="ads">Buy stuff!</div><p>Apples and pastry.</p></body></html>`))
	}))
	defer ts.Close()

	saver := &MockSaver{}
	gen := &MockTextGenerator{Response: `{"title": "Mock Pie", "meal_types": ["snack"],
		"ingredients": [{"name": "apple", "quantity": 3}], "nutrition": {"calories": 320}}`}
	c := newTestClipper(gen, saver)

	result, err := c.ClipURL(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("ClipURL failed: %v", err)
	}
	if result.Recipe.Title != "Mock Pie" {
		t.Errorf("Expected title 'Mock Pie', got '%s'", result.Recipe.Title)
	}
	if strings.Contains(gen.Prompt, "alert('bad')") || strings.Contains(gen.Prompt, "Buy stuff!") {
		t.Error("Expected scripts and ads to be stripped from the prompt")
	}
	if !strings.Contains(gen.Prompt, "Apples and pastry.") {
		t.Error("Expected body content in the prompt")
	}
	if result.Recipe.Ingredients[0].Category != "produce" {
		t.Errorf("Expected guessed category 'produce', got %q", result.Recipe.Ingredients[0].Category)
	}
}

func TestClipURL_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Nothing structured</body></html>"))
	}))
	defer plain.Close()

	ctx := context.Background()

	if _, err := newTestClipper(nil, &MockSaver{}).ClipURL(ctx, "ftp://example.com/x"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Expected ErrInvalidURL, got %v", err)
	}
	if _, err := newTestClipper(nil, &MockSaver{}).ClipURL(ctx, notFound.URL); err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("Expected status error, got %v", err)
	}
	if _, err := newTestClipper(nil, &MockSaver{}).ClipURL(ctx, plain.URL); !errors.Is(err, recipe.ErrIncompleteRecipe) {
		t.Errorf("Expected ErrIncompleteRecipe without an LLM, got %v", err)
	}

	jsonLD := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script type="application/ld+json">{"@type":"Recipe","name":"Tea","recipeIngredient":["1 tea bag"],"nutrition":{"calories":"2"}}</script>`))
	}))
	defer jsonLD.Close()
	if _, err := newTestClipper(nil, &MockSaver{ShouldError: true}).ClipURL(ctx, jsonLD.URL); err == nil || !strings.Contains(err.Error(), "failed to save") {
		t.Errorf("Expected save error, got %v", err)
	}
}

func TestRecipeID(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/recipes/Lentil-Dal/": "clip-example-com-recipes-lentil-dal",
		"http://blog.test/2024/05/pie?ref=x":          "clip-blog-test-2024-05-pie",
		"https://example.com":                         "clip-example-com",
	}
	for raw, want := range cases {
		u, _ := url.Parse(raw)
		if got := RecipeID(u); got != want {
			t.Errorf("RecipeID(%q) = %q, want %q", raw, got, want)
		}
	}
}
