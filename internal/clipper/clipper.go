package clipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mealplan-engine/internal/recipe"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const maxPageBytes = 5 << 20

// ErrInvalidURL is returned for anything that is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid recipe URL")

// Saver stores clipped recipes.
type Saver interface {
	Save(ctx context.Context, rec recipe.Recipe) error
}

// Clipper imports single recipe pages from the web into the catalog.
type Clipper struct {
	extractor  *recipe.Extractor
	saver      Saver
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClipper creates a new Clipper instance.
func NewClipper(extractor *recipe.Extractor, saver Saver, logger *zap.Logger) *Clipper {
	return &Clipper{
		extractor:  extractor,
		saver:      saver,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// ClipURL fetches the page, extracts the recipe and saves it to the catalog.
// Clipping the same URL twice overwrites the earlier entry.
func (c *Clipper) ClipURL(ctx context.Context, rawURL string) (recipe.ExtractorResult, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return recipe.ExtractorResult{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	page, err := c.fetch(ctx, u.String())
	if err != nil {
		return recipe.ExtractorResult{}, fmt.Errorf("failed to fetch content: %w", err)
	}

	result, err := c.extractor.Extract(ctx, recipe.PostData{
		ID:        RecipeID(u),
		Title:     pageTitle(page),
		HTML:      page,
		UpdatedAt: c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return result, fmt.Errorf("failed to extract recipe from %s: %w", u, err)
	}

	if err := c.saver.Save(ctx, result.Recipe); err != nil {
		return result, fmt.Errorf("failed to save clipped recipe: %w", err)
	}

	c.logger.Info("recipe clipped",
		zap.String("url", u.String()),
		zap.String("recipe_id", result.Recipe.ID),
		zap.String("source", result.Source),
	)
	return result, nil
}

func (c *Clipper) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "mealplan-engine/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RecipeID derives a stable catalog id from a page URL, e.g.
// https://example.com/recipes/dal/ becomes clip-example-com-recipes-dal.
func RecipeID(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var b strings.Builder
	b.WriteString("clip")
	dash := true
	for _, r := range host + "/" + strings.ToLower(u.Path) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if dash {
				b.WriteByte('-')
				dash = false
			}
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

func pageTitle(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
