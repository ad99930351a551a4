package pagination

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds walker configuration
type Config struct {
	// MaxPages bounds the number of pages fetched per walk (0 = unbounded)
	MaxPages int
}

// DefaultConfig returns the default walker configuration
func DefaultConfig() Config {
	return Config{
		MaxPages: 100,
	}
}

// PageFetcher is the interface the API client implements for single-page fetching
type PageFetcher interface {
	// FetchPage fetches a single page and returns the raw response member
	// together with the total page count reported by the server
	FetchPage(ctx context.Context, endpoint string, params url.Values, page int) (data []byte, totalPages int, err error)
}

// Page is the raw response member of one fetched page
type Page struct {
	Number int
	Data   []byte
}

// Walker fetches every page of a paginated endpoint in order
type Walker struct {
	fetcher PageFetcher
	config  Config
}

// NewWalker creates a new walker
func NewWalker(fetcher PageFetcher, config Config) *Walker {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Walker{
		fetcher: fetcher,
		config:  config,
	}
}

// Walk fetches all pages of endpoint. On a failed page it returns the pages
// fetched before the failure together with the error.
func (w *Walker) Walk(ctx context.Context, endpoint string, params url.Values) ([]Page, error) {
	start := time.Now()

	data, totalPages, err := w.fetcher.FetchPage(ctx, endpoint, params, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	pages := []Page{{Number: 1, Data: data}}

	if totalPages < 1 {
		totalPages = 1
	}
	if w.config.MaxPages > 0 && totalPages > w.config.MaxPages {
		log.Warn().
			Str("endpoint", endpoint).
			Int("total_pages", totalPages).
			Int("max_pages", w.config.MaxPages).
			Msg("Page count exceeds limit, truncating walk")
		totalPages = w.config.MaxPages
	}

	for page := 2; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return pages, fmt.Errorf("walk cancelled (partial data: %d/%d pages): %w", len(pages), totalPages, err)
		}

		data, _, err := w.fetcher.FetchPage(ctx, endpoint, params, page)
		if err != nil {
			log.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Int("page", page).
				Msg("Page fetch failed")
			return pages, fmt.Errorf("page %d (partial data: %d/%d pages): %w", page, len(pages), totalPages, err)
		}

		pages = append(pages, Page{Number: page, Data: data})
	}

	log.Debug().
		Str("endpoint", endpoint).
		Int("pages", len(pages)).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return pages, nil
}
