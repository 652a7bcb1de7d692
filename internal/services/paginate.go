package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dive/internal/settle"
	"github.com/desertthunder/dive/internal/shared"
)

// MaxPageSize is the largest page the API serves.
const MaxPageSize = 50

// Requester issues JSON requests against the API.
type Requester interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Page is one page of a paginated collection.
type Page[R any] struct {
	Items  []R     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// FetchOptions tunes [FetchAll].
type FetchOptions struct {
	PageSize    int
	Concurrency int
	// OnPage is called after each settled page with the pages settled so far.
	OnPage func(done, total int)
	Logger *log.Logger
}

// PageCount is the number of pages of size holding total items.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// FetchAll reads every page of the collection at path and maps the raw items with mapper.
//
// Items of the first page come first; later pages follow in offset order. A first
// page without a next link ends the collection whatever its total says.
func FetchAll[R, T any](ctx context.Context, api Requester, path string, opts FetchOptions, mapper func([]R) []T) ([]T, error) {
	size := opts.PageSize
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var first Page[R]
	if err := api.Get(ctx, pageURL(path, size, 0), &first); err != nil {
		return nil, err
	}
	items := mapper(first.Items)

	pages := PageCount(first.Total, size)
	if first.Next == nil {
		pages = 1
	}
	if opts.OnPage != nil {
		opts.OnPage(1, pages)
	}
	if pages <= 1 {
		return items, nil
	}

	ops := make([]settle.Op[T], 0, pages-1)
	for offset := size; offset < first.Total; offset += size {
		ops = append(ops, func(ctx context.Context) ([]T, error) {
			var page Page[R]
			if err := api.Get(ctx, pageURL(path, size, offset), &page); err != nil {
				return nil, fmt.Errorf("page at offset %d: %w", offset, err)
			}
			return mapper(page.Items), nil
		})
	}

	observer := func(done, _ int, err error) {
		if err != nil {
			logger.Warn("dropping page", "path", path, "err", err)
		}
		if opts.OnPage != nil {
			opts.OnPage(done+1, pages)
		}
	}

	batch := settle.All(ctx, ops, settle.WithLimit(opts.Concurrency), settle.WithObserver(observer))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := batch.Fatal(shared.IsAuthError); err != nil {
		return nil, err
	}

	logger.Debug("fetched collection", "path", path, "total", first.Total, "pages", pages, "dropped", batch.Failed)
	return append(items, batch.Items...), nil
}

func pageURL(path string, limit, offset int) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%slimit=%d&offset=%d", path, sep, limit, offset)
}
