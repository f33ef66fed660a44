package service

import (
	"strconv"
	"strings"

	"blogpage/internal/models"
)

const (
	// PostsPerPage is the page size of every paginated post listing.
	PostsPerPage = 5
	// LatestPostsCount is the length of the latest-posts digest.
	LatestPostsCount = 4

	lastPage = "last"
)

// Page is one window of a newest-first listing.
type Page[T any] struct {
	Items    []T
	Number   int
	PerPage  int
	Total    int64
	NumPages int
}

func (p *Page[T]) HasPrevious() bool { return p.Number > 1 }
func (p *Page[T]) HasNext() bool     { return p.Number < p.NumPages }
func (p *Page[T]) HasOtherPages() bool {
	return p.HasPrevious() || p.HasNext()
}
func (p *Page[T]) PreviousNumber() int { return p.Number - 1 }
func (p *Page[T]) NextNumber() int     { return p.Number + 1 }

// numPages always reports at least one page so an empty listing still renders page 1.
func numPages(total int64, perPage int) int {
	if total <= 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// resolvePage turns the raw ?page= value into a page number. Empty means the
// first page and "last" the final one; anything non-numeric or out of range is
// a NotFound.
func resolvePage(raw string, total int64, perPage int) (int, error) {
	pages := numPages(total, perPage)

	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return 1, nil
	case lastPage:
		return pages, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > pages {
		return 0, models.NewNotFoundError("Page", raw)
	}
	return n, nil
}

func newPage[T any](items []T, number, perPage int, total int64) *Page[T] {
	return &Page[T]{
		Items:    items,
		Number:   number,
		PerPage:  perPage,
		Total:    total,
		NumPages: numPages(total, perPage),
	}
}
