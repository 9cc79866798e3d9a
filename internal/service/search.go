package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
)

// PageSize is the number of items requested per fetch.
const PageSize = 20

// loadAhead is how close to the end of the list a visible row must be to
// trigger the next page.
const loadAhead = 3

// Searcher is the remote catalog search.
type Searcher interface {
	Search(ctx context.Context, query string, pageSize, start int, sort string) (model.Page, error)
}

// Search owns the query, sort option, cursor, accumulated results and load
// state of one search session.
//
// Fetches run without mu held. Every reset bumps gen and cancels the fetch in
// flight, so a late result from a previous query is dropped.
type Search struct {
	client Searcher
	log    *zap.Logger

	mu     sync.Mutex
	query  string
	sort   model.SortOption
	cursor int
	items  []model.CatalogItem
	state  model.LoadState
	errMsg string

	gen         uint64
	cancelFetch context.CancelFunc
}

// NewSearch builds an idle Search ordered by relevance.
func NewSearch(client Searcher, log *zap.Logger) *Search {
	if log == nil {
		log = zap.NewNop()
	}
	return &Search{client: client, log: log, sort: model.SortRelevance, cursor: 1}
}

// SearchNews starts a new search for query. A blank query clears the results
// and reports an error without contacting the remote service.
func (s *Search) SearchNews(ctx context.Context, query string) {
	if strings.TrimSpace(query) == "" {
		s.mu.Lock()
		s.resetLocked("")
		s.errMsg = "enter a search term"
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.resetLocked(query)
	s.mu.Unlock()
	s.fetch(ctx, true)
}

// ChangeSortOption adopts opt and restarts the search for currentQuery. It is
// a no-op when opt is already active and nothing is loading.
func (s *Search) ChangeSortOption(ctx context.Context, opt model.SortOption, currentQuery string) {
	s.mu.Lock()
	if s.sort == opt && s.state != model.LoadLoading {
		s.mu.Unlock()
		return
	}
	s.sort = opt
	s.resetLocked(currentQuery)
	s.mu.Unlock()
	s.fetch(ctx, true)
}

// LoadNextItems fetches the next page unless a fetch is running or the
// end has been reached.
func (s *Search) LoadNextItems(ctx context.Context) {
	s.fetch(ctx, false)
}

// ShouldLoadMore reports whether a visible row at lastVisibleIndex is close
// enough to the end of the list to load the next page.
func (s *Search) ShouldLoadMore(lastVisibleIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	return n > 0 && s.state == model.LoadIdle && lastVisibleIndex >= n-loadAhead
}

// FindLoadedItem looks up a loaded item by its URL-encoded link.
func (s *Search) FindLoadedItem(encodedLink string) (model.CatalogItem, error) {
	if encodedLink == "" {
		return model.CatalogItem{}, fmt.Errorf("empty product link: %w", errs.ErrInvalidInput)
	}
	link, err := url.QueryUnescape(encodedLink)
	if err != nil {
		return model.CatalogItem{}, fmt.Errorf("decode product link: %w", errs.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Link == link {
			return it, nil
		}
	}
	return model.CatalogItem{}, fmt.Errorf("product %s is not in the loaded list: %w", link, errs.ErrNotFound)
}

// resetLocked requires mu.
func (s *Search) resetLocked(query string) {
	s.gen++
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.query = query
	s.cursor = 1
	s.items = nil
	s.errMsg = ""
	s.state = model.LoadIdle
}

func (s *Search) fetch(ctx context.Context, initial bool) {
	s.mu.Lock()
	if !initial && (s.state == model.LoadLoading || s.state == model.LoadReachedEnd) {
		s.mu.Unlock()
		return
	}
	if strings.TrimSpace(s.query) == "" {
		if initial {
			s.items = nil
			s.state = model.LoadIdle
		} else {
			s.state = model.LoadReachedEnd
		}
		s.mu.Unlock()
		return
	}
	s.state = model.LoadLoading
	gen := s.gen
	fctx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	query, start, sort := s.query, s.cursor, s.sort
	s.mu.Unlock()

	page, err := s.client.Search(fctx, query, PageSize, start, sort.APIParam())
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.cancelFetch = nil

	if err != nil {
		s.errMsg = "failed to load results: " + err.Error()
		s.state = model.LoadError
		s.log.Warn("search fetch", zap.String("query", query), zap.Int("start", start), zap.Error(err))
		return
	}
	s.errMsg = ""

	if len(page.Items) == 0 {
		if initial {
			s.items = nil
			s.state = model.LoadIdle
		} else {
			s.state = model.LoadReachedEnd
		}
		return
	}

	if initial {
		// Price orderings apply to the first page only; appended pages keep
		// the remote order.
		s.items = append([]model.CatalogItem(nil), applyClientSort(page.Items, sort)...)
	} else {
		s.items = append(s.items, page.Items...)
	}
	step := page.PageSize
	if step <= 0 {
		step = PageSize
	}
	s.cursor += step

	if len(s.items) >= page.Total {
		s.state = model.LoadReachedEnd
	} else {
		s.state = model.LoadIdle
	}
	s.log.Debug("search page",
		zap.String("query", query), zap.Int("loaded", len(s.items)), zap.Int("total", page.Total), zap.String("state", s.state.String()))
}

// Items returns a copy of the accumulated results.
func (s *Search) Items() []model.CatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CatalogItem(nil), s.items...)
}

// State returns the load state for the current query.
func (s *Search) State() model.LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the 1-based offset of the next page.
func (s *Search) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// SortOption returns the active sort option.
func (s *Search) SortOption() model.SortOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sort
}

// Query returns the current query, or "" after a reset to blank.
func (s *Search) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// ErrorMessage returns the last user-facing error, or "".
func (s *Search) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}
