// Package session owns the state a view keeps between events: the fetched
// record collection, the list query, the pending search debounce and the
// form draft. It calls the pure engines and the backend client; it renders
// nothing itself.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
	"github.com/osg-htc/topology-institutions-admin/internal/core/listquery"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/debounce"
)

// Lister fetches the record collection.
type Lister interface {
	List(ctx context.Context) ([]domain.Institution, error)
}

// ListConfig configures a list session.
type ListConfig struct {
	// Debounce is the idle window for search input.
	// Default: listquery.DefaultDebounce.
	Debounce time.Duration

	// Query is the initial query state. Default: listquery.DefaultQuery().
	Query *listquery.Query

	// OnChange is called with the derived rows whenever they may have
	// changed. It can run on the debounce timer's goroutine.
	OnChange func([]listquery.Row)
}

// List is the institution list view state.
type List struct {
	lister   Lister
	onChange func([]listquery.Row)
	logger   *slog.Logger

	mu      sync.Mutex
	records []domain.Institution
	query   listquery.Query

	search *debounce.Debouncer[string]
}

// NewList creates a list session. Call Refresh to load records and Close on
// teardown.
func NewList(lister Lister, cfg ListConfig, logger *slog.Logger) *List {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = listquery.DefaultDebounce
	}
	query := listquery.DefaultQuery()
	if cfg.Query != nil {
		query = *cfg.Query
	}

	l := &List{
		lister:   lister,
		onChange: cfg.OnChange,
		logger:   logger.With("component", "list_session"),
		query:    query,
	}
	l.search = debounce.New(cfg.Debounce, l.applySearch)
	return l
}

// Refresh reloads the collection from the backend. Views call it on
// activation and whenever they become visible again.
func (l *List) Refresh(ctx context.Context) error {
	records, err := l.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("refresh institutions: %w", err)
	}

	l.mu.Lock()
	l.records = records
	l.mu.Unlock()

	l.logger.Debug("institutions refreshed", "count", len(records))
	l.notify()
	return nil
}

// SetSearch records new search input. The query only changes once the input
// has been stable for the debounce window.
func (l *List) SetSearch(text string) {
	l.search.Push(text)
}

// FlushSearch applies pending search input immediately.
func (l *List) FlushSearch() bool {
	return l.search.Flush()
}

// SearchPending reports whether search input is waiting to settle.
func (l *List) SearchPending() bool {
	return l.search.Pending()
}

// Sort activates a sort header.
func (l *List) Sort(field listquery.SortField) {
	l.update(func(q listquery.Query) listquery.Query {
		return listquery.Toggle(q, field)
	})
}

// SetUnitIDOnly toggles the unit ID filter.
func (l *List) SetUnitIDOnly(on bool) {
	l.update(func(q listquery.Query) listquery.Query {
		q.UnitIDOnly = on
		return q
	})
}

// SetMatchID toggles matching search text against canonical IDs.
func (l *List) SetMatchID(on bool) {
	l.update(func(q listquery.Query) listquery.Query {
		q.MatchID = on
		return q
	})
}

// Query returns the current query state.
func (l *List) Query() listquery.Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Visible returns the derived, ordered records.
func (l *List) Visible() []domain.Institution {
	l.mu.Lock()
	records, query := l.records, l.query
	l.mu.Unlock()
	return listquery.Apply(records, query)
}

// Rows returns the derived records with display fields.
func (l *List) Rows() []listquery.Row {
	return listquery.Rows(l.Visible())
}

// Total returns the size of the unfiltered collection.
func (l *List) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Close cancels any pending search so nothing fires after teardown.
func (l *List) Close() {
	l.search.Stop()
}

func (l *List) applySearch(text string) {
	l.update(func(q listquery.Query) listquery.Query {
		q.SearchText = text
		return q
	})
}

func (l *List) update(fn func(listquery.Query) listquery.Query) {
	l.mu.Lock()
	l.query = fn(l.query)
	q := l.query
	l.mu.Unlock()

	l.logger.Debug("query changed",
		"search", q.SearchText,
		"sort", q.SortField,
		"direction", q.SortDirection,
		"unitid_only", q.UnitIDOnly,
	)
	l.notify()
}

func (l *List) notify() {
	if l.onChange != nil {
		l.onChange(l.Rows())
	}
}
