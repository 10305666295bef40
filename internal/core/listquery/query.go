// Package listquery derives the visible, ordered subset of an institution
// collection from explicit query state.
//
// All functions are pure: they never block, never mutate their input and may
// be called from any goroutine. Debouncing search input is the caller's job;
// see DefaultDebounce.
package listquery

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
)

// DefaultDebounce is how long search input must be stable before the caller
// re-runs the query.
const DefaultDebounce = 500 * time.Millisecond

// =============================================================================
// Query State
// =============================================================================

// SortField names a sortable column.
type SortField string

const (
	SortByName   SortField = "name"
	SortByOSGID  SortField = "osg_id"
	SortByRORID  SortField = "ror_id"
	SortByUnitID SortField = "unitid"
	SortByState  SortField = "state"
)

// SortFields lists every supported sort column.
var SortFields = []SortField{SortByName, SortByOSGID, SortByRORID, SortByUnitID, SortByState}

// ParseSortField validates a column name.
func ParseSortField(s string) (SortField, error) {
	for _, f := range SortFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection validates a sort direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// Query is the externally owned list state. The zero value sorts by name,
// ascending, and matches every record.
type Query struct {
	// SearchText is matched case-insensitively against the name.
	SearchText string

	// MatchID extends the search to the canonical ID.
	MatchID bool

	SortField     SortField
	SortDirection Direction

	// UnitIDOnly keeps only records that carry an IPEDS unit ID.
	UnitIDOnly bool
}

// DefaultQuery returns the initial list state.
func DefaultQuery() Query {
	return Query{SortField: SortByName, SortDirection: Asc}
}

// Toggle returns the query after a sort header activation: selecting the
// active column flips the direction, selecting a new column sorts it
// ascending.
func Toggle(q Query, field SortField) Query {
	if q.field() == field {
		if q.direction() == Asc {
			q.SortDirection = Desc
		} else {
			q.SortDirection = Asc
		}
		return q
	}
	q.SortField = field
	q.SortDirection = Asc
	return q
}

func (q Query) field() SortField {
	if q.SortField == "" {
		return SortByName
	}
	return q.SortField
}

func (q Query) direction() Direction {
	if q.SortDirection == "" {
		return Asc
	}
	return q.SortDirection
}

// =============================================================================
// Derivation
// =============================================================================

// Apply runs search, the unit ID filter and the sort, in that order, and
// returns a new slice. Because the sort is stable, filtering before or after
// sorting yields the same sequence.
func Apply(records []domain.Institution, q Query) []domain.Institution {
	out := Search(records, q.SearchText, q.MatchID)
	if q.UnitIDOnly {
		out = FilterUnitID(out)
	}
	return Sort(out, q.field(), q.direction())
}

// Search keeps records whose name (and, with matchID, canonical ID) contains
// text, ignoring case. Empty text matches every record.
func Search(records []domain.Institution, text string, matchID bool) []domain.Institution {
	needle := strings.ToLower(text)
	out := make([]domain.Institution, 0, len(records))
	for _, r := range records {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.Name), needle) ||
			(matchID && strings.Contains(strings.ToLower(r.ID), needle)) {
			out = append(out, r)
		}
	}
	return out
}

// FilterUnitID keeps records that carry a unit ID.
func FilterUnitID(records []domain.Institution) []domain.Institution {
	out := make([]domain.Institution, 0, len(records))
	for _, r := range records {
		if r.HasUnitID() {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders a copy of records by field using a case-insensitive,
// locale-aware comparison. Missing values compare as "". Records with equal
// keys keep their relative order in both directions.
func Sort(records []domain.Institution, field SortField, dir Direction) []domain.Institution {
	keys := make([]string, len(records))
	idx := make([]int, len(records))
	for i, r := range records {
		keys[i] = strings.ToLower(SortKey(r, field))
		idx[i] = i
	}

	// A Collator keeps scratch buffers, so each call gets its own.
	c := collate.New(language.Und)
	sort.SliceStable(idx, func(a, b int) bool {
		cmp := c.CompareString(keys[idx[a]], keys[idx[b]])
		if dir == Desc {
			return cmp > 0
		}
		return cmp < 0
	})

	sorted := make([]domain.Institution, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	return sorted
}

// SortKey returns the raw value a record is sorted by.
func SortKey(r domain.Institution, field SortField) string {
	switch field {
	case SortByOSGID:
		return domain.ShortID(r.ID)
	case SortByRORID:
		return r.RORID
	case SortByUnitID:
		return r.UnitID
	case SortByState:
		return r.EffectiveState()
	default:
		return r.Name
	}
}

// =============================================================================
// Display Rows
// =============================================================================

// Row is a record plus its derived display fields.
type Row struct {
	domain.Institution

	// OSGID is the short identifier used for display and edit targets.
	OSGID string
}

// Rows derives display rows without modifying records.
func Rows(records []domain.Institution) []Row {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{Institution: r, OSGID: domain.ShortID(r.ID)}
	}
	return rows
}
