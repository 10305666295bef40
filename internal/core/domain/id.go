package domain

import "strings"

// =============================================================================
// Identifier Prefixes
// =============================================================================

const (
	// OSGIDPrefix is the namespace every canonical institution ID starts with.
	OSGIDPrefix = "https://osg-htc.org/iid/"

	// RORIDPrefix is the namespace of Research Organization Registry IDs.
	RORIDPrefix = "https://ror.org/"
)

// =============================================================================
// Short IDs
// =============================================================================

// ShortID returns the last "/"-delimited segment of a canonical ID, ignoring
// trailing slashes. It is used for display and for edit targets.
//
// This is a pure function with no side effects.
//
// Example:
//
//	ShortID("https://osg-htc.org/iid/01y2jtd41/") // returns "01y2jtd41"
//	ShortID("https://osg-htc.org/iid/01y2jtd41")  // returns "01y2jtd41"
//	ShortID("01y2jtd41")                          // returns "01y2jtd41"
func ShortID(id string) string {
	trimmed := strings.TrimRight(id, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// StripPrefix removes OSGIDPrefix and any trailing slashes from a canonical
// ID to obtain the backend path segment. IDs without the prefix only lose
// their trailing slashes.
func StripPrefix(id string) string {
	return strings.TrimPrefix(strings.TrimRight(id, "/"), OSGIDPrefix)
}

// FullID re-prepends OSGIDPrefix to a short ID. It is the inverse of
// StripPrefix; IDs that already carry the prefix are returned unchanged.
func FullID(shortID string) string {
	if shortID == "" || strings.HasPrefix(shortID, OSGIDPrefix) {
		return shortID
	}
	return OSGIDPrefix + shortID
}

// =============================================================================
// Normalization
// =============================================================================

// Normalize trims leading and trailing whitespace from the free-text fields a
// user types by hand: name, id and ror_id. It runs before the final
// validation on submit and before a record is sent to the backend.
func Normalize(inst Institution) Institution {
	inst.Name = strings.TrimSpace(inst.Name)
	inst.ID = strings.TrimSpace(inst.ID)
	inst.RORID = strings.TrimSpace(inst.RORID)
	return inst
}

// FromFields builds a record from a field map such as form input or an import
// row. Empty values are treated as absent and skipped; unknown names are
// reported as an error.
func FromFields(fields map[string]string) (Institution, error) {
	var inst Institution
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := inst.SetField(name, value); err != nil {
			return Institution{}, err
		}
	}
	return inst, nil
}
