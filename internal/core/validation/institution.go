package validation

import (
	"regexp"
	"strings"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
)

// =============================================================================
// Messages
// =============================================================================

const (
	MsgNameRequired   = "Name is required"
	MsgUnitIDFormat   = "Unit ID must be 6 digits long"
	MsgRORIDFormat    = "Invalid ROR ID format (must start with https://ror.org/)"
	MsgLongitudeIsNaN = "Longitude must be a number"
	MsgLatitudeIsNaN  = "Latitude must be a number"
	MsgStateLength    = "State abbreviations must be 2 characters long"
)

// FieldNames is the validated field set, in display order.
var FieldNames = []string{
	domain.FieldName,
	domain.FieldRORID,
	domain.FieldUnitID,
	domain.FieldLongitude,
	domain.FieldLatitude,
	domain.FieldState,
}

var (
	unitIDPattern = regexp.MustCompile(`^\d{6}$`)
	rorIDPattern  = regexp.MustCompile(`^https://ror\.org/.+$`)
)

// =============================================================================
// FieldErrors
// =============================================================================

// FieldErrors maps each validated field to its error message.
// An empty message means the field is valid.
type FieldErrors map[string]string

// Valid reports whether every message is empty.
func (e FieldErrors) Valid() bool {
	for _, msg := range e {
		if msg != "" {
			return false
		}
	}
	return true
}

// Fields returns the names of the failing fields in FieldNames order.
func (e FieldErrors) Fields() []string {
	var out []string
	for _, name := range FieldNames {
		if e[name] != "" {
			out = append(out, name)
		}
	}
	return out
}

// Err returns the failures as an *Error, or nil when the record is valid.
func (e FieldErrors) Err() error {
	if e.Valid() {
		return nil
	}
	return &Error{Errors: e}
}

// Error is returned when a record fails validation. It stops submission
// locally and is never sent to the backend.
type Error struct {
	Errors FieldErrors
}

func (e *Error) Error() string {
	fields := e.Errors.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.Errors[f])
	}
	return "invalid institution: " + strings.Join(parts, "; ")
}

// =============================================================================
// Validation Functions
// =============================================================================

// Validate checks a candidate record and returns a message for every field in
// FieldNames. Rules are applied independently; all failures are reported.
//
// When a unit ID is present the longitude, latitude and state rules are
// skipped entirely, since the backend derives those values from the unit ID.
//
// Example:
//
//	errs := Validate(domain.Institution{UnitID: "12345"})
//	errs["name"]   // "Name is required"
//	errs["unitid"] // "Unit ID must be 6 digits long"
func Validate(inst domain.Institution) FieldErrors {
	errs := make(FieldErrors, len(FieldNames))
	for _, name := range FieldNames {
		errs[name] = ""
	}

	if inst.Name == "" {
		errs[domain.FieldName] = MsgNameRequired
	}

	if inst.UnitID != "" && !unitIDPattern.MatchString(inst.UnitID) {
		errs[domain.FieldUnitID] = MsgUnitIDFormat
	}

	if inst.RORID != "" && !rorIDPattern.MatchString(inst.RORID) {
		errs[domain.FieldRORID] = MsgRORIDFormat
	}

	// Coordinates and state only matter when the backend cannot derive them.
	if !inst.HasUnitID() {
		if inst.Longitude != "" && !inst.Longitude.IsNumber() {
			errs[domain.FieldLongitude] = MsgLongitudeIsNaN
		}
		if inst.Latitude != "" && !inst.Latitude.IsNumber() {
			errs[domain.FieldLatitude] = MsgLatitudeIsNaN
		}
		if inst.State != "" && len([]rune(inst.State)) != 2 {
			errs[domain.FieldState] = MsgStateLength
		}
	}

	return errs
}

// GeoFieldsEditable reports whether longitude, latitude and state may be
// edited. They are locked while a unit ID is present.
func GeoFieldsEditable(inst domain.Institution) bool {
	return !inst.HasUnitID()
}

// IsGeoField reports whether name is one of the fields locked by a unit ID.
func IsGeoField(name string) bool {
	switch name {
	case domain.FieldLongitude, domain.FieldLatitude, domain.FieldState:
		return true
	}
	return false
}
