// Package domain defines the institution record and the pure helpers that
// operate on it: identifier derivation, field access and normalization.
// All functions are pure (no I/O).
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Field Names
// =============================================================================

// Field names as they appear on the wire and in validation results.
const (
	FieldID        = "id"
	FieldName      = "name"
	FieldRORID     = "ror_id"
	FieldUnitID    = "unitid"
	FieldLongitude = "longitude"
	FieldLatitude  = "latitude"
	FieldState     = "state"
)

// EditableFields lists the fields a client may set, in form order.
var EditableFields = []string{
	FieldName,
	FieldID,
	FieldRORID,
	FieldUnitID,
	FieldLatitude,
	FieldLongitude,
	FieldState,
}

// =============================================================================
// Institution
// =============================================================================

// Institution is a university, college or similar organization tracked by the
// topology institutions registry.
//
// An empty string means the field is absent. IPEDSMetadata is populated by the
// backend from the unit ID and is never edited client-side.
type Institution struct {
	ID            string         `json:"id,omitempty"`
	Name          string         `json:"name"`
	RORID         string         `json:"ror_id,omitempty"`
	UnitID        string         `json:"unitid,omitempty"`
	Longitude     Coordinate     `json:"longitude,omitempty"`
	Latitude      Coordinate     `json:"latitude,omitempty"`
	State         string         `json:"state,omitempty"`
	IPEDSMetadata *IPEDSMetadata `json:"ipeds_metadata,omitempty"`
}

// IPEDSMetadata is the read-only metadata the backend derives from the
// Integrated Postsecondary Education Data System.
type IPEDSMetadata struct {
	WebsiteAddress                       string `json:"website_address,omitempty"`
	HistoricallyBlackCollegeOrUniversity bool   `json:"historically_black_college_or_university"`
	TribalCollegeOrUniversity            bool   `json:"tribal_college_or_university"`
	ProgramLength                        string `json:"program_length,omitempty"`
	Control                              string `json:"control,omitempty"`
	State                                string `json:"state,omitempty"`
	InstitutionSize                      string `json:"institution_size,omitempty"`
}

// HasUnitID reports whether the record carries an IPEDS unit ID. When it does,
// the backend derives coordinates and state from it.
func (i Institution) HasUnitID() bool {
	return i.UnitID != ""
}

// EffectiveState returns the state abbreviation, falling back to the IPEDS
// metadata state when the record itself carries none.
func (i Institution) EffectiveState() string {
	if i.State != "" {
		return i.State
	}
	if i.IPEDSMetadata != nil {
		return i.IPEDSMetadata.State
	}
	return ""
}

// Field returns the string value of a named field, or "" for unknown names.
func (i Institution) Field(name string) string {
	switch name {
	case FieldID:
		return i.ID
	case FieldName:
		return i.Name
	case FieldRORID:
		return i.RORID
	case FieldUnitID:
		return i.UnitID
	case FieldLongitude:
		return string(i.Longitude)
	case FieldLatitude:
		return string(i.Latitude)
	case FieldState:
		return i.State
	}
	return ""
}

// SetField assigns value to the named field. Assigning "" clears the field.
func (i *Institution) SetField(name, value string) error {
	switch name {
	case FieldID:
		i.ID = value
	case FieldName:
		i.Name = value
	case FieldRORID:
		i.RORID = value
	case FieldUnitID:
		i.UnitID = value
	case FieldLongitude:
		i.Longitude = Coordinate(value)
	case FieldLatitude:
		i.Latitude = Coordinate(value)
	case FieldState:
		i.State = value
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

// =============================================================================
// Coordinate
// =============================================================================

// leadingFloat matches the longest float literal at the start of a string,
// the same prefix a browser's parseFloat accepts.
var leadingFloat = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// Coordinate is a longitude or latitude carried as text. The backend sends
// numbers; forms and import files send strings. Both decode into Coordinate.
type Coordinate string

// Float parses the leading numeric prefix of the coordinate.
// "12.5", " 12.5" and "12.5abc" all yield 12.5; "abc" and "" yield false.
func (c Coordinate) Float() (float64, bool) {
	s := strings.TrimLeft(string(c), " \t\n\r\f\v")
	m := leadingFloat.FindString(s)
	if m == "" {
		return 0, false
	}
	switch strings.TrimLeft(m, "+-") {
	case "Infinity":
		if strings.HasPrefix(m, "-") {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}
	// The literal is well formed; an overflow error still carries ±Inf.
	f, _ := strconv.ParseFloat(m, 64)
	return f, true
}

// IsNumber reports whether the coordinate has a numeric prefix.
func (c Coordinate) IsNumber() bool {
	_, ok := c.Float()
	return ok
}

// MarshalJSON encodes the coordinate as a JSON number when the whole text is
// a finite number and as the text itself otherwise, so the backend reports
// the error. "12abc" is sent as "12abc", never as 12.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(c)), 64)
	if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null" || s == "":
		*c = ""
		return nil
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("decode coordinate: %w", err)
		}
		*c = Coordinate(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode coordinate: %w", err)
	}
	*c = Coordinate(n.String())
	return nil
}
