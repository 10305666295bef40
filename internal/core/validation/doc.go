// Package validation provides the pure field validation rules for institution
// records.
//
// This package contains the functional core logic for checking a candidate
// record before it is submitted. All functions are pure (no I/O, no side
// effects) and never panic, whatever shape the input has.
//
// # Functions
//
//   - Validate: Produce a message per validated field ("" when valid)
//   - GeoFieldsEditable: Report whether coordinates and state may be edited
//
// # Usage
//
// The form session validates on every change and again, after normalization,
// right before submission:
//
//	errs := validation.Validate(domain.Normalize(draft))
//	if err := errs.Err(); err != nil {
//	    // Show errs next to each field; do not call the backend
//	}
package validation
