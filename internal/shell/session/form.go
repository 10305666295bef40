package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
	"github.com/osg-htc/topology-institutions-admin/internal/core/validation"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/institutions"
)

var (
	// ErrFieldLocked is returned when a geo field is edited while the draft
	// carries a unit ID.
	ErrFieldLocked = errors.New("field is filled in automatically from the unit ID")

	// ErrMissingID is returned when an edit form is submitted for a record
	// without an id.
	ErrMissingID = errors.New("institution id is required for update")
)

// RORChecker verifies that a ROR ID resolves. *ror.Verifier implements it.
type RORChecker interface {
	Check(ctx context.Context, rorID string) error
}

// Mode says what Submit does with a valid draft.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// FormOption configures a Form.
type FormOption func(*Form)

// WithRORChecker enables the remote ROR existence check on submit.
func WithRORChecker(c RORChecker) FormOption {
	return func(f *Form) { f.ror = c }
}

// WithLogger sets the form's logger.
func WithLogger(logger *slog.Logger) FormOption {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Form is the add/edit form state. It is not safe for concurrent use.
type Form struct {
	svc    institutions.Service
	ror    RORChecker
	logger *slog.Logger

	mode   Mode
	draft  domain.Institution
	errors validation.FieldErrors
}

// NewCreateForm returns an empty create form.
func NewCreateForm(svc institutions.Service, opts ...FormOption) *Form {
	return newForm(svc, ModeCreate, domain.Institution{}, opts)
}

// NewEditForm returns an edit form over an already loaded record.
func NewEditForm(svc institutions.Service, inst domain.Institution, opts ...FormOption) *Form {
	return newForm(svc, ModeEdit, inst, opts)
}

// LoadEditForm fetches the record by id and returns an edit form for it.
func LoadEditForm(ctx context.Context, svc institutions.Service, id string, opts ...FormOption) (*Form, error) {
	inst, err := svc.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load institution: %w", err)
	}
	return NewEditForm(svc, *inst, opts...), nil
}

func newForm(svc institutions.Service, mode Mode, inst domain.Institution, opts []FormOption) *Form {
	f := &Form{
		svc:    svc,
		logger: slog.Default(),
		mode:   mode,
		draft:  inst,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "institution_form")
	f.errors = validation.Validate(f.draft)
	return f
}

// Mode returns the form mode.
func (f *Form) Mode() Mode {
	return f.mode
}

// Draft returns a copy of the current draft.
func (f *Form) Draft() domain.Institution {
	return f.draft
}

// Errors returns the validation result for the current draft. It is
// recomputed on every change.
func (f *Form) Errors() validation.FieldErrors {
	return f.errors
}

// Editable reports whether a field accepts input right now.
func (f *Form) Editable(field string) bool {
	if field == domain.FieldID {
		return false
	}
	if validation.IsGeoField(field) {
		return validation.GeoFieldsEditable(f.draft)
	}
	return true
}

// Set assigns a field and revalidates. An empty value clears the field.
func (f *Form) Set(field, value string) error {
	if field == domain.FieldID {
		return fmt.Errorf("set %s: id is assigned by the backend", field)
	}
	if !f.Editable(field) {
		return fmt.Errorf("set %s: %w", field, ErrFieldLocked)
	}
	if err := f.draft.SetField(field, value); err != nil {
		return err
	}
	f.errors = validation.Validate(f.draft)
	return nil
}

// Submit normalizes and validates the draft and, only when it is valid,
// sends it to the backend. A *validation.Error means nothing was sent.
//
// On success in create mode the draft becomes the stored record, including
// the id the backend assigned.
func (f *Form) Submit(ctx context.Context) (*domain.Institution, error) {
	candidate := domain.Normalize(f.draft)
	f.errors = validation.Validate(candidate)
	if err := f.errors.Err(); err != nil {
		f.logger.Debug("submit blocked by validation", "fields", f.errors.Fields())
		return nil, err
	}
	f.draft = candidate

	if f.ror != nil && candidate.RORID != "" {
		if err := f.ror.Check(ctx, candidate.RORID); err != nil {
			return nil, fmt.Errorf("verify ror id: %w", err)
		}
	}

	switch f.mode {
	case ModeEdit:
		if candidate.ID == "" {
			return nil, ErrMissingID
		}
		if err := f.svc.Update(ctx, candidate.ID, candidate); err != nil {
			return nil, err
		}
		f.logger.Info("institution updated", "id", candidate.ID)
		return &candidate, nil

	default:
		created, err := f.svc.Create(ctx, candidate)
		if err != nil {
			return nil, err
		}
		f.draft = *created
		f.logger.Info("institution created", "id", created.ID)
		return created, nil
	}
}

// Delete removes the record being edited.
func (f *Form) Delete(ctx context.Context) error {
	if f.mode != ModeEdit || f.draft.ID == "" {
		return ErrMissingID
	}
	if err := f.svc.Delete(ctx, f.draft.ID); err != nil {
		return err
	}
	f.logger.Info("institution deleted", "id", f.draft.ID)
	return nil
}

// Reset clears the draft and switches back to create mode, ready for the
// next record.
func (f *Form) Reset() {
	f.mode = ModeCreate
	f.draft = domain.Institution{}
	f.errors = validation.Validate(f.draft)
}
