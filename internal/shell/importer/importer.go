package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
	"github.com/osg-htc/topology-institutions-admin/internal/core/validation"
)

// Creator creates a record on the backend.
type Creator interface {
	Create(ctx context.Context, inst domain.Institution) (*domain.Institution, error)
}

// RowError describes a row that was not created.
type RowError struct {
	Line   int
	Name   string
	Reason string
	Err    error
}

func (e RowError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("line %d (%s): %s", e.Line, e.Name, e.Reason)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Report summarizes an import run.
type Report struct {
	// Created holds the stored records. In a dry run it holds the records
	// that would have been sent.
	Created []domain.Institution
	// Invalid holds rows rejected locally. Nothing was sent for them.
	Invalid []RowError
	// Failed holds rows the backend rejected.
	Failed []RowError
}

// OK reports whether every row was created.
func (r *Report) OK() bool {
	return len(r.Invalid) == 0 && len(r.Failed) == 0
}

// Total returns the number of rows processed.
func (r *Report) Total() int {
	return len(r.Created) + len(r.Invalid) + len(r.Failed)
}

// Importer creates records one at a time. Every row is normalized and
// validated before any request is made for it.
type Importer struct {
	creator Creator
	logger  *slog.Logger

	// DryRun validates rows without sending them.
	DryRun bool
}

// New creates an Importer.
func New(creator Creator, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		creator: creator,
		logger:  logger.With("component", "importer"),
	}
}

// Run processes records in order. A row failure does not stop the run; a
// cancelled context does, and the report covers the rows handled so far.
func (im *Importer) Run(ctx context.Context, records []Record) (*Report, error) {
	report := &Report{}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if rec.Err != nil {
			report.Invalid = append(report.Invalid, RowError{Line: rec.Line, Reason: rec.Err.Error(), Err: rec.Err})
			continue
		}

		inst := domain.Normalize(rec.Institution)
		errs := validation.Validate(inst)
		if err := errs.Err(); err != nil {
			report.Invalid = append(report.Invalid, RowError{
				Line:   rec.Line,
				Name:   inst.Name,
				Reason: describe(errs),
				Err:    err,
			})
			continue
		}

		if im.DryRun {
			report.Created = append(report.Created, inst)
			continue
		}

		created, err := im.creator.Create(ctx, inst)
		if err != nil {
			im.logger.Warn("import row failed", "line", rec.Line, "name", inst.Name, "error", err)
			report.Failed = append(report.Failed, RowError{
				Line:   rec.Line,
				Name:   inst.Name,
				Reason: err.Error(),
				Err:    err,
			})
			continue
		}
		im.logger.Debug("import row created", "line", rec.Line, "id", created.ID)
		report.Created = append(report.Created, *created)
	}

	im.logger.Info("import finished",
		"created", len(report.Created),
		"invalid", len(report.Invalid),
		"failed", len(report.Failed),
		"dry_run", im.DryRun,
	)
	return report, nil
}

func describe(errs validation.FieldErrors) string {
	var out string
	for i, f := range errs.Fields() {
		if i > 0 {
			out += "; "
		}
		out += errs[f]
	}
	return out
}
