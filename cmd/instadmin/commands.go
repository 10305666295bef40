package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
	"github.com/osg-htc/topology-institutions-admin/internal/core/listquery"
	"github.com/osg-htc/topology-institutions-admin/internal/core/validation"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/importer"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/session"
)

// =============================================================================
// Field Flags
// =============================================================================

type fieldFlag struct {
	field string
	flag  string
	usage string
}

// fieldFlagUsage names the flag for each field a command may set. The ID is
// assigned by the backend and has no flag.
var fieldFlagUsage = map[string]struct{ flag, usage string }{
	domain.FieldName:      {"name", "Institution name"},
	domain.FieldRORID:     {"ror-id", "ROR ID (https://ror.org/...)"},
	domain.FieldUnitID:    {"unitid", "IPEDS unit ID, 6 digits"},
	domain.FieldLatitude:  {"latitude", "Latitude, ignored by the backend when a unit ID is set"},
	domain.FieldLongitude: {"longitude", "Longitude, ignored by the backend when a unit ID is set"},
	domain.FieldState:     {"state", "Two letter state abbreviation"},
}

// fieldFlags follow domain.EditableFields, so a unit ID is set or cleared
// before the fields it locks.
var fieldFlags = func() []fieldFlag {
	var flags []fieldFlag
	for _, field := range domain.EditableFields {
		if f, ok := fieldFlagUsage[field]; ok {
			flags = append(flags, fieldFlag{field: field, flag: f.flag, usage: f.usage})
		}
	}
	return flags
}()

type fieldValues map[string]*string

func addFieldFlags(cmd *cobra.Command) fieldValues {
	values := fieldValues{}
	for _, f := range fieldFlags {
		values[f.field] = cmd.Flags().String(f.flag, "", f.usage)
	}
	return values
}

// changed returns the explicitly passed fields. An explicit empty value
// clears the field.
func (v fieldValues) changed(cmd *cobra.Command) map[string]string {
	out := map[string]string{}
	for _, f := range fieldFlags {
		if cmd.Flags().Changed(f.flag) {
			out[f.field] = *v[f.field]
		}
	}
	return out
}

func (v fieldValues) apply(cmd *cobra.Command, form *session.Form) error {
	changed := v.changed(cmd)
	for _, f := range fieldFlags {
		value, ok := changed[f.field]
		if !ok {
			continue
		}
		if err := form.Set(f.field, value); err != nil {
			return err
		}
	}
	return nil
}

// submitError prints field errors for a rejected draft and passes err on.
func (a *app) submitError(err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		renderFieldErrors(a.errOut, verr.Errors)
	}
	return err
}

// =============================================================================
// list / show
// =============================================================================

func newListCmd(a *app) *cobra.Command {
	var (
		search     string
		sortBy     string
		order      string
		unitIDOnly bool
		matchID    bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List institutions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := listquery.ParseSortField(sortBy)
			if err != nil {
				return &CLIError{Op: "list", Err: err, ExitCode: ExitUsageError}
			}
			dir, err := listquery.ParseDirection(order)
			if err != nil {
				return &CLIError{Op: "list", Err: err, ExitCode: ExitUsageError}
			}

			q := listquery.Query{
				SearchText:    search,
				MatchID:       matchID,
				SortField:     field,
				SortDirection: dir,
				UnitIDOnly:    unitIDOnly,
			}
			list := session.NewList(a.client, session.ListConfig{Query: &q}, a.logger)
			defer list.Close()

			if err := list.Refresh(cmd.Context()); err != nil {
				return err
			}
			renderList(a.out, list.Rows(), list.Total(), list.Query())
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive name filter")
	cmd.Flags().StringVar(&sortBy, "sort", string(listquery.SortByName), "Sort field (name, osg_id, ror_id, unitid, state)")
	cmd.Flags().StringVar(&order, "order", string(listquery.Asc), "Sort order (asc, desc)")
	cmd.Flags().BoolVar(&unitIDOnly, "unitid-only", false, "Only show institutions with a unit ID")
	cmd.Flags().BoolVar(&matchID, "search-ids", false, "Also match the search text against OSG IDs")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one institution, including its IPEDS metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderDetail(a.out, *inst)
			return nil
		},
	}
}

// =============================================================================
// add / update / delete
// =============================================================================

func newAddCmd(a *app) *cobra.Command {
	var (
		values  fieldValues
		another bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an institution",
		Long: `Create an institution from the field flags.

With --another, further records are read from standard input after the
flagged one: one field=value line per field (flag names, e.g. ror-id=...),
records separated by a blank line. Each record is validated and created in
turn; rejected records are reported and skipped.`,
		Example: `  instadmin add --name "University of Wisconsin-Madison" --unitid 240444 \
    --ror-id https://ror.org/01y2jtd41

  printf 'name=Fermilab\nlatitude=41.84\nlongitude=-88.25\nstate=IL\n' | instadmin add --another`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form := session.NewCreateForm(a.client, a.formOptions()...)

			created := 0
			if !another || len(values.changed(cmd)) > 0 {
				if err := values.apply(cmd, form); err != nil {
					return err
				}
				inst, err := form.Submit(cmd.Context())
				if err != nil {
					return a.submitError(err)
				}
				a.printCreated(*inst)
				created++
			}
			if !another {
				return nil
			}
			return a.addAnother(cmd.Context(), form, created)
		},
	}
	values = addFieldFlags(cmd)
	cmd.Flags().BoolVar(&another, "another", false, "Keep creating records read from standard input")
	return cmd
}

func (a *app) printCreated(inst domain.Institution) {
	if inst.ID == "" {
		okColor.Fprintf(a.out, "Created %s (ID assigned by the backend)\n", inst.Name)
	} else {
		okColor.Fprintf(a.out, "Created %s\n", domain.ShortID(inst.ID))
	}
	renderDetail(a.out, inst)
}

// addAnother creates one record per blank-line separated block of a.in,
// resetting form between records. The exit code is the most severe one among
// the rejected records.
func (a *app) addAnother(ctx context.Context, form *session.Form, created int) error {
	form.Reset()

	var (
		rejected int
		code     int
		blockErr error
		filled   bool
	)
	finish := func() {
		if !filled {
			return
		}
		err := blockErr
		var inst *domain.Institution
		if err == nil {
			inst, err = form.Submit(ctx)
		}
		if err != nil {
			rejected++
			code = max(code, exitCode(err))
			errColor.Fprintf(a.errOut, "Error: %v\n", err)
			_ = a.submitError(err)
		} else {
			created++
			a.printCreated(*inst)
		}
		form.Reset()
		filled, blockErr = false, nil
	}

	scanner := bufio.NewScanner(a.in)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			finish()
			continue
		}
		filled = true
		if blockErr != nil {
			continue
		}

		name, value, ok := strings.Cut(text, "=")
		field, known := flagField(strings.TrimSpace(name))
		switch {
		case !ok:
			blockErr = fmt.Errorf("line %d: expected field=value", lineNo)
		case !known:
			blockErr = fmt.Errorf("line %d: unknown field %q", lineNo, strings.TrimSpace(name))
		default:
			if err := form.Set(field, strings.TrimSpace(value)); err != nil {
				blockErr = fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	finish()

	fmt.Fprintf(a.out, "%d created, %d rejected\n", created, rejected)
	if rejected > 0 {
		return &CLIError{
			Op:       "add",
			Err:      fmt.Errorf("%d of %d records rejected", rejected, created+rejected),
			ExitCode: code,
		}
	}
	return nil
}

// flagField maps a flag or field name to its field.
func flagField(name string) (string, bool) {
	for _, f := range fieldFlags {
		if name == f.flag || name == f.field {
			return f.field, true
		}
	}
	return "", false
}

func newUpdateCmd(a *app) *cobra.Command {
	var values fieldValues

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an institution",
		Long: `Update an institution. Only the fields passed as flags change; pass an
empty value (--state "") to clear a field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(values.changed(cmd)) == 0 {
				return &CLIError{Op: "update", Err: errors.New("no fields to update"), ExitCode: ExitUsageError}
			}

			form, err := session.LoadEditForm(cmd.Context(), a.client, args[0], a.formOptions()...)
			if err != nil {
				return err
			}
			if err := values.apply(cmd, form); err != nil {
				return err
			}

			updated, err := form.Submit(cmd.Context())
			if err != nil {
				return a.submitError(err)
			}
			okColor.Fprintf(a.out, "Updated %s\n", domain.ShortID(updated.ID))
			return nil
		},
	}
	values = addFieldFlags(cmd)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an institution",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := session.LoadEditForm(cmd.Context(), a.client, args[0], a.formOptions()...)
			if err != nil {
				return err
			}
			draft := form.Draft()

			if !yes {
				fmt.Fprintf(a.out, "Delete %s (%s)? [y/N] ", draft.Name, domain.ShortID(draft.ID))
				answer, _ := bufio.NewReader(a.in).ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "y", "yes":
				default:
					fmt.Fprintln(a.out, "Aborted")
					return nil
				}
			}

			if err := form.Delete(cmd.Context()); err != nil {
				return err
			}
			okColor.Fprintf(a.out, "Deleted %s\n", domain.ShortID(draft.ID))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// =============================================================================
// validate / import
// =============================================================================

func newValidateCmd(a *app) *cobra.Command {
	var values fieldValues

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a record locally without contacting the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := domain.FromFields(values.changed(cmd))
			if err != nil {
				return &CLIError{Op: "validate", Err: err, ExitCode: ExitUsageError}
			}

			errs := validation.Validate(domain.Normalize(inst))
			renderFieldErrors(a.out, errs)
			if err := errs.Err(); err != nil {
				return &CLIError{Op: "validate", Err: err, ExitCode: ExitValidationError}
			}
			return nil
		},
	}
	values = addFieldFlags(cmd)
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var (
		format string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create institutions from a CSV or YAML file",
		Long: `Create institutions from a CSV or YAML file, one request per row.

CSV files need a header row. Besides the record field names, the IPEDS
directory headers UNITID, INSTNM, LONGITUD, LATITUDE and STABBR are
understood; other columns are ignored. Every row is validated before it
is sent, and invalid rows are reported without being sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := importer.LoadFile(args[0], importer.Format(format))
			if err != nil {
				return &CLIError{Op: "import", Err: err, ExitCode: ExitUsageError}
			}

			im := importer.New(a.client, a.logger)
			im.DryRun = dryRun
			report, err := im.Run(cmd.Context(), records)
			if report != nil {
				renderReport(a.out, report, dryRun)
			}
			if err != nil {
				return err
			}

			switch {
			case len(report.Failed) > 0:
				return &CLIError{Op: "import", Err: fmt.Errorf("%d rows rejected by the backend", len(report.Failed)), ExitCode: ExitTransportError}
			case len(report.Invalid) > 0:
				return &CLIError{Op: "import", Err: fmt.Errorf("%d invalid rows", len(report.Invalid)), ExitCode: ExitValidationError}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "File format (csv, yaml); detected from the extension by default")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate rows without creating anything")
	return cmd
}
