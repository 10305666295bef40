package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
	"github.com/osg-htc/topology-institutions-admin/internal/core/listquery"
	"github.com/osg-htc/topology-institutions-admin/internal/core/validation"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/importer"
)

const notAvailable = "N/A"

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
)

// =============================================================================
// List
// =============================================================================

var listColumns = []struct {
	title string
	field listquery.SortField
}{
	{"Name", listquery.SortByName},
	{"OSG ID", listquery.SortByOSGID},
	{"ROR ID", listquery.SortByRORID},
	{"Unit ID", listquery.SortByUnitID},
	{"State", listquery.SortByState},
}

func renderList(w io.Writer, rows []listquery.Row, total int, q listquery.Query) {
	header := make([]string, len(listColumns))
	for i, c := range listColumns {
		header[i] = c.title
		if c.field == q.SortField || (q.SortField == "" && c.field == listquery.SortByName) {
			header[i] += sortMarker(q.SortDirection)
		}
	}

	table := newTable(w)
	table.SetHeader(header)
	for _, r := range rows {
		table.Append([]string{r.Name, r.OSGID, r.RORID, r.UnitID, r.EffectiveState()})
	}
	table.Render()

	summary := fmt.Sprintf("%d of %d institutions", len(rows), total)
	if q.SearchText != "" {
		summary += fmt.Sprintf(" matching %q", q.SearchText)
	}
	if q.UnitIDOnly {
		summary += " with a unit ID"
	}
	fmt.Fprintln(w, summary)
}

func sortMarker(dir listquery.Direction) string {
	if dir == listquery.Desc {
		return " ▼"
	}
	return " ▲"
}

// =============================================================================
// Detail
// =============================================================================

func renderDetail(w io.Writer, inst domain.Institution) {
	titleColor.Fprintln(w, inst.Name)

	table := newTable(w)
	table.SetHeader([]string{"Field", "Value"})
	table.AppendBulk([][]string{
		{"OSG ID", orNA(inst.ID)},
		{"ROR ID", orNA(inst.RORID)},
		{"Unit ID", orNA(inst.UnitID)},
		{"Longitude", orNA(string(inst.Longitude))},
		{"Latitude", orNA(string(inst.Latitude))},
		{"State", orNA(inst.EffectiveState())},
	})

	meta := inst.IPEDSMetadata
	if meta == nil {
		meta = &domain.IPEDSMetadata{}
	}
	ipeds := inst.IPEDSMetadata != nil
	table.AppendBulk([][]string{
		{"Website", orNA(meta.WebsiteAddress)},
		{"Historically Black College or University", yesNo(ipeds, meta.HistoricallyBlackCollegeOrUniversity)},
		{"Tribal College or University", yesNo(ipeds, meta.TribalCollegeOrUniversity)},
		{"Program Length", orNA(meta.ProgramLength)},
		{"Control", orNA(meta.Control)},
		{"Institution Size", orNA(meta.InstitutionSize)},
	})
	table.Render()
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func yesNo(known, b bool) string {
	switch {
	case !known:
		return notAvailable
	case b:
		return "Yes"
	}
	return "No"
}

// =============================================================================
// Validation
// =============================================================================

func renderFieldErrors(w io.Writer, errs validation.FieldErrors) {
	if errs.Valid() {
		okColor.Fprintln(w, "Valid")
		return
	}

	errColor.Fprintln(w, "Please fix the errors before submitting the form.")
	table := newTable(w)
	table.SetHeader([]string{"Field", "Error"})
	for _, f := range errs.Fields() {
		table.Append([]string{f, errs[f]})
	}
	table.Render()
}

// =============================================================================
// Import
// =============================================================================

func renderReport(w io.Writer, report *importer.Report, dryRun bool) {
	rejected := append(append([]importer.RowError(nil), report.Invalid...), report.Failed...)
	if len(rejected) > 0 {
		table := newTable(w)
		table.SetHeader([]string{"Line", "Name", "Reason"})
		for _, r := range rejected {
			table.Append([]string{strconv.Itoa(r.Line), r.Name, r.Reason})
		}
		table.Render()
	}

	verb := "created"
	if dryRun {
		verb = "valid"
	}
	summary := fmt.Sprintf("%d %s, %d invalid, %d failed", len(report.Created), verb, len(report.Invalid), len(report.Failed))
	switch {
	case report.OK():
		okColor.Fprintln(w, summary)
	case len(report.Failed) > 0:
		errColor.Fprintln(w, summary)
	default:
		warnColor.Fprintln(w, summary)
	}
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}
