// Package importer loads institution records from CSV or YAML files and
// creates them one at a time through the backend client.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
)

// Format is an import file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

var (
	ErrUnknownFormat = errors.New("unknown import format")
	ErrNoNameColumn  = errors.New("csv header has no name column")
)

// Record is one row read from an import file.
type Record struct {
	// Line is the 1-based source line for CSV, or the 1-based item index
	// for YAML.
	Line        int
	Institution domain.Institution
	// Err is set when the row could not be turned into a record at all.
	Err error
}

// columnAliases maps lower-cased header names to record fields. IPEDS
// directory exports use UNITID, INSTNM, LONGITUD, LATITUDE and STABBR.
var columnAliases = map[string]string{
	"id":        domain.FieldID,
	"osg_id":    domain.FieldID,
	"name":      domain.FieldName,
	"instnm":    domain.FieldName,
	"ror_id":    domain.FieldRORID,
	"ror":       domain.FieldRORID,
	"unitid":    domain.FieldUnitID,
	"unit_id":   domain.FieldUnitID,
	"longitude": domain.FieldLongitude,
	"longitud":  domain.FieldLongitude,
	"latitude":  domain.FieldLatitude,
	"state":     domain.FieldState,
	"stabbr":    domain.FieldState,
}

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// LoadFile reads records from path. An empty format is detected from the
// extension.
func LoadFile(path string, format Format) ([]Record, error) {
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	switch format {
	case FormatCSV:
		return ParseCSV(bytes.NewReader(data))
	case FormatYAML:
		return ParseYAML(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// =============================================================================
// CSV
// =============================================================================

// ParseCSV reads a CSV file with a header row. Columns that do not name a
// record field are ignored, so a full IPEDS export can be loaded directly.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make([]string, len(header))
	hasName := false
	for i, h := range header {
		field := columnAliases[strings.ToLower(strings.TrimSpace(h))]
		// The first column wins when two headers map to the same field.
		for _, c := range columns[:i] {
			if c == field {
				field = ""
			}
		}
		columns[i] = field
		if field == domain.FieldName {
			hasName = true
		}
	}
	if !hasName {
		return nil, ErrNoNameColumn
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return records, fmt.Errorf("read csv: %w", err)
			}
			records = append(records, Record{Line: perr.StartLine, Err: err})
			continue
		}
		line, _ := reader.FieldPos(0)
		if blank(row) {
			continue
		}

		fields := make(map[string]string, len(columns))
		for i, value := range row {
			if i < len(columns) && columns[i] != "" {
				fields[columns[i]] = strings.TrimSpace(value)
			}
		}
		inst, err := domain.FromFields(fields)
		records = append(records, Record{Line: line, Institution: inst, Err: err})
	}
	return records, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// YAML
// =============================================================================

// yamlRecord is the YAML shape of a record. Coordinates may be written as
// numbers or strings.
type yamlRecord struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	RORID     string `yaml:"ror_id"`
	UnitID    string `yaml:"unitid"`
	Longitude string `yaml:"longitude"`
	Latitude  string `yaml:"latitude"`
	State     string `yaml:"state"`
}

func (y yamlRecord) institution() domain.Institution {
	return domain.Institution{
		ID:        y.ID,
		Name:      y.Name,
		RORID:     y.RORID,
		UnitID:    y.UnitID,
		Longitude: domain.Coordinate(y.Longitude),
		Latitude:  domain.Coordinate(y.Latitude),
		State:     y.State,
	}
}

// ParseYAML reads a YAML sequence of records. Unknown keys are an error.
func ParseYAML(r io.Reader) ([]Record, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var items []yamlRecord
	if err := dec.Decode(&items); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	records := make([]Record, len(items))
	for i, item := range items {
		records[i] = Record{Line: i + 1, Institution: item.institution()}
	}
	return records, nil
}
