// Package export writes rendered patient list data as CSV or XLSX files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
	"github.com/rpattn/patientlist/internal/render"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat resolves a format name; an empty name selects CSV.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", value)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// DataSource produces one page of rendered list data.
type DataSource interface {
	GetPatientListData(ctx context.Context, list domain.PatientList, paging *domain.PagingInfo) ([]domain.PatientListData, error)
}

type Service struct {
	source   DataSource
	registry *fields.Registry
	logger   *slog.Logger
	pageSize int
	now      func() time.Time
}

type Option func(*Service)

func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(source DataSource, registry *fields.Registry, opts ...Option) *Service {
	service := &Service{
		source:   source,
		registry: registry,
		logger:   slog.Default(),
		pageSize: 1000,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Export writes every row of list to w. columns names additional registry
// fields written after the rendered header and body; when empty, the fields
// referenced by the list templates are used. It returns the number of rows
// written.
func (s *Service) Export(ctx context.Context, w io.Writer, list domain.PatientList, format Format, columns []string) (int, error) {
	if len(columns) == 0 {
		columns = s.templateColumns(list)
	}
	records := [][]string{s.headerRow(columns)}

	for page := 1; ; page++ {
		paging := domain.NewPagingInfo(page, s.pageSize)
		data, err := s.source.GetPatientListData(ctx, list, paging)
		if err != nil {
			return 0, fmt.Errorf("failed to load page %d: %w", page, err)
		}
		for _, item := range data {
			records = append(records, s.record(item, columns))
		}
		if len(data) == 0 || int64(page*s.pageSize) >= paging.TotalRecordCount {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	var err error
	switch format {
	case FormatXLSX:
		err = writeXLSX(w, sheetName(list.Name), records)
	default:
		err = writeCSV(w, records)
	}
	if err != nil {
		return 0, err
	}

	rows := len(records) - 1
	s.logger.Info("patient list exported", "patient_list", list.Name, "format", string(format), "rows", rows)
	return rows, nil
}

// FileName returns the download file name for an export of list.
func (s *Service) FileName(list domain.PatientList, format Format) string {
	return fmt.Sprintf("%s-%s.%s", sanitizeFileComponent(list.Name), s.now().UTC().Format("20060102-150405"), format)
}

// templateColumns lists the registered fields the header and body templates
// reference, in order of first appearance.
func (s *Service) templateColumns(list domain.PatientList) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range append(render.Fields(list.HeaderTemplate), render.Fields(list.BodyTemplate)...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := s.registry.Lookup(name); ok {
			out = append(out, name)
		}
	}
	return out
}

func (s *Service) headerRow(columns []string) []string {
	header := []string{"patient_id", "visit_id", "header", "body"}
	return append(header, columns...)
}

func (s *Service) record(item domain.PatientListData, columns []string) []string {
	visitID := ""
	if item.Visit != nil {
		visitID = item.Visit.ID.String()
	}
	record := []string{item.Patient.ID.String(), visitID, item.HeaderContent, item.BodyContent}
	for _, name := range columns {
		record = append(record, s.fieldValue(name, item))
	}
	return record
}

func (s *Service) fieldValue(name string, item domain.PatientListData) string {
	d, ok := s.registry.Lookup(name)
	if !ok {
		return ""
	}
	value, ok := d.Extract(&item.Patient, item.Visit)
	if !ok {
		return ""
	}
	return render.FormatValue(value)
}

func writeCSV(w io.Writer, records [][]string) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, sheet string, records [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]any, len(record))
		for j, value := range record {
			row[j] = value
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

// sheetName trims a list name to a valid worksheet name.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "Patients"
	}
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "export"
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}
