package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/submissionmetadata/internal/models"
)

const (
	DefaultReportName = "Research_Papers_Metadata.xlsx"
	reportSheet       = "Sheet1"
)

// ReportBuilder renders flattened records as a spreadsheet.
type ReportBuilder struct {
	reportName string
}

func NewReportBuilder(reportName string) *ReportBuilder {
	if reportName == "" {
		reportName = DefaultReportName
	}
	return &ReportBuilder{reportName: reportName}
}

// ReportColumns returns the preferred columns present in records, followed by every
// other column in the order it was first seen.
func ReportColumns(records []models.Record) []string {
	present := make(map[string]bool)
	var discovered []string
	for _, rec := range records {
		for _, col := range rec.Columns() {
			if !present[col] {
				present[col] = true
				discovered = append(discovered, col)
			}
		}
	}

	preferred := make(map[string]bool, len(models.PreferredColumns))
	cols := make([]string, 0, len(discovered))
	for _, col := range models.PreferredColumns {
		preferred[col] = true
		if present[col] {
			cols = append(cols, col)
		}
	}
	for _, col := range discovered {
		if !preferred[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// Build writes the report into dir and returns its path. With no records nothing is
// written and the returned path is empty.
func (b *ReportBuilder) Build(records []models.Record, dir string) (string, error) {
	if len(records) == 0 {
		slog.Info("No results to save to the report.")
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	cols := ReportColumns(records)
	header := make([]interface{}, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}

	for i, rec := range records {
		row := make([]interface{}, len(cols))
		for j, col := range cols {
			if v, ok := rec.Get(col); ok {
				row[j] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", fmt.Errorf("report cell for row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return "", fmt.Errorf("write report row %d: %w", i+2, err)
		}
	}

	reportPath := filepath.Join(dir, b.reportName)
	if err := f.SaveAs(reportPath); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	slog.Info("Saved metadata report.", "papers", len(records), "path", reportPath)
	return reportPath, nil
}
