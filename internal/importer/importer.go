// Package importer bulk-loads a study plan from a spreadsheet: one row
// per topic with theme, discipline and planned date columns.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/medplan/pkg/models"
)

// Config defines an import run.
type Config struct {
	FilePath   string // .xlsx or .csv
	UserID     int64  // owner of the created topics
	SheetName  string // Excel sheet, defaults to Sheet1
	SkipHeader bool
}

// DefaultConfig returns the default import configuration.
func DefaultConfig(path string, userID int64) Config {
	return Config{
		FilePath:   path,
		UserID:     userID,
		SheetName:  "Sheet1",
		SkipHeader: true,
	}
}

// Result holds the outcome of an import run.
type Result struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// TopicCreator is the slice of topic persistence the importer needs.
type TopicCreator interface {
	ExistsByTheme(ctx context.Context, userID int64, theme string) (bool, error)
	Create(ctx context.Context, topic *models.StudyTopic) error
}

// Row layout: theme, discipline, planned date (YYYY-MM-DD or DD/MM/YYYY).
const (
	colTheme = iota
	colDiscipline
	colPlannedDate
)

// ImportPlan reads the file and creates one study topic per row. Rows
// whose theme the user already has are skipped; malformed rows are
// recorded in Result.Errors without aborting the run.
func ImportPlan(ctx context.Context, topics TopicCreator, cfg Config) (*Result, error) {
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}

	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(cfg.FilePath)) == ".csv" {
		rows, err = readCSV(cfg.FilePath)
	} else {
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Errors: make([]string, 0)}
	for i, row := range rows {
		if i == 0 && cfg.SkipHeader {
			continue
		}
		result.TotalProcessed++
		if err := importRow(ctx, topics, cfg.UserID, row); err != nil {
			if err == errDuplicate {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		result.Created++
	}
	return result, nil
}

var errDuplicate = fmt.Errorf("duplicate theme")

func importRow(ctx context.Context, topics TopicCreator, userID int64, row []string) error {
	theme := cell(row, colTheme)
	if theme == "" {
		return fmt.Errorf("missing theme")
	}

	planned, err := parseDate(cell(row, colPlannedDate))
	if err != nil {
		return err
	}

	exists, err := topics.ExistsByTheme(ctx, userID, theme)
	if err != nil {
		return err
	}
	if exists {
		return errDuplicate
	}

	return topics.Create(ctx, &models.StudyTopic{
		UserID:      userID,
		Theme:       theme,
		Discipline:  cell(row, colDiscipline),
		PlannedDate: planned,
	})
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing planned date")
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable planned date %q", raw)
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
