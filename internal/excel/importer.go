// Package excel imports the curriculum catalogue from spreadsheets
// produced by the content-authoring team into the graph store.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/example/learncore/internal/graph"
	"github.com/example/learncore/internal/resolver"
	"github.com/example/learncore/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath            string // Path to the Excel or CSV file
	DisplayColumn       string // Column with the item's display form
	KindColumn          string // Column with the kind (word/grammar/competency)
	LevelColumn         string // Column with the level, e.g. A1
	DomainColumn        string // Column with the skill domain
	PositionColumn      string // Column with the curriculum position
	PrerequisitesColumn string // Column with |-separated prerequisite forms
	SimilarColumn       string // Column with |-separated similar forms
	SheetName           string // Name of the sheet to import
	StartRow            int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		DisplayColumn:       "A",
		KindColumn:          "B",
		LevelColumn:         "C",
		DomainColumn:        "D",
		PositionColumn:      "E",
		PrerequisitesColumn: "F",
		SimilarColumn:       "G",
		SheetName:           "Sheet1",
		StartRow:            2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Upserted       int
	LinksCreated   int
	Skipped        int
	Errors         []string
}

type itemRow struct {
	item    models.Item
	prereqs []string
	similar []string
}

// ImportItems imports curriculum items from an Excel or CSV file. The
// import is idempotent: rows merge by (kind, canonical_form) and relink
// edges, so re-running a corrected sheet converges.
func ImportItems(ctx context.Context, store *graph.Store, config ImportConfig) (*ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	var parsed []itemRow

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow {
			continue
		}
		result.TotalProcessed++

		ir, err := parseRow(row, config)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		parsed = append(parsed, ir)
	}

	// Two passes: create every node first so links can reference items
	// defined later in the sheet
	for i := range parsed {
		ir := &parsed[i]
		id, err := store.UpsertItem(ctx, &ir.item)
		if err != nil {
			return result, fmt.Errorf("failed to upsert item %q: %v", ir.item.Display, err)
		}
		ir.item.ID = id
		result.Upserted++
	}

	for _, ir := range parsed {
		for _, p := range ir.prereqs {
			if err := store.LinkPrerequisite(ctx, ir.item.ID, ir.item.Kind, p); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("prerequisite %q -> %q: %v", ir.item.CanonicalForm, p, err))
				continue
			}
			result.LinksCreated++
		}
		for _, sim := range ir.similar {
			if err := store.LinkSimilar(ctx, ir.item.ID, ir.item.Kind, sim); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("similar %q -> %q: %v", ir.item.CanonicalForm, sim, err))
				continue
			}
			result.LinksCreated++
		}
	}

	return result, nil
}

// readRows loads raw rows from either format by extension
func readRows(config ImportConfig) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return readCSV(config.FilePath)
	}
	return readExcel(config)
}

func readExcel(config ImportConfig) ([][]string, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %v", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %v", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(row []string, config ImportConfig) (itemRow, error) {
	cell := func(col string) string {
		if idx := columnToIndex(col); idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	display := cell(config.DisplayColumn)
	if display == "" {
		return itemRow{}, fmt.Errorf("empty display form")
	}
	kind := strings.ToLower(cell(config.KindColumn))
	if !models.ValidKind(kind) {
		return itemRow{}, fmt.Errorf("unknown kind %q", kind)
	}
	position, err := strconv.Atoi(cell(config.PositionColumn))
	if err != nil || position < 0 {
		return itemRow{}, fmt.Errorf("invalid position %q", cell(config.PositionColumn))
	}

	ir := itemRow{
		item: models.Item{
			ID:            uuid.NewString(),
			Kind:          kind,
			Level:         strings.ToUpper(cell(config.LevelColumn)),
			Domain:        strings.ToLower(cell(config.DomainColumn)),
			Position:      position,
			CanonicalForm: resolver.Canonicalize(display),
			Display:       display,
		},
	}
	ir.prereqs = splitForms(cell(config.PrerequisitesColumn))
	ir.similar = splitForms(cell(config.SimilarColumn))
	return ir, nil
}

// splitForms parses a |-separated list of referenced forms, canonicalized
// the same way mentions are so links land on the right nodes
func splitForms(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if c := resolver.Canonicalize(part); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// columnToIndex converts a column letter (A, B, ... AA) to a zero-based index
func columnToIndex(col string) int {
	col = strings.ToUpper(strings.TrimSpace(col))
	if col == "" {
		return -1
	}
	idx := 0
	for _, r := range col {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A') + 1
	}
	return idx - 1
}
