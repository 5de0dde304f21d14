package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/example/theorybot/pkg/models"
)

const exportSheet = "Questions"

// WriteJSON writes questions in the canonical {"questions": [...]} form
func WriteJSON(w io.Writer, questions []models.Question) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Questions []models.Question `json:"questions"`
	}{questions}); err != nil {
		return fmt.Errorf("failed to write questions: %w", err)
	}
	return nil
}

// WriteXLSX writes questions as a spreadsheet in the export column layout
func WriteXLSX(path string, questions []models.Question) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := lo.Map(exportColumns, func(name string, _ int) interface{} { return name })
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, q := range questions {
		row := exportRow(q)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func exportRow(q models.Question) []interface{} {
	options := lo.Map(q.Options, func(text string, i int) string {
		return letterOf(i) + " " + text
	})

	var correct []string
	if q.IsMultipleChoice() {
		correct = lo.Map(q.CorrectIndices, func(i int, _ int) string {
			return letterOf(i) + " " + q.Options[i]
		})
	} else {
		correct = q.CorrectAnswers
	}

	return []interface{}{
		q.ThemeNumber,
		q.ThemeName,
		q.ChapterNumber,
		q.ChapterName,
		q.ID,
		"",
		q.Points,
		q.Text,
		strings.Join(options, "; "),
		strings.Join(correct, "; "),
		q.Explanation,
		q.Image,
		q.Video,
		"",
	}
}
