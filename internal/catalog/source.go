package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for corpus files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported question file format")

// Export column layout shared by CSV and XLSX files
var exportColumns = []string{
	"theme_number", "theme_name", "chapter_number", "chapter_name",
	"question_id", "question_number", "points", "question_text",
	"options", "correct_answers", "comment",
	"image_paths", "video_paths", "url",
}

// readFile reads raw questions from a JSON, CSV or XLSX corpus file
func readFile(path string) ([]rawQuestion, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return decodeJSON(data)
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return decodeCSV(file)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// decodeJSON accepts a bare scraper array or {"questions": [...]}
func decodeJSON(data []byte) ([]rawQuestion, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var raws []rawQuestion
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("failed to parse questions: %w", err)
		}
		return raws, nil
	}

	var wrapped struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}
	return wrapped.Questions, nil
}

func decodeCSV(r io.Reader) ([]rawQuestion, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return decodeRows(rows), nil
}

func readXLSX(path string) ([]rawQuestion, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return decodeRows(rows), nil
}

// decodeRows maps tabular rows to raw questions using the header row
func decodeRows(rows [][]string) []rawQuestion {
	if len(rows) < 2 {
		return nil
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	raws := make([]rawQuestion, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(name string) string {
			i, ok := header[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		raw := rawQuestion{
			QuestionID:      flexString(cell("question_id")),
			QuestionNumber:  flexString(cell("question_number")),
			QuestionText:    cell("question_text"),
			ThemeNumber:     flexString(cell("theme_number")),
			ThemeName:       cell("theme_name"),
			ChapterNumber:   flexString(cell("chapter_number")),
			ChapterName:     cell("chapter_name"),
			Points:          flexString(cell("points")),
			Options:         parseLetteredList(cell("options")),
			Comment:         cell("comment"),
			LocalImagePaths: splitPaths(cell("image_paths")),
			LocalVideoPaths: splitPaths(cell("video_paths")),
		}
		if len(raw.Options) > 0 {
			raw.CorrectAnswers = parseLetteredList(cell("correct_answers"))
		} else {
			raw.CorrectAnswers = parseFillIns(cell("correct_answers"))
		}

		if raw.QuestionID == "" && raw.QuestionNumber == "" && raw.QuestionText == "" {
			continue
		}
		raws = append(raws, raw)
	}
	return raws
}
