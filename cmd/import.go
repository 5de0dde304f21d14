package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/example/theorybot/internal/catalog"
	"github.com/example/theorybot/internal/config"
	"github.com/example/theorybot/internal/logger"
	"github.com/example/theorybot/pkg/models"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Check a question file and convert it to the canonical JSON or XLSX form",
	Example: `  theorybot import --input questions.csv --language deutsch --out driving_theory_questions_de.json
  theorybot import --input driving_theory_questions.json --xlsx-out questions.xlsx`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("input", "i", "", "question file (.json, .csv or .xlsx)")
	importCmd.Flags().StringP("language", "l", models.LanguageEnglish, "language of the questions (english or deutsch)")
	importCmd.Flags().StringP("out", "o", "", "write canonical JSON here, - for standard output")
	importCmd.Flags().String("xlsx-out", "", "write a canonical XLSX sheet here")
	cobra.CheckErr(importCmd.MarkFlagRequired("input"))
}

func runImport(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	language, _ := cmd.Flags().GetString("language")
	out, _ := cmd.Flags().GetString("out")
	xlsxOut, _ := cmd.Flags().GetString("xlsx-out")

	if language != models.LanguageEnglish && language != models.LanguageDeutsch {
		return fmt.Errorf("unknown language %q", language)
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	questions := catalog.New(log, catalog.Source{Language: language, Path: input})
	if err := questions.Load(); err != nil {
		return err
	}
	all := questions.Questions(language)

	reportCounts(cmd.ErrOrStderr(), input, all)

	if out != "" {
		if err := writeJSON(cmd.OutOrStdout(), out, all); err != nil {
			return err
		}
	}
	if xlsxOut != "" {
		if err := catalog.WriteXLSX(filepath.Clean(xlsxOut), all); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", xlsxOut)
	}
	return nil
}

func reportCounts(w io.Writer, input string, questions []models.Question) {
	multipleChoice := lo.CountBy(questions, func(q models.Question) bool { return q.IsMultipleChoice() })
	images := lo.CountBy(questions, func(q models.Question) bool { return q.Image != "" })
	videos := lo.CountBy(questions, func(q models.Question) bool { return q.Video != "" })
	unanswered := lo.CountBy(questions, func(q models.Question) bool { return len(q.CorrectAnswers) == 0 })

	fmt.Fprintf(w, "%s: %d questions\n", input, len(questions))
	fmt.Fprintf(w, "  multiple choice: %d\n", multipleChoice)
	fmt.Fprintf(w, "  fill-in:         %d\n", len(questions)-multipleChoice)
	fmt.Fprintf(w, "  with image:      %d\n", images)
	fmt.Fprintf(w, "  with video:      %d\n", videos)
	if unanswered > 0 {
		fmt.Fprintf(w, "  WARNING: %d questions have no correct answer\n", unanswered)
	}
}

func writeJSON(stdout io.Writer, path string, questions []models.Question) (err error) {
	if path == "-" {
		return catalog.WriteJSON(stdout, questions)
	}

	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return catalog.WriteJSON(file, questions)
}
