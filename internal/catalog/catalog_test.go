package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/theorybot/pkg/models"
)

const scraperJSON = `[
  {
    "theme_number": "1",
    "theme_name": "Danger theory",
    "chapter_number": "1.1",
    "chapter_name": "Basic forms of road traffic behaviour",
    "question_id": "1.1.01-001",
    "question_number": 1,
    "points": 4,
    "question_text": "What behaviour is correct?",
    "options": [
      {"letter": "A", "text": "Slow down"},
      {"letter": "B", "text": "Honk"},
      {"letter": "C", "text": "Brake carefully"}
    ],
    "correct_answers": [
      {"letter": "A", "text": "Slow down"},
      {"letter": "C", "text": "Brake carefully"}
    ],
    "comment": "Always be ready to brake.",
    "local_image_paths": ["images/1.jpg", "images/2.jpg"],
    "local_video_paths": []
  },
  {
    "question_id": "2.7.01-010",
    "question_text": "How many metres is the stopping distance?",
    "options": [],
    "correct_answers": [{"letter": "12,5", "text": ""}],
    "local_video_paths": ["videos/q.mp4"]
  }
]`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScraperJSON(t *testing.T) {
	path := writeFile(t, "en.json", scraperJSON)
	c := New(testLogger(), Source{Language: models.LanguageEnglish, Path: path})
	require.NoError(t, c.Load())

	assert.Equal(t, 2, c.Count(models.LanguageEnglish))

	q, ok := c.ByID("1.1.01-001", models.LanguageEnglish)
	require.True(t, ok)
	assert.Equal(t, "What behaviour is correct?", q.Text)
	assert.Equal(t, []string{"Slow down", "Honk", "Brake carefully"}, q.Options)
	assert.Equal(t, []string{"Slow down", "Brake carefully"}, q.CorrectAnswers)
	assert.Equal(t, []int{0, 2}, q.CorrectIndices)
	assert.Equal(t, "Always be ready to brake.", q.Explanation)
	assert.Equal(t, "images/1.jpg", q.Image)
	assert.Equal(t, "", q.Video)
	assert.Equal(t, "4", q.Points)
	assert.Equal(t, "Danger theory", q.ThemeName)
	assert.True(t, q.IsMultipleChoice())

	fill, ok := c.ByID("2.7.01-010", models.LanguageEnglish)
	require.True(t, ok)
	assert.False(t, fill.IsMultipleChoice())
	assert.Equal(t, []string{"12,5"}, fill.CorrectAnswers)
	assert.Equal(t, "videos/q.mp4", fill.Video)
}

func TestLoadIsIdempotentAndToleratesMissingFiles(t *testing.T) {
	path := writeFile(t, "en.json", scraperJSON)
	c := New(testLogger(),
		Source{Language: models.LanguageEnglish, Path: path},
		Source{Language: models.LanguageDeutsch, Path: filepath.Join(t.TempDir(), "missing.json")},
	)

	require.NoError(t, c.Load())
	require.NoError(t, c.Load())

	assert.Equal(t, 2, c.Count(models.LanguageEnglish))
	assert.Equal(t, 0, c.Count(models.LanguageDeutsch))
	assert.Equal(t, []string{models.LanguageEnglish}, c.Languages())

	_, ok := c.Random(models.LanguageDeutsch, nil)
	assert.False(t, ok)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeFile(t, "questions.txt", "nope")
	c := New(testLogger(), Source{Language: models.LanguageEnglish, Path: path})
	assert.ErrorIs(t, c.Load(), ErrUnsupportedFormat)
}

func TestLoadCanonicalJSON(t *testing.T) {
	path := writeFile(t, "de.json", `{"questions": [
		{"id": "x1", "question": "Frage?", "options": ["Ja", "Nein"], "correct_answers": ["Nein"], "explanation": "Weil."}
	]}`)
	c := New(testLogger(), Source{Language: models.LanguageDeutsch, Path: path})
	require.NoError(t, c.Load())

	q, ok := c.ByID("x1", models.LanguageDeutsch)
	require.True(t, ok)
	assert.Equal(t, []int{1}, q.CorrectIndices)
	assert.Equal(t, "Weil.", q.Explanation)
	assert.Equal(t, models.LanguageDeutsch, q.Language)
}

func TestLoadCSV(t *testing.T) {
	csv := "theme_number,theme_name,chapter_number,chapter_name,question_id,question_number,points,question_text,options,correct_answers,comment,image_paths,video_paths,url\n" +
		`1,Theme,1.1,Chapter,c-1,1,3,Pick one,"A Red; B Green","B Green",Because,img/a.png; img/b.png,,http://x` + "\n" +
		`1,Theme,1.1,Chapter,c-2,2,2,Type it,,"1 500",,,,` + "\n"
	path := writeFile(t, "q.csv", csv)

	c := New(testLogger(), Source{Language: models.LanguageEnglish, Path: path})
	require.NoError(t, c.Load())

	q, ok := c.ByID("c-1", models.LanguageEnglish)
	require.True(t, ok)
	assert.Equal(t, []string{"Red", "Green"}, q.Options)
	assert.Equal(t, []int{1}, q.CorrectIndices)
	assert.Equal(t, "img/a.png", q.Image)

	fill, ok := c.ByID("c-2", models.LanguageEnglish)
	require.True(t, ok)
	assert.Equal(t, []string{"1 500"}, fill.CorrectAnswers)
}

func TestXLSXRoundTrip(t *testing.T) {
	source := New(testLogger(), Source{Language: models.LanguageEnglish, Path: writeFile(t, "en.json", scraperJSON)})
	require.NoError(t, source.Load())

	out := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, WriteXLSX(out, source.Questions(models.LanguageEnglish)))

	c := New(testLogger(), Source{Language: models.LanguageEnglish, Path: out})
	require.NoError(t, c.Load())
	require.Equal(t, 2, c.Count(models.LanguageEnglish))

	q, ok := c.ByID("1.1.01-001", models.LanguageEnglish)
	require.True(t, ok)
	assert.Equal(t, []int{0, 2}, q.CorrectIndices)

	fill, ok := c.ByID("2.7.01-010", models.LanguageEnglish)
	require.True(t, ok)
	assert.Equal(t, []string{"12,5"}, fill.CorrectAnswers)
}

func TestWriteJSONIsLoadable(t *testing.T) {
	source := New(testLogger(), Source{Language: models.LanguageEnglish, Path: writeFile(t, "en.json", scraperJSON)})
	require.NoError(t, source.Load())

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, source.Questions(models.LanguageEnglish)))

	c := New(testLogger(), Source{Language: models.LanguageEnglish, Path: writeFile(t, "canonical.json", buf.String())})
	require.NoError(t, c.Load())

	q, ok := c.ByID("1.1.01-001", models.LanguageEnglish)
	require.True(t, ok)
	assert.Equal(t, []int{0, 2}, q.CorrectIndices)
	assert.Equal(t, "images/1.jpg", q.Image)
}

func TestByIDFallsBackAcrossLanguages(t *testing.T) {
	c := New(testLogger())
	c.Add(models.LanguageEnglish, models.Question{ID: "a", Text: "english a"})
	c.Add(models.LanguageDeutsch, models.Question{ID: "a", Text: "deutsch a"}, models.Question{ID: "b", Text: "deutsch b"})

	q, ok := c.ByID("a", models.LanguageDeutsch)
	require.True(t, ok)
	assert.Equal(t, "deutsch a", q.Text)

	q, ok = c.ByID("a", models.LanguageMixed)
	require.True(t, ok)
	assert.Equal(t, "english a", q.Text)

	q, ok = c.ByID("b", models.LanguageEnglish)
	require.True(t, ok)
	assert.Equal(t, "deutsch b", q.Text)

	_, ok = c.ByID("zzz", models.LanguageEnglish)
	assert.False(t, ok)
}

func TestRandomRespectsExclusion(t *testing.T) {
	c := New(testLogger())
	c.Add(models.LanguageEnglish,
		models.Question{ID: "1"}, models.Question{ID: "2"}, models.Question{ID: "3"},
	)

	exclude := map[string]struct{}{"1": {}, "3": {}}
	for i := 0; i < 50; i++ {
		q, ok := c.Random(models.LanguageEnglish, exclude)
		require.True(t, ok)
		assert.Equal(t, "2", q.ID)
	}
}

func TestRandomFallsBackWhenExhausted(t *testing.T) {
	c := New(testLogger())
	c.Add(models.LanguageEnglish, models.Question{ID: "1"}, models.Question{ID: "2"})

	exclude := map[string]struct{}{"1": {}, "2": {}}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		q, ok := c.Random(models.LanguageEnglish, exclude)
		require.True(t, ok)
		seen[q.ID] = true
	}
	assert.True(t, seen["1"] && seen["2"])
}

func TestRandomMixedUsesBothLanguages(t *testing.T) {
	c := New(testLogger())
	c.Add(models.LanguageEnglish, models.Question{ID: "en"})
	c.Add(models.LanguageDeutsch, models.Question{ID: "de"})

	assert.Equal(t, 2, c.Count(models.LanguageMixed))

	// Deterministic draw: always the last element
	c.intn = func(n int) int { return n - 1 }
	q, ok := c.Random(models.LanguageMixed, nil)
	require.True(t, ok)
	assert.Equal(t, "de", q.ID)
	assert.Equal(t, models.LanguageDeutsch, q.Language)
}

func TestRandomMixedDoesNotCopyPools(t *testing.T) {
	c := New(testLogger())
	for i := 0; i < 50; i++ {
		c.Add(models.LanguageEnglish, models.Question{ID: fmt.Sprintf("en-%d", i)})
		c.Add(models.LanguageDeutsch, models.Question{ID: fmt.Sprintf("de-%d", i)})
	}
	c.intn = func(n int) int { return 0 }

	allocs := testing.AllocsPerRun(100, func() {
		c.Random(models.LanguageMixed, nil)
		c.Count(models.LanguageMixed)
	})
	assert.Zero(t, allocs)
	assert.Equal(t, 100, c.Count(models.LanguageMixed))
	assert.Equal(t, []string{models.LanguageDeutsch, models.LanguageEnglish}, c.Languages())
}
