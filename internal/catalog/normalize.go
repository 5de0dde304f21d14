package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/example/theorybot/pkg/models"
)

// flexString accepts a JSON string or number
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// rawOption is an answer option as scraped ({"letter", "text"}) or a plain string
type rawOption struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

func (o *rawOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &o.Text)
	}
	type plain rawOption
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = rawOption(v)
	return nil
}

// rawQuestion covers both the scraper output and the canonical question layout
type rawQuestion struct {
	ID             flexString `json:"id"`
	QuestionID     flexString `json:"question_id"`
	QuestionNumber flexString `json:"question_number"`

	QuestionText string `json:"question_text"`
	Question     string `json:"question"`

	ThemeNumber   flexString `json:"theme_number"`
	ThemeName     string     `json:"theme_name"`
	ChapterNumber flexString `json:"chapter_number"`
	ChapterName   string     `json:"chapter_name"`
	Points        flexString `json:"points"`

	Options             []rawOption `json:"options"`
	CorrectAnswers      []rawOption `json:"correct_answers"`
	CorrectAnswersCamel []rawOption `json:"correctAnswers"`
	CorrectAnswer       *rawOption  `json:"correct_answer"`

	Comment     string `json:"comment"`
	Explanation string `json:"explanation"`

	LocalImagePaths []string `json:"local_image_paths"`
	LocalVideoPaths []string `json:"local_video_paths"`
	Image           string   `json:"image"`
	Video           string   `json:"video"`
}

// normalize converts a raw record into the question shape used everywhere else
func normalize(raw rawQuestion, language string) models.Question {
	q := models.Question{
		ID:            strings.TrimSpace(string(lo.CoalesceOrEmpty(raw.QuestionID, raw.QuestionNumber, raw.ID))),
		Text:          lo.CoalesceOrEmpty(raw.QuestionText, raw.Question),
		ThemeNumber:   string(raw.ThemeNumber),
		ThemeName:     raw.ThemeName,
		ChapterNumber: string(raw.ChapterNumber),
		ChapterName:   raw.ChapterName,
		Points:        string(raw.Points),
		Explanation:   lo.CoalesceOrEmpty(raw.Comment, raw.Explanation),
		Image:         lo.CoalesceOrEmpty(lo.FirstOrEmpty(raw.LocalImagePaths), raw.Image),
		Video:         lo.CoalesceOrEmpty(lo.FirstOrEmpty(raw.LocalVideoPaths), raw.Video),
		Language:      language,
	}

	q.Options = lo.FilterMap(raw.Options, func(o rawOption, _ int) (string, bool) {
		return o.Text, o.Text != ""
	})

	answers := raw.CorrectAnswers
	if len(answers) == 0 {
		answers = raw.CorrectAnswersCamel
	}
	if len(answers) == 0 && raw.CorrectAnswer != nil {
		answers = []rawOption{*raw.CorrectAnswer}
	}

	if q.IsMultipleChoice() {
		q.CorrectAnswers = lo.FilterMap(answers, func(a rawOption, _ int) (string, bool) {
			return a.Text, a.Text != ""
		})
	} else {
		// Fill-in answers are stored in the letter field
		q.CorrectAnswers = lo.FilterMap(answers, func(a rawOption, _ int) (string, bool) {
			answer := lo.CoalesceOrEmpty(a.Letter, a.Text)
			return answer, answer != ""
		})
	}

	q.CorrectIndices = correctIndices(q.Options, q.CorrectAnswers)
	return q
}

func correctIndices(options, correct []string) []int {
	indices := make([]int, 0, len(correct))
	for i, option := range options {
		if lo.Contains(correct, option) {
			indices = append(indices, i)
		}
	}
	return indices
}

// parseLetteredList splits the export form "A first; B second" into options
func parseLetteredList(value string) []rawOption {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, "; ")
	options := make([]rawOption, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		letter, text, found := strings.Cut(part, " ")
		if !found {
			// Fill-in answers carry only the value
			options = append(options, rawOption{Letter: part})
			continue
		}
		options = append(options, rawOption{Letter: letter, Text: strings.TrimSpace(text)})
	}
	return options
}

// parseFillIns splits the export form of fill-in answers, kept whole
func parseFillIns(value string) []rawOption {
	return lo.Map(splitPaths(value), func(answer string, _ int) rawOption {
		return rawOption{Letter: answer}
	})
}

// splitPaths splits a "; " joined list of media paths
func splitPaths(value string) []string {
	return lo.FilterMap(strings.Split(value, ";"), func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
}

// letterOf returns the option letter for index i
func letterOf(i int) string {
	if i < 0 || i >= 26 {
		return strconv.Itoa(i + 1)
	}
	return string(rune('A' + i))
}
