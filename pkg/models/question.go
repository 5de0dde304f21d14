package models

// Question is one immutable item of the driving-theory corpus.
// An empty Options list marks a fill-in-the-blank question.
type Question struct {
	ID             string   `json:"id"`
	Text           string   `json:"question"`
	ThemeNumber    string   `json:"theme_number,omitempty"`
	ThemeName      string   `json:"theme_name,omitempty"`
	ChapterNumber  string   `json:"chapter_number,omitempty"`
	ChapterName    string   `json:"chapter_name,omitempty"`
	Points         string   `json:"points,omitempty"`
	Options        []string `json:"options"`
	CorrectAnswers []string `json:"correct_answers"`
	CorrectIndices []int    `json:"-"`
	Explanation    string   `json:"explanation,omitempty"`
	Image          string   `json:"image,omitempty"`
	Video          string   `json:"video,omitempty"`
	Language       string   `json:"language,omitempty"`
}

// IsMultipleChoice reports whether the question is answered by option letters
func (q *Question) IsMultipleChoice() bool {
	return len(q.Options) > 0
}
