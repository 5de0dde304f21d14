package quiz

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/theorybot/pkg/models"
)

func TestParseAnswerLetters(t *testing.T) {
	tests := []struct {
		input string
		want  []int
	}{
		{"A", []int{0}},
		{"ab", []int{0, 1}},
		{"A,B", []int{0, 1}},
		{"c a", []int{2, 0}},
		{"AAB", []int{0, 1}},
		{"1 2 3", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAnswerLetters(tt.input)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSameSet(t *testing.T) {
	assert.True(t, sameSet([]int{0, 2}, []int{2, 0}))
	assert.True(t, sameSet([]int{1, 1}, []int{1}))
	assert.False(t, sameSet([]int{0}, []int{0, 2}))
	assert.False(t, sameSet([]int{0, 1}, []int{0, 2}))
	assert.False(t, sameSet([]int{0}, nil))
}

func TestMatchFillIn(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		correct []string
		want    bool
		shown   string
	}{
		{"comma decimal", "12,5", []string{"12.5"}, true, "12.5"},
		{"period against comma", "12.5", []string{"12,5"}, true, "12,5"},
		{"spaces ignored", "1 500", []string{"1500"}, true, "1500"},
		{"case insensitive", "ABS", []string{"abs"}, true, "abs"},
		{"second alternative", "20", []string{"", "10", "20"}, true, "20"},
		{"wrong shows first", "7", []string{"10", "20"}, false, "10"},
		{"no answers", "7", nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, shown := matchFillIn(tt.answer, tt.correct)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.shown, shown)
		})
	}
}

func TestParseLanguage(t *testing.T) {
	for token, want := range map[string]string{
		"1":      models.LanguageEnglish,
		" E ":    models.LanguageEnglish,
		"German": models.LanguageDeutsch,
		"d":      models.LanguageDeutsch,
		"3":      models.LanguageMixed,
		"MIXED":  models.LanguageMixed,
	} {
		got, ok := parseLanguage(token)
		assert.True(t, ok, token)
		assert.Equal(t, want, got, token)
	}

	_, ok := parseLanguage("4")
	assert.False(t, ok)
}

func TestQuestionTextHeader(t *testing.T) {
	q := &models.Question{ID: "1.2.3", Text: "Why?", ThemeName: "Theme", ChapterName: "Chapter", Points: "4"}
	assert.Equal(t, "📚 Theme\n📖 Chapter\n🔢 1.2.3\n⭐ 4\n🔄 Review Question\n\n❓ Why?", questionText(q, true))
	assert.Equal(t, "❓ Why?", questionText(&models.Question{Text: "Why?"}, false))
}

func TestLockTablePrunesUnusedLocks(t *testing.T) {
	table := newLockTable(2)

	for id := int64(1); id <= 5; id++ {
		unlock := table.lock(id)
		unlock()
	}
	assert.LessOrEqual(t, table.size(), 2)

	held := table.lock(10)
	for id := int64(20); id < 25; id++ {
		table.lock(id)()
	}
	_, present := table.locks[10]
	assert.True(t, present, "a held lock is never pruned")
	held()
}

func TestLockTableSerializesUser(t *testing.T) {
	table := newLockTable(1000)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.lock(7)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 1, table.size())
}
