package catalog

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/example/theorybot/pkg/models"
)

// Number of draws tried before filtering the pool explicitly
const rejectionTries = 10

// Source names the corpus file of one language
type Source struct {
	Language string
	Path     string
}

// Catalog is the in-memory, read-only question corpus
type Catalog struct {
	sources []Source
	log     *logrus.Entry
	intn    func(n int) int

	mu     sync.RWMutex
	loaded bool
	pools  map[string][]*models.Question
	byID   map[string]map[string]*models.Question
	// english and deutsch questions in load order
	mixed []*models.Question
}

// New creates a catalog over the given sources. Nothing is read until Load.
func New(logger *logrus.Logger, sources ...Source) *Catalog {
	return &Catalog{
		sources: sources,
		log:     logger.WithField("component", "catalog"),
		intn:    rand.IntN,
		pools:   make(map[string][]*models.Question),
		byID:    make(map[string]map[string]*models.Question),
	}
}

// Load reads every source once. Later calls return immediately.
// A missing file leaves its language empty.
func (c *Catalog) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	for _, src := range c.sources {
		raws, err := readFile(src.Path)
		if errors.Is(err, os.ErrNotExist) {
			c.log.WithFields(logrus.Fields{"language": src.Language, "path": src.Path}).
				Warn("Question file not found, language has no questions")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s questions from %s: %w", src.Language, src.Path, err)
		}

		questions := lo.Map(raws, func(raw rawQuestion, _ int) models.Question {
			return normalize(raw, src.Language)
		})
		c.add(src.Language, questions)

		c.log.WithFields(logrus.Fields{"language": src.Language, "count": len(questions)}).Info("Questions loaded")
	}

	c.loaded = true
	return nil
}

// Add registers questions directly
func (c *Catalog) Add(language string, questions ...models.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(language, questions)
}

func (c *Catalog) add(language string, questions []models.Question) {
	for i := range questions {
		q := questions[i]
		q.Language = language
		if q.ID == "" {
			continue
		}
		if len(q.CorrectIndices) == 0 {
			q.CorrectIndices = correctIndices(q.Options, q.CorrectAnswers)
		}

		c.pools[language] = append(c.pools[language], &q)
		if language == models.LanguageEnglish || language == models.LanguageDeutsch {
			c.mixed = append(c.mixed, &q)
		}
		if c.byID[q.ID] == nil {
			c.byID[q.ID] = make(map[string]*models.Question)
		}
		c.byID[q.ID][language] = &q
	}
}

// ByID returns the question in the requested language, else the copy of
// any other language, english first
func (c *Catalog) ByID(id, language string) (*models.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copies, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	for _, lang := range []string{language, models.LanguageEnglish, models.LanguageDeutsch} {
		if q, ok := copies[lang]; ok {
			return q, true
		}
	}
	for _, lang := range lo.Keys(copies) {
		return copies[lang], true
	}
	return nil, false
}

// Random draws uniformly from the language pool minus exclude.
// When every question is excluded it draws from the whole pool.
func (c *Catalog) Random(language string, exclude map[string]struct{}) (*models.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pool := c.pool(language)
	if len(pool) == 0 {
		return nil, false
	}
	if len(exclude) == 0 {
		return pool[c.intn(len(pool))], true
	}

	for i := 0; i < rejectionTries; i++ {
		q := pool[c.intn(len(pool))]
		if _, skip := exclude[q.ID]; !skip {
			return q, true
		}
	}

	available := lo.Filter(pool, func(q *models.Question, _ int) bool {
		_, skip := exclude[q.ID]
		return !skip
	})
	if len(available) == 0 {
		available = pool
	}
	return available[c.intn(len(available))], true
}

// Count returns the number of questions served for a language
func (c *Catalog) Count(language string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pool(language))
}

// Languages returns the languages that have questions, sorted
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	langs := lo.Filter(lo.Keys(c.pools), func(lang string, _ int) bool { return len(c.pools[lang]) > 0 })
	sort.Strings(langs)
	return langs
}

// Questions returns a copy of the pool of a language
func (c *Catalog) Questions(language string) []models.Question {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Map(c.pool(language), func(q *models.Question, _ int) models.Question { return *q })
}

func (c *Catalog) pool(language string) []*models.Question {
	if language == models.LanguageMixed {
		return c.mixed
	}
	return c.pools[language]
}
