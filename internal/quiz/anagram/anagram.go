// Package anagram supplies scrambled-word questions from a JSON corpus of
// words and their dictionary definitions.
package anagram

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"telegram-trivia-bot/internal/engine"
)

// definition is one dictionary sense of a corpus word.
type definition struct {
	PartOfSpeech string `json:"partOfSpeech"`
	Definition   string `json:"definition"`
}

// entry is the corpus value for a word.
type entry struct {
	Definitions []definition `json:"definitions"`
}

// Source implements engine.QuestionSource over a word corpus file. The
// corpus is a JSON object mapping each word to its definitions and is loaded
// once, on first use.
type Source struct {
	corpusPath string

	mu     sync.Mutex
	words  []string
	corpus map[string]entry
}

// New creates a source reading from the corpus file at path.
func New(path string) *Source {
	return &Source{corpusPath: path}
}

// Fetch samples count distinct words and turns each into a question: the
// scrambled word as the prompt, the first letter and then the definitions as
// hint tiers. A corpus smaller than count cannot supply the game and yields
// ErrSourceExhausted. The filter argument is unused for anagrams.
func (s *Source) Fetch(ctx context.Context, count int, filter string) ([]engine.Question, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid question count %d", count)
	}
	if count > len(s.words) {
		return nil, fmt.Errorf("corpus has %d words, %d requested: %w",
			len(s.words), count, engine.ErrSourceExhausted)
	}

	questions := make([]engine.Question, 0, count)
	for _, i := range rand.Perm(len(s.words))[:count] {
		word := s.words[i]
		questions = append(questions, buildQuestion(word, s.corpus[word]))
	}
	return questions, nil
}

// load reads and indexes the corpus once.
func (s *Source) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corpus != nil {
		return nil
	}

	data, err := os.ReadFile(s.corpusPath)
	if err != nil {
		return fmt.Errorf("failed to read corpus: %w", err)
	}

	var corpus map[string]entry
	if err := json.Unmarshal(data, &corpus); err != nil {
		return fmt.Errorf("failed to parse corpus: %w", err)
	}

	words := make([]string, 0, len(corpus))
	for word := range corpus {
		words = append(words, strings.ToLower(word))
	}

	s.corpus = corpus
	s.words = words

	log.Info().Str("path", s.corpusPath).Int("words", len(words)).Msg("Anagram corpus loaded")
	return nil
}

// buildQuestion assembles the question for one word.
func buildQuestion(word string, e entry) engine.Question {
	hints := []engine.Hint{{Name: "First letter", Value: string([]rune(word)[0])}}
	details := make([]engine.Hint, 0, len(e.Definitions))
	for _, d := range e.Definitions {
		if d.Definition == "" {
			continue
		}
		hints = append(hints, engine.Hint{Name: "Definition", Value: d.Definition})
		name := d.PartOfSpeech
		if name == "" {
			name = "Definition"
		}
		details = append(details, engine.Hint{Name: name, Value: d.Definition})
	}
	return engine.Question{
		Answer:  word,
		Prompt:  Scramble(word),
		Hints:   hints,
		Details: details,
	}
}

// Scramble shuffles the letters of word into an anagram. For words with at
// least two distinct letters the result is never the word itself.
func Scramble(word string) string {
	letters := []rune(word)
	if len(letters) < 2 {
		return word
	}

	distinct := false
	for _, r := range letters[1:] {
		if r != letters[0] {
			distinct = true
			break
		}
	}

	for {
		rand.Shuffle(len(letters), func(i, j int) {
			letters[i], letters[j] = letters[j], letters[i]
		})
		if !distinct || string(letters) != word {
			return string(letters)
		}
	}
}
