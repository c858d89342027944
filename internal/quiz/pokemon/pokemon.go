// Package pokemon supplies "Who's that Pokémon?" questions backed by the
// PokéAPI REST endpoints.
package pokemon

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"telegram-trivia-bot/internal/engine"
)

// regionRanges maps a Pokédex region to its national dex ID range.
var regionRanges = map[string][2]int{
	"kanto":  {1, 151},
	"johto":  {152, 251},
	"hoenn":  {252, 386},
	"sinnoh": {387, 493},
	"unova":  {494, 649},
	"kalos":  {650, 721},
	"alola":  {722, 809},
	"galar":  {810, 898},
	"all":    {1, 898},
}

// RegionRange returns the dex ID range for a region. An empty region means
// "all".
func RegionRange(region string) (start, end int, ok bool) {
	if region == "" {
		region = "all"
	}
	r, ok := regionRanges[strings.ToLower(region)]
	return r[0], r[1], ok
}

// Source implements engine.QuestionSource against the PokéAPI. A Pokémon
// whose data cannot be fetched is replaced with a fresh ID from the same
// region, excluding IDs already selected, so one bad entry never aborts the
// game; the replacement search is bounded by the region size.
type Source struct {
	client    *http.Client
	apiBase   string
	spriteURL string
}

// New creates a source talking to the API at apiBase. spriteURL is a
// template with an {id} placeholder for the artwork of a Pokémon.
func New(apiBase, spriteURL string) *Source {
	return &Source{
		client:    &http.Client{Timeout: 15 * time.Second},
		apiBase:   strings.TrimRight(apiBase, "/"),
		spriteURL: spriteURL,
	}
}

// Fetch returns count questions drawn from the given region's dex range.
// Requesting more questions than the region holds, or running the
// replacement search out of fresh IDs, yields ErrSourceExhausted.
func (s *Source) Fetch(ctx context.Context, count int, region string) ([]engine.Question, error) {
	start, end, ok := RegionRange(region)
	if !ok {
		return nil, fmt.Errorf("unknown region %q", region)
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid question count %d", count)
	}

	size := end - start + 1
	if count > size {
		return nil, fmt.Errorf("region %q has %d Pokémon, %d requested: %w",
			region, size, count, engine.ErrSourceExhausted)
	}

	// Shuffle the whole range once: the first count IDs are the picks, the
	// rest is the replacement pool. The search terminates when the pool is
	// drained.
	order := rand.Perm(size)
	ids := make([]int, count)
	for i := 0; i < count; i++ {
		ids[i] = start + order[i]
	}
	pool := order[count:]

	var mu sync.Mutex
	next := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(pool) == 0 {
			return 0, false
		}
		id := start + pool[0]
		pool = pool[1:]
		return id, true
	}

	questions := make([]engine.Question, count)
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			cur := id
			for {
				q, err := s.fetchOne(ctx, cur)
				if err == nil {
					questions[i] = q
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}

				replacement, ok := next()
				if !ok {
					return fmt.Errorf("no replacement left for %d: %w",
						cur, engine.ErrSourceExhausted)
				}
				log.Warn().
					Err(err).
					Int("id", cur).
					Int("replacement", replacement).
					Msg("Replacing Pokémon with failed data")
				cur = replacement
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return questions, nil
}

// pokemonData is the subset of the /pokemon/{id} payload we use.
type pokemonData struct {
	Species struct {
		Name string `json:"name"`
	} `json:"species"`
	Types []struct {
		Slot int `json:"slot"`
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
}

// speciesData is the subset of the /pokemon-species/{id} payload we use.
type speciesData struct {
	FlavorTextEntries []struct {
		FlavorText string `json:"flavor_text"`
		Language   struct {
			Name string `json:"name"`
		} `json:"language"`
	} `json:"flavor_text_entries"`
}

// fetchOne assembles the question for a single Pokémon.
func (s *Source) fetchOne(ctx context.Context, id int) (engine.Question, error) {
	var data pokemonData
	if err := s.getJSON(ctx, fmt.Sprintf("%s/pokemon/%d", s.apiBase, id), &data); err != nil {
		return engine.Question{}, err
	}

	var species speciesData
	if err := s.getJSON(ctx, fmt.Sprintf("%s/pokemon-species/%d", s.apiBase, id), &species); err != nil {
		return engine.Question{}, err
	}

	name := displayName(data.Species.Name)
	if name == "" {
		return engine.Question{}, fmt.Errorf("pokemon %d has no species name", id)
	}

	entry := englishFlavorText(species)
	if entry == "" {
		return engine.Question{}, fmt.Errorf("pokemon %d has no English Pokédex entry", id)
	}

	typeLine := formatTypes(data)
	return engine.Question{
		Answer:   name,
		Prompt:   "Who's that Pokémon?",
		ImageURL: strings.ReplaceAll(s.spriteURL, "{id}", fmt.Sprint(id)),
		Hints: []engine.Hint{
			{Name: "Type", Value: typeLine},
			{Name: "Pokédex", Value: Redact(entry, name)},
		},
		Details: []engine.Hint{
			{Name: "Type", Value: typeLine},
			{Name: "Pokédex", Value: entry},
		},
	}, nil
}

// getJSON performs a GET request and decodes the JSON response into out.
func (s *Source) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// displayName turns an API species name into the answer form: dashes become
// spaces and the first letter is capitalized ("mr-mime" -> "Mr mime").
func displayName(apiName string) string {
	name := strings.ReplaceAll(apiName, "-", " ")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// englishFlavorText picks the first English Pokédex entry, with the page
// control characters the API carries normalized to spaces.
func englishFlavorText(species speciesData) string {
	for _, e := range species.FlavorTextEntries {
		if e.Language.Name != "en" {
			continue
		}
		text := strings.NewReplacer("\n", " ", "\f", " ").Replace(e.FlavorText)
		return strings.Join(strings.Fields(text), " ")
	}
	return ""
}

// formatTypes joins the type names in slot order.
func formatTypes(data pokemonData) string {
	types := make([]string, 0, len(data.Types))
	for slot := 1; slot <= len(data.Types); slot++ {
		for _, t := range data.Types {
			if t.Slot == slot && t.Type.Name != "" {
				types = append(types, displayName(t.Type.Name))
			}
		}
	}
	return strings.Join(types, " / ")
}

// Redact blanks out every case-insensitive occurrence of the answer in a
// Pokédex entry so it can be used as a hint.
func Redact(text, answer string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(answer))
	return re.ReplaceAllString(text, "███")
}
