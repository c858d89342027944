package pokemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-trivia-bot/internal/engine"
)

// fakeAPI serves minimal /pokemon/{id} and /pokemon-species/{id} payloads for
// a fixed roster, returning 404 for anything else.
type fakeAPI struct {
	names map[int]string // id -> species name
	fail  map[int]bool   // ids whose data endpoint errors
}

func (a *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pokemon/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/pokemon/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		name, ok := a.names[id]
		if !ok || a.fail[id] {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{
			"species": {"name": %q},
			"types": [
				{"slot": 2, "type": {"name": "poison"}},
				{"slot": 1, "type": {"name": "grass"}}
			]
		}`, name)
	})
	mux.HandleFunc("/pokemon-species/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/pokemon-species/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		name, ok := a.names[id]
		if !ok || a.fail[id] {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		// The entry mentions the Pokémon by its display name so redaction
		// has something to blank out.
		display := strings.ReplaceAll(name, "-", " ")
		display = strings.ToUpper(display[:1]) + display[1:]
		fmt.Fprintf(w, `{
			"flavor_text_entries": [
				{"flavor_text": "texte en français", "language": {"name": "fr"}},
				{"flavor_text": "A strange seed was\nplanted on %s's\fback at birth.", "language": {"name": "en"}}
			]
		}`, display)
	})
	return mux
}

// kantoRoster covers the whole kanto range so Fetch never picks an unknown ID.
func kantoRoster() map[int]string {
	names := make(map[int]string, 151)
	for id := 1; id <= 151; id++ {
		names[id] = fmt.Sprintf("mon-%d", id)
	}
	return names
}

func newTestSource(t *testing.T, api *fakeAPI) *Source {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, "https://sprites.test/{id}.png")
}

func TestFetchBuildsQuestions(t *testing.T) {
	src := newTestSource(t, &fakeAPI{names: kantoRoster()})

	questions, err := src.Fetch(context.Background(), 5, "kanto")
	require.NoError(t, err)
	require.Len(t, questions, 5)

	seen := make(map[string]bool)
	for _, q := range questions {
		assert.Equal(t, "Who's that Pokémon?", q.Prompt)
		assert.True(t, strings.HasPrefix(q.Answer, "Mon "), "answer %q", q.Answer)
		assert.False(t, seen[q.Answer], "duplicate %q", q.Answer)
		seen[q.Answer] = true

		assert.Contains(t, q.ImageURL, "https://sprites.test/")
		assert.True(t, strings.HasSuffix(q.ImageURL, ".png"))

		require.Len(t, q.Hints, 2)
		assert.Equal(t, "Type", q.Hints[0].Name)
		assert.Equal(t, "Grass / Poison", q.Hints[0].Value)
		assert.Equal(t, "Pokédex", q.Hints[1].Name)
		// The redacted entry never contains the answer, the full entry does.
		assert.NotContains(t, strings.ToLower(q.Hints[1].Value), strings.ToLower(q.Answer))
		assert.Contains(t, q.Hints[1].Value, "███")
		require.Len(t, q.Details, 2)
		assert.Contains(t, q.Details[1].Value, q.Answer)
		// Page control characters are normalized away.
		assert.NotContains(t, q.Details[1].Value, "\n")
		assert.NotContains(t, q.Details[1].Value, "\f")
	}
}

func TestFetchReplacesFailedIDs(t *testing.T) {
	// Every kanto ID except a handful fails; the replacement search must
	// still assemble the game from the survivors.
	api := &fakeAPI{names: kantoRoster(), fail: make(map[int]bool)}
	for id := 1; id <= 151; id++ {
		if id > 3 {
			api.fail[id] = true
		}
	}
	src := newTestSource(t, api)

	questions, err := src.Fetch(context.Background(), 3, "kanto")
	require.NoError(t, err)
	require.Len(t, questions, 3)

	seen := make(map[string]bool)
	for _, q := range questions {
		assert.Contains(t, []string{"Mon 1", "Mon 2", "Mon 3"}, q.Answer)
		assert.False(t, seen[q.Answer])
		seen[q.Answer] = true
	}
}

func TestFetchExhaustsReplacements(t *testing.T) {
	api := &fakeAPI{names: kantoRoster(), fail: make(map[int]bool)}
	for id := 1; id <= 151; id++ {
		api.fail[id] = true
	}
	src := newTestSource(t, api)

	_, err := src.Fetch(context.Background(), 3, "kanto")
	assert.ErrorIs(t, err, engine.ErrSourceExhausted)
}

func TestFetchCountExceedsRegion(t *testing.T) {
	src := newTestSource(t, &fakeAPI{names: kantoRoster()})

	_, err := src.Fetch(context.Background(), 152, "kanto")
	assert.ErrorIs(t, err, engine.ErrSourceExhausted)
}

func TestFetchUnknownRegion(t *testing.T) {
	src := newTestSource(t, &fakeAPI{names: kantoRoster()})

	_, err := src.Fetch(context.Background(), 1, "atlantis")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrSourceExhausted)
}

func TestRegionRange(t *testing.T) {
	tests := []struct {
		region     string
		start, end int
		ok         bool
	}{
		{"kanto", 1, 151, true},
		{"Johto", 152, 251, true},
		{"GALAR", 810, 898, true},
		{"all", 1, 898, true},
		{"", 1, 898, true},
		{"atlantis", 0, 0, false},
	}
	for _, tt := range tests {
		start, end, ok := RegionRange(tt.region)
		assert.Equal(t, tt.ok, ok, tt.region)
		if tt.ok {
			assert.Equal(t, tt.start, start, tt.region)
			assert.Equal(t, tt.end, end, tt.region)
		}
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Pikachu", displayName("pikachu"))
	assert.Equal(t, "Mr mime", displayName("mr-mime"))
	assert.Equal(t, "Ho oh", displayName("ho-oh"))
	assert.Equal(t, "", displayName(""))
}

func TestFormatTypes(t *testing.T) {
	var data pokemonData
	require.NoError(t, json.Unmarshal([]byte(`{
		"species": {"name": "bulbasaur"},
		"types": [
			{"slot": 2, "type": {"name": "poison"}},
			{"slot": 1, "type": {"name": "grass"}}
		]
	}`), &data))
	assert.Equal(t, "Grass / Poison", formatTypes(data))

	var single pokemonData
	require.NoError(t, json.Unmarshal([]byte(`{
		"species": {"name": "pikachu"},
		"types": [{"slot": 1, "type": {"name": "electric"}}]
	}`), &single))
	assert.Equal(t, "Electric", formatTypes(single))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "███ is small. ███!",
		Redact("Pikachu is small. PIKACHU!", "Pikachu"))
	assert.Equal(t, "███ wears a mask.",
		Redact("Mr mime wears a mask.", "Mr mime"))
	assert.Equal(t, "No mention here.",
		Redact("No mention here.", "Pikachu"))
}
