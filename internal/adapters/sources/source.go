// Package sources fetches vocabulary from open datasets on demand and maps
// them onto packs.
package sources

import (
	"encoding/json"
	"os"
	"sort"
)

// Formats understood by Fetch.
const (
	FormatJSON    = "json"
	FormatTatoeba = "tatoeba"
)

// Source describes a remote dataset.
type Source struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Description      string   `json:"description,omitempty"`
	URL              string   `json:"url"`
	Format           string   `json:"format"`
	ListPath         []string `json:"list_path"`
	SourceLang       string   `json:"source_lang,omitempty"`
	TargetLang       string   `json:"target_lang,omitempty"`
	TextField        string   `json:"text_field,omitempty"`
	TranslationField string   `json:"translation_field,omitempty"`
	PinyinField      string   `json:"pinyin_field,omitempty"`
	License          string   `json:"license,omitempty"`
	Topics           []string `json:"topics"`
	Languages        []string `json:"languages,omitempty"`
}

// Builtin returns the sources shipped with the server.
func Builtin() map[string]Source {
	return map[string]Source{
		"hsk-level1": {
			ID:               "hsk-level1",
			Name:             "HSK Level 1 Vocabulary",
			Description:      "HSK level 1 terms with English translations (GitHub)",
			URL:              "https://raw.githubusercontent.com/pepebecker/mandarin-vocab/master/data/hsk-level-1.json",
			Format:           FormatJSON,
			SourceLang:       "zh",
			TargetLang:       "en",
			TextField:        "hanzi",
			TranslationField: "translations",
			PinyinField:      "pinyin",
			License:          "MIT (per upstream repo)",
			Topics:           []string{"hsk", "vocabulary", "beginner"},
			Languages:        []string{"zh", "en"},
		},
		"tatoeba-daily-en-zh": {
			ID:               "tatoeba-daily-en-zh",
			Name:             "Tatoeba Daily EN→ZH",
			Description:      "Tatoeba API slice for daily English sentences with Chinese translations",
			URL:              "https://tatoeba.org/eng/api_v0/search?format=json&query=&from=eng&to=cmn&has_audio=no&sort=random",
			Format:           FormatTatoeba,
			SourceLang:       "en",
			TargetLang:       "zh",
			TextField:        "text",
			TranslationField: "translations",
			License:          "CC BY 2.0",
			Topics:           []string{"daily", "conversation"},
			Languages:        []string{"en", "zh"},
		},
	}
}

// loadCustom reads extra sources from a JSON array file. A missing or
// unreadable file yields no custom sources. Entries without an id are ignored.
func loadCustom(path string) map[string]Source {
	out := map[string]Source{}
	if path == "" {
		return out
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	var entries []Source
	if err := json.Unmarshal(raw, &entries); err != nil {
		return out
	}
	for _, e := range entries {
		if e.ID != "" {
			out[e.ID] = e
		}
	}
	return out
}

func merged(customPath string) map[string]Source {
	all := Builtin()
	for id, s := range loadCustom(customPath) {
		all[id] = s
	}
	return all
}

func sorted(all map[string]Source) []Source {
	out := make([]Source, 0, len(all))
	for _, s := range all {
		if s.Topics == nil {
			s.Topics = []string{}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s Source) sourceLang() string { return orDefault(s.SourceLang, "en") }
func (s Source) targetLang() string { return orDefault(s.TargetLang, "zh") }
func (s Source) textField() string  { return orDefault(s.TextField, "word") }
func (s Source) name() string       { return orDefault(s.Name, s.ID) }

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
