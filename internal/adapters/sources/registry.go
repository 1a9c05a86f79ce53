package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/internal/ratelimit"
	"github.com/keystride/keystride/pkg/logger"
	"github.com/keystride/keystride/pkg/metrics"
)

const (
	// DefaultLimit is the number of entries taken when the caller passes none.
	DefaultLimit = 100

	defaultTimeout = 15 * time.Second
	defaultRPS     = 1.0
	defaultBurst   = 3
	maxBodyBytes   = 16 << 20
	tatoebaSource  = "Tatoeba API"
	maxTranslation = 3
)

// Result is a fetched source mapped onto a pack and its items.
type Result struct {
	Pack  model.Pack   `json:"pack"`
	Items []model.Item `json:"items"`
}

// Registry resolves source ids and fetches them over HTTP.
type Registry struct {
	customPath string
	timeout    time.Duration
	rps        float64
	burst      int
	client     *http.Client
	log        logger.Logger
	limiter    *ratelimit.KeyedRateLimiter
}

// NewRegistry creates a registry of the built-in and custom sources.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		timeout: defaultTimeout,
		rps:     defaultRPS,
		burst:   defaultBurst,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	if r.log == nil {
		r.log = logger.Named("sources")
	}
	r.limiter = ratelimit.New(r.rps, r.burst)
	return r
}

// Close stops the outbound limiter.
func (r *Registry) Close() {
	r.limiter.Stop()
}

// List returns every known source sorted by id. Custom sources override
// built-ins with the same id.
func (r *Registry) List() []Source {
	return sorted(merged(r.customPath))
}

// Get returns a single source definition.
func (r *Registry) Get(id string) (Source, error) {
	s, ok := merged(r.customPath)[id]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return s, nil
}

// Fetch downloads up to limit entries of a source and maps them to items.
func (r *Registry) Fetch(ctx context.Context, id string, limit int) (res Result, err error) {
	src, err := r.Get(id)
	if err != nil {
		return Result{}, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := time.Now()
	defer func() {
		metrics.RecordSourceFetch(id, float64(time.Since(start).Milliseconds()), err)
		if err != nil {
			r.log.Warn(ctx, "source fetch failed", logger.String("source", id), logger.Error(err))
		}
	}()

	body, err := r.get(ctx, src)
	if err != nil {
		return Result{}, err
	}

	var items []model.Item
	switch strings.ToLower(src.Format) {
	case FormatJSON:
		items, err = mapJSON(src, body, limit)
	case FormatTatoeba:
		items, err = mapTatoeba(src, body, limit)
	default:
		err = fmt.Errorf("%w: %s for %s", ErrUnsupportedFormat, src.Format, id)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Pack: packFor(src, len(items)), Items: items}, nil
}

func (r *Registry) get(ctx context.Context, src Source) ([]byte, error) {
	if err := r.limiter.Wait(ctx, src.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceNotAvailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceNotAvailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceNotAvailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrSourceNotAvailable, src.ID, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceNotAvailable, err)
	}
	return body, nil
}

func mapJSON(src Source, body []byte, limit int) ([]model.Item, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrSourceNotAvailable, src.ID, err)
	}
	for _, key := range src.ListPath {
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no object at %q", ErrSourceNotAvailable, src.ID, key)
		}
		payload = obj[key]
	}
	entries, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s payload is not a list", ErrSourceNotAvailable, src.ID)
	}
	entries = entries[:min(limit, len(entries))]

	items := make([]model.Item, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		text := stringField(entry, src.textField())
		if text == "" {
			continue
		}
		items = append(items, model.Item{
			"id":           itemID(src.ID, len(items)+1),
			"type":         "word",
			"lang":         src.sourceLang(),
			"text":         text,
			"romanization": entry[src.PinyinField],
			"translation":  map[string]string{src.targetLang(): translationText(entry, src.TranslationField)},
			"tags":         topics(src),
			"license":      src.License,
			"source":       src.Name,
		})
	}
	return items, nil
}

type tatoebaPayload struct {
	Results []tatoebaSentence `json:"results"`
}

type tatoebaSentence struct {
	Text         string          `json:"text"`
	Lang         string          `json:"lang"`
	Translations json.RawMessage `json:"translations"`
}

type tatoebaTranslation struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Lang     string `json:"lang"`
}

func mapTatoeba(src Source, body []byte, limit int) ([]model.Item, error) {
	var payload tatoebaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrSourceNotAvailable, src.ID, err)
	}
	results := payload.Results[:min(limit, len(payload.Results))]

	target := src.targetLang()
	items := make([]model.Item, 0, len(results))
	for _, s := range results {
		text := strings.TrimSpace(s.Text)
		translated := ""
		for _, t := range flattenTranslations(s.Translations) {
			lang := t.Language
			if lang == "" {
				lang = t.Lang
			}
			if sameLanguage(lang, target) {
				translated = t.Text
				break
			}
		}
		if text == "" || translated == "" {
			continue
		}
		items = append(items, model.Item{
			"id":          itemID(src.ID, len(items)+1),
			"type":        "sentence",
			"lang":        src.sourceLang(),
			"text":        text,
			"translation": map[string]string{target: translated},
			"tags":        topics(src),
			"source":      tatoebaSource,
			"license":     src.License,
		})
	}
	return items, nil
}

// flattenTranslations accepts both a flat list of translations and the
// list-of-groups shape the Tatoeba API returns.
func flattenTranslations(raw json.RawMessage) []tatoebaTranslation {
	if len(raw) == 0 {
		return nil
	}
	var flat []tatoebaTranslation
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	var groups [][]tatoebaTranslation
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil
	}
	for _, g := range groups {
		flat = append(flat, g...)
	}
	return flat
}

// sameLanguage compares two language codes by base language, so "cmn" and
// "zh" or "eng" and "en" match.
func sameLanguage(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	return baseLanguage(a) == baseLanguage(b)
}

var macroLanguages = map[string]string{"cmn": "zh"}

func baseLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if m, ok := macroLanguages[code]; ok {
		code = m
	}
	tag, err := language.All.Parse(code)
	if err != nil {
		return code
	}
	base, _ := tag.Base()
	return base.String()
}

func translationText(entry map[string]any, field string) string {
	if field == "" {
		return ""
	}
	switch v := entry[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, maxTranslation)
		for _, p := range v[:min(maxTranslation, len(v))] {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func stringField(entry map[string]any, field string) string {
	s, _ := entry[field].(string)
	return strings.TrimSpace(s)
}

func itemID(sourceID string, n int) string {
	return fmt.Sprintf("%s-%04d", sourceID, n)
}

func topics(src Source) []string {
	if src.Topics == nil {
		return []string{}
	}
	return src.Topics
}

func packFor(src Source, count int) model.Pack {
	return model.Pack{
		ID:        "remote-" + src.ID,
		Name:      src.name(),
		Languages: []string{src.sourceLang(), src.targetLang()},
		License:   src.License,
		Source:    src.URL,
		Topics:    topics(src),
		Notes:     src.Description,
		Count:     count,
	}
}
