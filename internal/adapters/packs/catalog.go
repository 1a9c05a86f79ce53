// Package packs reads practice packs from disk.
//
// Each pack lives in its own directory holding metadata.json and items.jsonl,
// one JSON object per line. The directory name is the pack id.
package packs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/pkg/logger"
	"github.com/keystride/keystride/pkg/metrics"
)

const (
	metadataFile = "metadata.json"
	itemsFile    = "items.jsonl"

	defaultDebounce = 200 * time.Millisecond
	maxLineBytes    = 1 << 20
)

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Lang  string
	Topic string
}

// ItemQuery selects a window of a pack's items.
type ItemQuery struct {
	Offset int
	Limit  int
	Tag    string
}

type metadata struct {
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
	License   string   `json:"license"`
	Source    string   `json:"source"`
	Topics    []string `json:"topics"`
	Notes     string   `json:"notes"`
}

// Catalog lists packs under a root directory. Metadata is cached until
// Invalidate is called, which Watch does on file changes.
type Catalog struct {
	dir      string
	debounce time.Duration
	log      logger.Logger

	mu    sync.RWMutex
	cache []model.Pack // nil when stale
}

// NewCatalog creates a catalog rooted at dir.
func NewCatalog(dir string, opts ...Option) *Catalog {
	c := &Catalog{dir: dir, debounce: defaultDebounce}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("packs")
	}
	return c
}

// Dir returns the catalog root.
func (c *Catalog) Dir() string { return c.dir }

// List returns packs matching f, sorted by id. A pack that declares no
// languages matches every language filter.
func (c *Catalog) List(ctx context.Context, f Filter) ([]model.Pack, error) {
	all, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Pack, 0, len(all))
	for _, p := range all {
		if f.Lang != "" && len(p.Languages) > 0 && !slices.Contains(p.Languages, f.Lang) {
			continue
		}
		if f.Topic != "" && !slices.Contains(p.Topics, f.Topic) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Exists reports whether id names a pack directory with metadata.
func (c *Catalog) Exists(id string) bool {
	dir, ok := c.packDir(id)
	if !ok {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, metadataFile))
	return err == nil && !info.IsDir()
}

// Items streams the pack's items file and returns the requested window.
// Malformed lines are skipped. The tag filter applies before the offset.
func (c *Catalog) Items(ctx context.Context, id string, q ItemQuery) ([]model.Item, error) {
	if !c.Exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrPackNotFound, id)
	}
	items := []model.Item{}
	if q.Limit <= 0 {
		return items, nil
	}

	dir, _ := c.packDir(id)
	f, err := os.Open(filepath.Join(dir, itemsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open items: %w", err)
	}
	defer func() { _ = f.Close() }()

	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var it model.Item
		if err := json.Unmarshal(sc.Bytes(), &it); err != nil || it == nil {
			continue
		}
		if q.Tag != "" && !it.HasTag(q.Tag) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		items = append(items, it)
		if len(items) >= q.Limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return items, nil
}

// Invalidate drops cached metadata so the next List rescans the directory.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

// packDir resolves id to a directory under the root. Ids that could escape
// the root are rejected.
func (c *Catalog) packDir(id string) (string, bool) {
	if c.dir == "" || id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return "", false
	}
	return filepath.Join(c.dir, id), true
}

func (c *Catalog) load(ctx context.Context) ([]model.Pack, error) {
	c.mu.RLock()
	cached := c.cache
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	packs, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache = packs
	c.mu.Unlock()
	metrics.RecordPackCatalogReload(len(packs))
	return packs, nil
}

func (c *Catalog) scan(ctx context.Context) ([]model.Pack, error) {
	if c.dir == "" {
		return nil, ErrNoPacksDir
	}
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Pack{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read packs dir: %w", err)
	}

	packs := []model.Pack{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := c.readPack(e.Name())
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			c.log.Warn(ctx, "skipping pack", logger.String("pack_id", e.Name()), logger.Error(err))
			continue
		}
		packs = append(packs, p)
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].ID < packs[j].ID })
	return packs, nil
}

func (c *Catalog) readPack(id string) (model.Pack, error) {
	dir := filepath.Join(c.dir, id)
	raw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return model.Pack{}, err
	}
	items, err := os.ReadFile(filepath.Join(dir, itemsFile))
	if err != nil {
		return model.Pack{}, err
	}

	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return model.Pack{}, fmt.Errorf("decode metadata: %w", err)
	}

	p := model.Pack{
		ID:        id,
		Name:      meta.Name,
		Languages: meta.Languages,
		License:   meta.License,
		Source:    meta.Source,
		Topics:    meta.Topics,
		Notes:     meta.Notes,
		Count:     countLines(items),
	}
	if p.Name == "" {
		p.Name = id
	}
	if p.Languages == nil {
		p.Languages = []string{}
	}
	if p.Topics == nil {
		p.Topics = []string{}
	}
	return p, nil
}

// countLines counts lines the way a line iterator does: a trailing fragment
// without a newline is a line.
func countLines(b []byte) int {
	n := bytes.Count(b, []byte{'\n'})
	if len(b) > 0 && b[len(b)-1] != '\n' {
		n++
	}
	return n
}
