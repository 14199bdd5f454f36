// Package statecache keeps, per locale, the set of text flows whose
// translation is complete (Translated or Approved).
package statecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/tmmerge/internal/models"
)

// Loader reads the translated text flow ids of a locale from storage.
type Loader interface {
	TranslatedTextFlowIDs(ctx context.Context, localeID string) ([]int64, error)
}

type update struct {
	state      models.ContentState
	textFlowID int64
}

// Cache is safe for concurrent use.
type Cache struct {
	loader  Loader
	logger  *slog.Logger
	locales map[string]map[int64]struct{}
	// обновления, пришедшие пока локаль загружается
	pending map[string][]update
	loading map[string]int
	group   singleflight.Group
	mu      sync.RWMutex
}

// New creates an empty cache; locales are loaded on first use.
func New(logger *slog.Logger, loader Loader) *Cache {
	return &Cache{
		loader:  loader,
		logger:  logger,
		locales: make(map[string]map[int64]struct{}),
		pending: make(map[string][]update),
		loading: make(map[string]int),
	}
}

// Filter answers whether a text flow is translated in one locale.
type Filter struct {
	cache  *Cache
	locale string
}

// Contains reports whether the text flow's target is Translated or Approved.
func (f Filter) Contains(textFlowID int64) bool {
	f.cache.mu.RLock()
	defer f.cache.mu.RUnlock()
	_, ok := f.cache.locales[f.locale][textFlowID]
	return ok
}

// Len returns the number of translated text flows in the locale.
func (f Filter) Len() int {
	f.cache.mu.RLock()
	defer f.cache.mu.RUnlock()
	return len(f.cache.locales[f.locale])
}

// Filter returns the translated-set view of a locale, loading it if needed.
func (c *Cache) Filter(ctx context.Context, localeID string) (Filter, error) {
	c.mu.RLock()
	_, ok := c.locales[localeID]
	c.mu.RUnlock()
	if ok {
		return Filter{cache: c, locale: localeID}, nil
	}

	// загрузка общая для всех ожидающих, отмена одного не должна ронять остальных
	_, err, _ := c.group.Do(localeID, func() (any, error) {
		return nil, c.load(context.WithoutCancel(ctx), localeID)
	})
	if err != nil {
		return Filter{}, err
	}
	return Filter{cache: c, locale: localeID}, nil
}

func (c *Cache) load(ctx context.Context, localeID string) error {
	c.mu.Lock()
	if _, ok := c.locales[localeID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.loading[localeID]++
	c.mu.Unlock()

	ids, err := c.loader.TranslatedTextFlowIDs(ctx, localeID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading[localeID]--
	if c.loading[localeID] == 0 {
		delete(c.loading, localeID)
	}
	if err != nil {
		delete(c.pending, localeID)
		return fmt.Errorf("failed to load translation states of %s: %w", localeID, err)
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, u := range c.pending[localeID] {
		apply(set, u)
	}
	delete(c.pending, localeID)
	c.locales[localeID] = set

	c.logger.DebugContext(ctx, "translation state cache loaded",
		slog.String("locale", localeID),
		slog.Int("translated", len(set)))
	return nil
}

// TextFlowStateUpdated records the new state of a target.
func (c *Cache) TextFlowStateUpdated(textFlowID int64, localeID string, state models.ContentState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := update{textFlowID: textFlowID, state: state}
	if set, ok := c.locales[localeID]; ok {
		apply(set, u)
		return
	}
	// локаль еще не загружена: при загрузке значение прочитается из бд,
	// но запрос мог уже уйти, поэтому сохраняем на время загрузки
	if c.loading[localeID] > 0 {
		c.pending[localeID] = append(c.pending[localeID], u)
	}
}

// Invalidate drops a locale; it is reloaded on next use.
func (c *Cache) Invalidate(localeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locales, localeID)
}

func apply(set map[int64]struct{}, u update) {
	if u.state.IsTranslated() {
		set[u.textFlowID] = struct{}{}
	} else {
		delete(set, u.textFlowID)
	}
}
