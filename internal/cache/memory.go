// Package cache — реализации кэша таблиц для table.Store.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Spok95/okr-tracker/internal/table"
)

// DefaultTTL — сколько живёт прочитанная таблица, если её никто не сбросил записью.
const DefaultTTL = 30 * time.Second

type entry struct {
	t       *table.Table
	expires time.Time
}

// Memory — кэш процесса с TTL. Создаётся пустым при старте, ничего не сохраняет между перезапусками.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

func (c *Memory) Get(_ context.Context, name string) (*table.Table, bool) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.t, true
}

func (c *Memory) Put(_ context.Context, name string, t *table.Table) {
	c.mu.Lock()
	c.entries[name] = entry{t: t, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Memory) Invalidate(_ context.Context, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == table.AllTables {
		c.entries = make(map[string]entry)
		return
	}
	delete(c.entries, name)
}

// Sweep выбрасывает просроченные записи, возвращает их количество.
func (c *Memory) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for name, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, name)
			n++
		}
	}
	return n
}

func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Memory) TTL() time.Duration { return c.ttl }
