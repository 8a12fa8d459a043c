package dataset

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoises loaded tables. Entries are keyed by path, sheet, size and
// modification time so an edited file is reloaded.
type Cache struct {
	lru  *lru.Cache[string, *Table]
	load func(path, sheet string) (*Table, error)
}

// NewCache returns a cache holding up to size tables.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 8
	}
	c, err := lru.New[string, *Table](size)
	if err != nil {
		return nil, fmt.Errorf("init table cache: %w", err)
	}
	return &Cache{lru: c, load: Load}, nil
}

// Load returns the cached table for path or reads it from disk.
func (c *Cache) Load(path, sheet string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	key := fmt.Sprintf("%s|%s|%d|%d", path, sheet, info.Size(), info.ModTime().UnixNano())
	if t, ok := c.lru.Get(key); ok {
		return t, nil
	}
	t, err := c.load(path, sheet)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, t)
	return t, nil
}

// Len reports the number of cached tables.
func (c *Cache) Len() int { return c.lru.Len() }
