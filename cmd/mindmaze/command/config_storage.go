package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/level"
	"github.com/pixil98/mindmaze/internal/storage"
)

// StorageConfig locates the participant's durable session store.
type StorageConfig struct {
	Path       string `json:"path"`
	QuotaBytes int    `json:"quota_bytes"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	if c.Path == "" {
		el.Add(fmt.Errorf("storage.path is required"))
	}
	if c.QuotaBytes < 0 {
		el.Add(fmt.Errorf("storage.quota_bytes must not be negative"))
	}

	return el.Err()
}

func (c *StorageConfig) BuildKV() (*storage.FileKV, error) {
	var opts []storage.FileKVOpt
	if c.QuotaBytes > 0 {
		opts = append(opts, storage.WithQuota(c.QuotaBytes))
	}
	return storage.OpenFileKV(c.Path, opts...)
}

// LevelsConfig selects the level set. Without a path the built-in levels
// are used.
type LevelsConfig struct {
	Path  string   `json:"path"`
	Order []string `json:"order"`
}

func (c *LevelsConfig) validate() error {
	el := errors.NewErrorList()

	if c.Path == "" {
		if len(c.Order) > 0 {
			el.Add(fmt.Errorf("levels.order requires levels.path"))
		}
		return el.Err()
	}

	if _, err := os.Stat(c.Path); err != nil {
		el.Add(fmt.Errorf("levels: invalid path %q: %w", c.Path, err))
	}
	for _, id := range c.Order {
		if !storage.ValidIdentifier(id) {
			el.Add(fmt.Errorf("levels.order: invalid id %q", id))
		}
	}

	return el.Err()
}

func (c *LevelsConfig) BuildLevels() ([]level.Template, error) {
	if c.Path == "" {
		return level.DefaultLevels(), nil
	}

	store, err := storage.NewFileStore[*level.Config](c.Path)
	if err != nil {
		return nil, fmt.Errorf("loading levels: %w", err)
	}

	ids := c.Order
	if len(ids) == 0 {
		ids = store.Ids()
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no levels found in %q", c.Path)
	}

	levels := make([]level.Template, 0, len(ids))
	for _, id := range ids {
		cfg, ok := store.Get(id)
		if !ok {
			return nil, fmt.Errorf("level %q not found in %q", id, c.Path)
		}
		levels = append(levels, level.Template{ID: id, Config: cfg})
	}

	return levels, nil
}
