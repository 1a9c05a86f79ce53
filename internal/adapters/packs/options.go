package packs

import (
	"time"

	"github.com/keystride/keystride/pkg/logger"
)

// Option applies a configuration option to the Catalog.
type Option func(*Catalog)

// WithDebounce sets how long Watch waits after the last file event before
// dropping the cached metadata.
func WithDebounce(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithLogger sets the catalog logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}
