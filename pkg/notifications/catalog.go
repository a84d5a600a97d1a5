package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// ErrInvalidCatalog is returned when a category catalog cannot be parsed.
var ErrInvalidCatalog = errors.New("notifications: invalid category catalog")

// CategoryPolicy describes how a category behaves when the user has not
// mapped it explicitly.
type CategoryPolicy struct {
	// Holdable reports whether push/email for this category may be deferred
	// into a digest. Nil means holdable.
	Holdable *bool `yaml:"holdable"`
	// Defaults is the channel matrix used for users without a mapping.
	// Nil means the global toggles apply.
	Defaults *ChannelSet `yaml:"defaults"`
}

type catalogFile struct {
	Categories map[string]CategoryPolicy `yaml:"categories"`
}

// Catalog is the set of known categories. A nil *Catalog is valid and
// treats every category as holdable with no defaults.
type Catalog struct {
	mu       sync.RWMutex
	policies map[string]CategoryPolicy
}

// NewCatalog creates a catalog from in-memory policies.
func NewCatalog(policies map[string]CategoryPolicy) *Catalog {
	c := &Catalog{policies: make(map[string]CategoryPolicy, len(policies))}
	for name, p := range policies {
		c.policies[name] = p
	}
	return c
}

// ParseCatalog decodes a YAML catalog:
//
//	categories:
//	  security:
//	    holdable: false
//	    defaults: {in_app: true, push: true, email: true}
//
// Unknown keys are rejected, so channel flags placed beside holdable instead
// of under defaults fail to parse.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	for name := range f.Categories {
		if name == "" {
			return nil, fmt.Errorf("%w: empty category name", ErrInvalidCatalog)
		}
	}
	return NewCatalog(f.Categories), nil
}

// LoadCatalog reads and parses a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return ParseCatalog(data)
}

// Holdable reports whether deliveries in category may be deferred.
func (c *Catalog) Holdable(category string) bool {
	if c == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.policies[category]
	if !ok || p.Holdable == nil {
		return true
	}
	return *p.Holdable
}

// Defaults returns the default channel matrix for category, if any.
func (c *Catalog) Defaults(category string) (ChannelSet, bool) {
	if c == nil {
		return ChannelSet{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.policies[category]
	if !ok || p.Defaults == nil {
		return ChannelSet{}, false
	}
	return *p.Defaults, true
}

// Categories returns the names of all known categories.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.policies))
	for name := range c.policies {
		out = append(out, name)
	}
	return out
}

// replace swaps the policies in place so holders of *Catalog see the update.
func (c *Catalog) replace(other *Catalog) {
	other.mu.RLock()
	policies := other.policies
	other.mu.RUnlock()

	c.mu.Lock()
	c.policies = policies
	c.mu.Unlock()
}

// Watch reloads the catalog from path whenever the file changes, until ctx
// is cancelled. A file that fails to parse is logged and the previous
// policies stay in effect.
func (c *Catalog) Watch(ctx context.Context, path string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors replace files via rename, which drops a
	// watch placed on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			next, err := LoadCatalog(path)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "failed to reload category catalog",
					slog.String("path", path),
					logger.Error(err),
				)
				continue
			}
			c.replace(next)
			log.LogAttrs(ctx, slog.LevelInfo, "category catalog reloaded",
				slog.String("path", path),
				slog.Int("categories", len(next.policies)),
			)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.LogAttrs(ctx, slog.LevelWarn, "category catalog watcher error", logger.Error(err))
		}
	}
}
