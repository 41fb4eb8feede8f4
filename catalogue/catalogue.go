// Package catalogue loads and serves the static lender catalogue (spec §3,
// component C1). It is read-mostly after boot: one YAML seed document is
// parsed at startup and held in memory for the lifetime of the process.
package catalogue

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vulbsti/loanmatchmaker/model"
	"gopkg.in/yaml.v3"
)

// seedDocument mirrors the top-level shape of the YAML seed file.
type seedDocument struct {
	Lenders []model.Lender `yaml:"lenders"`
}

// LenderCatalogue is the read-only, in-memory view of the lender seed data.
// Safe for concurrent reads from many goroutines; never mutated after Load.
type LenderCatalogue struct {
	mu      sync.RWMutex
	lenders []model.Lender
	byID    map[string]model.Lender
	path    string
}

// Load parses the YAML seed document at path and returns a catalogue ready
// to serve. A malformed or missing seed file is an Internal error: the
// catalogue is required infrastructure, not an optional feature.
func Load(path string) (*LenderCatalogue, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, model.NewInternalError("invalid catalogue path", err)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("reading catalogue seed %s", abs), err)
	}

	var doc seedDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, model.NewInternalError("parsing catalogue seed", err)
	}

	c := &LenderCatalogue{
		path: abs,
		byID: make(map[string]model.Lender, len(doc.Lenders)),
	}
	for _, l := range doc.Lenders {
		if l.ID == "" {
			return nil, model.NewInternalError(fmt.Sprintf("catalogue seed has lender with empty id: %q", l.Name), nil)
		}
		if _, dup := c.byID[l.ID]; dup {
			return nil, model.NewInternalError(fmt.Sprintf("catalogue seed has duplicate lender id %q", l.ID), nil)
		}
		c.byID[l.ID] = l
		c.lenders = append(c.lenders, l)
	}
	return c, nil
}

// List returns every lender in the catalogue, in seed-document order.
// Callers receive a copy of the slice header only; Lender values are
// themselves immutable after Load, so no defensive deep copy is needed.
func (c *LenderCatalogue) List() []model.Lender {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Lender, len(c.lenders))
	copy(out, c.lenders)
	return out
}

// ByID looks up a single lender. Returns a NotFound error when absent.
func (c *LenderCatalogue) ByID(id string) (model.Lender, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.byID[id]
	if !ok {
		return model.Lender{}, model.NewNotFoundError("lender not found: " + id)
	}
	return l, nil
}

// Len reports how many lenders are loaded.
func (c *LenderCatalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lenders)
}
