package manifest

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEntryNotFound is returned when the document has no entry for the requested product
	ErrEntryNotFound = errors.New("manifest entry not found")
	// ErrMalformed is returned when the document cannot be parsed or violates its invariants
	ErrMalformed = errors.New("malformed manifest")
)

// Entry is the latest known release of one product
type Entry struct {
	ProductName   string
	LatestVersion string
	DownloadURL   string
}

// Document holds at most one entry per product name
type Document struct {
	entries map[string]Entry
}

func NewDocument() *Document {
	return &Document{entries: make(map[string]Entry)}
}

// Lookup returns the entry of productName
func (d *Document) Lookup(productName string) (Entry, bool) {
	e, ok := d.entries[productName]
	return e, ok
}

// Upsert adds or replaces the entry keyed by e.ProductName and reports whether the document changed
func (d *Document) Upsert(e Entry) bool {
	if cur, ok := d.entries[e.ProductName]; ok && cur == e {
		return false
	}
	d.entries[e.ProductName] = e
	return true
}

// Entries returns the entries sorted by product name
func (d *Document) Entries() []Entry {
	entries := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ProductName < entries[j].ProductName
	})
	return entries
}

func (d *Document) Len() int {
	return len(d.entries)
}

// add inserts a decoded entry and rejects the ones that break the document invariants
func (d *Document) add(e Entry) error {
	if e.ProductName == "" {
		return fmt.Errorf("%w: entry without product name", ErrMalformed)
	}
	if _, ok := d.entries[e.ProductName]; ok {
		return fmt.Errorf("%w: duplicate entry for %q", ErrMalformed, e.ProductName)
	}
	d.entries[e.ProductName] = e
	return nil
}
