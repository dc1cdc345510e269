package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNilFallbackTable is returned when writing to a nil *FallbackTable.
var ErrNilFallbackTable = errors.New("fallback table is nil")

// FallbackTable maps a primary model to the lighter model used when the
// primary is rate limited. Lookups never follow chains: the fallback of a
// fallback is not consulted.
//
// A FallbackTable is safe for concurrent use. The zero value is empty and
// ready to use. A nil *FallbackTable reads as an empty table and ignores
// Delete; Set and Merge on it return ErrNilFallbackTable.
type FallbackTable struct {
	mu      sync.RWMutex
	entries map[string]string
}

// DefaultFallbacks is the process-wide table used by Completers that are not
// given one explicitly.
var DefaultFallbacks = NewFallbackTable(map[string]string{
	"llama-3.3-70b-versatile": "llama-3.1-8b-instant",
	"llama3-70b-8192":         "llama3-8b-8192",
	"openai/gpt-oss-120b":     "openai/gpt-oss-20b",
	"gpt-4o":                  "gpt-4o-mini",
	"claude-sonnet":           "claude-haiku",
	"gemini-pro":              "gemini-flash",
})

// NewFallbackTable builds a table from entries. It panics on an invalid
// entry, so use it only with literal maps; Merge validates at runtime.
func NewFallbackTable(entries map[string]string) *FallbackTable {
	t := &FallbackTable{}
	if err := t.Merge(entries); err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the fallback for model.
func (t *FallbackTable) Lookup(model string) (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	fb, ok := t.entries[model]
	return fb, ok
}

// Set maps primary to fallback, replacing any existing entry.
func (t *FallbackTable) Set(primary, fallback string) error {
	primary, fallback = strings.TrimSpace(primary), strings.TrimSpace(fallback)
	if err := validateFallback(primary, fallback); err != nil {
		return err
	}
	if t == nil {
		return ErrNilFallbackTable
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries == nil {
		t.entries = make(map[string]string)
	}
	t.entries[primary] = fallback
	return nil
}

// Merge adds every entry to the table. Either all entries are applied or,
// on an invalid entry, none are.
func (t *FallbackTable) Merge(entries map[string]string) error {
	for primary, fallback := range entries {
		if err := validateFallback(primary, fallback); err != nil {
			return err
		}
	}
	if t == nil {
		return ErrNilFallbackTable
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries == nil {
		t.entries = make(map[string]string, len(entries))
	}
	for primary, fallback := range entries {
		t.entries[strings.TrimSpace(primary)] = strings.TrimSpace(fallback)
	}
	return nil
}

// Delete removes the entry for primary, if any.
func (t *FallbackTable) Delete(primary string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, primary)
}

// Snapshot returns a copy of the table.
func (t *FallbackTable) Snapshot() map[string]string {
	out := make(map[string]string)
	if t == nil {
		return out
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Primaries returns the mapped models in sorted order.
func (t *FallbackTable) Primaries() []string {
	snap := t.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateFallback(primary, fallback string) error {
	primary, fallback = strings.TrimSpace(primary), strings.TrimSpace(fallback)
	switch {
	case primary == "" || fallback == "":
		return fmt.Errorf("fallback entry %q -> %q: model ids must be non-empty", primary, fallback)
	case primary == fallback:
		return fmt.Errorf("fallback entry %q maps a model to itself", primary)
	}
	return nil
}

// ParseFallbacks parses "primary=fallback" pairs separated by commas, the
// form used by APAI_LLM_FALLBACKS.
func ParseFallbacks(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		primary, fallback, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("fallback %q: expected primary=fallback", pair)
		}
		primary, fallback = strings.TrimSpace(primary), strings.TrimSpace(fallback)
		if err := validateFallback(primary, fallback); err != nil {
			return nil, err
		}
		out[primary] = fallback
	}
	return out, nil
}
