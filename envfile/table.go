package envfile

import (
	"fmt"

	"github.com/jongio/kvenv/secretname"
)

// Entry is a single parsed KEY=VALUE assignment.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Table is an ordered key/value mapping built by successive parses.
// Setting an existing key replaces its value in place, so a key keeps the
// position of its first occurrence.
//
// A Table is owned by its caller and is not safe for concurrent mutation.
type Table struct {
	keys   []string
	values map[string]string
	form   secretname.Form
}

// NewTable returns an empty table whose keys are in the given form.
func NewTable(form secretname.Form) *Table {
	return &Table{
		values: make(map[string]string),
		form:   form,
	}
}

// Form reports the spelling the table's keys are in.
func (t *Table) Form() secretname.Form {
	return t.form
}

// Set stores value under key (last write wins).
func (t *Table) Set(key, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get returns the value for key and whether it was present.
func (t *Table) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.keys)
}

// Keys returns the keys in iteration order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Entries returns the entries in iteration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, Entry{Key: k, Value: t.values[k]})
	}
	return out
}

// Clear removes every entry. The key form is kept.
func (t *Table) Clear() {
	t.keys = nil
	t.values = make(map[string]string)
}

// Clone returns an independent copy of t.
func (t *Table) Clone() *Table {
	c := NewTable(t.form)
	for _, k := range t.keys {
		c.Set(k, t.values[k])
	}
	return c
}

// ToMap returns the entries as a plain map. Ordering is lost.
func (t *Table) ToMap() map[string]string {
	out := make(map[string]string, len(t.keys))
	for _, k := range t.keys {
		out[k] = t.values[k]
	}
	return out
}

// ToSlice returns the entries as KEY=VALUE strings in iteration order.
func (t *Table) ToSlice() []string {
	out := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, fmt.Sprintf("%s=%s", k, t.values[k]))
	}
	return out
}

// replaceWith makes t hold exactly the contents of other.
func (t *Table) replaceWith(other *Table) {
	t.keys = other.keys
	t.values = other.values
	t.form = other.form
}
