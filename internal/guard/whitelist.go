// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"sort"

	"github.com/kusari-oss/triage/internal/core/models"
)

// Whitelist is the read-only set of action names the guard accepts
type Whitelist struct {
	names map[string]struct{}
}

// NewWhitelist builds a whitelist from action names. Empty names are ignored.
func NewWhitelist(names []string) *Whitelist {
	w := &Whitelist{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if name == "" {
			continue
		}
		w.names[name] = struct{}{}
	}
	return w
}

// DefaultWhitelist returns a whitelist of models.DefaultActions
func DefaultWhitelist() *Whitelist {
	return NewWhitelist(models.DefaultActions)
}

// Contains reports whether name is whitelisted. Matching is exact.
func (w *Whitelist) Contains(name string) bool {
	_, ok := w.names[name]
	return ok
}

// List returns the whitelisted names in sorted order
func (w *Whitelist) List() []string {
	list := make([]string, 0, len(w.names))
	for name := range w.names {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// Len returns the number of whitelisted actions
func (w *Whitelist) Len() int {
	return len(w.names)
}
