package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jmylchreest/soundloop/internal/model"
)

// ErrAmbiguousRef is returned when a prefix matches several sources.
var ErrAmbiguousRef = errors.New("ambiguous source reference")

// LookupByID finds a source by its id.
// Returns nil if not found.
func LookupByID(sources []model.Source, id string) model.Source {
	for _, s := range sources {
		if s.SourceID() == id {
			return s
		}
	}
	return nil
}

// LookupByIndex finds a source by its index (1-based for user-friendliness).
// Returns nil if index is out of bounds.
func LookupByIndex(sources []model.Source, index int) model.Source {
	idx := index - 1
	if idx < 0 || idx >= len(sources) {
		return nil
	}
	return sources[idx]
}

// LookupByPrefix finds the single source whose id starts with prefix.
func LookupByPrefix(sources []model.Source, prefix string) (model.Source, error) {
	if prefix == "" {
		return nil, nil
	}

	var match model.Source
	var ids []string
	for _, s := range sources {
		if strings.HasPrefix(s.SourceID(), prefix) {
			match = s
			ids = append(ids, s.SourceID())
		}
	}

	if len(ids) > 1 {
		sortStrings(ids)
		return nil, fmt.Errorf("%w %q: matches %s", ErrAmbiguousRef, prefix, strings.Join(ids, ", "))
	}
	return match, nil
}

// Lookup resolves a user reference: an exact id, then a 1-based index,
// then a unique id prefix. Returns nil if nothing matches.
func Lookup(sources []model.Source, ref string) (model.Source, error) {
	if s := LookupByID(sources, ref); s != nil {
		return s, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if s := LookupByIndex(sources, n); s != nil {
			return s, nil
		}
	}
	return LookupByPrefix(sources, ref)
}

// Search finds sources whose id or locator contains term.
// Case-insensitive substring match.
func Search(sources []model.Source, term string) []model.Source {
	if term == "" {
		return sources
	}

	term = strings.ToLower(term)
	var result []model.Source

	for _, s := range sources {
		if strings.Contains(strings.ToLower(s.SourceID()), term) ||
			strings.Contains(strings.ToLower(model.Describe(s)), term) {
			result = append(result, s)
		}
	}

	return result
}

// sortStrings sorts case-insensitively in place.
func sortStrings(s []string) {
	sort.SliceStable(s, func(i, j int) bool {
		return strings.ToLower(s[i]) < strings.ToLower(s[j])
	})
}
