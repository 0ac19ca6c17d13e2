package prefs

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/newsdesk/internal/model"
)

// Storage keys.
const (
	KeyPreferences   = "newsPreferences"
	KeySavedSearches = "savedSearches"
)

// Preferences are the user's standing choices. Empty lists mean "no
// preference".
type Preferences struct {
	Sources    []string `json:"sources"`
	Categories []string `json:"categories"`
	Authors    []string `json:"authors"`
}

// PreferredSources returns the preferred source ids, or every source when
// none is set. Unknown ids are dropped.
func (p Preferences) PreferredSources() []model.SourceID {
	var out []model.SourceID
	for _, s := range p.Sources {
		if model.IsKnownSource(s) {
			out = append(out, model.SourceID(s))
		}
	}
	if len(out) == 0 {
		return model.DefaultSources()
	}
	return out
}

// Filters turns the category and author preferences into comma-joined
// filters.
func (p Preferences) Filters() model.Filters {
	return model.Filters{
		Category: strings.Join(p.Categories, ","),
		Author:   strings.Join(p.Authors, ","),
	}
}

// LoadPreferences returns the stored preferences, or the zero value when
// none are stored.
func (s *Store) LoadPreferences() (Preferences, error) {
	var p Preferences
	if _, err := s.ReadJSON(KeyPreferences, &p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// SavePreferences persists p.
func (s *Store) SavePreferences(p Preferences) error {
	return s.WriteJSON(KeyPreferences, p)
}

// ClearPreferences removes the stored preferences.
func (s *Store) ClearPreferences() error {
	return s.Remove(KeyPreferences)
}

// ErrEmptyName is returned when saving a search without a name.
var ErrEmptyName = errors.New("saved search name is empty")

// SavedSearch is a named filter set.
type SavedSearch struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Filters   model.Filters `json:"filters"`
	CreatedAt string        `json:"createdAt"`
}

// LoadSavedSearches returns every saved search in insertion order.
func (s *Store) LoadSavedSearches() ([]SavedSearch, error) {
	var list []SavedSearch
	if _, err := s.ReadJSON(KeySavedSearches, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddSavedSearch appends a saved search named name. The name is trimmed
// and must not be empty.
func (s *Store) AddSavedSearch(name string, filters model.Filters) (SavedSearch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedSearch{}, ErrEmptyName
	}

	saved := SavedSearch{
		ID:        uuid.NewString(),
		Name:      name,
		Filters:   filters,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	var list []SavedSearch
	err := s.updateJSON(KeySavedSearches, &list, func() (bool, error) {
		list = append(list, saved)
		return true, nil
	})
	if err != nil {
		return SavedSearch{}, err
	}
	return saved, nil
}

// DeleteSavedSearch removes the saved search with id. Reports whether it
// existed.
func (s *Store) DeleteSavedSearch(id string) (bool, error) {
	var list []SavedSearch
	found := false
	err := s.updateJSON(KeySavedSearches, &list, func() (bool, error) {
		kept := list[:0]
		for _, saved := range list {
			if saved.ID == id {
				found = true
				continue
			}
			kept = append(kept, saved)
		}
		list = kept
		return found, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// FindSavedSearch looks a saved search up by name.
func (s *Store) FindSavedSearch(name string) (SavedSearch, bool, error) {
	list, err := s.LoadSavedSearches()
	if err != nil {
		return SavedSearch{}, false, err
	}
	for _, saved := range list {
		if saved.Name == name {
			return saved, true, nil
		}
	}
	return SavedSearch{}, false, nil
}
